// Package app is the composition root of Foundry.
//
// # Startup
//
//	Run()
//	 ├─> config.LoadDotEnv / config.Load / ApplyEnv
//	 ├─> prefs.Load            saved URL, key, theme (env overrides win)
//	 ├─> logging.New           slog to the log file; the terminal belongs to the UI
//	 ├─> telemetry.Init        OTLP tracing when otlp_endpoint is set
//	 ├─> chatdev.NewClient
//	 ├─> poller.NewManager     per-task status polls
//	 └─> errgroup
//	      ├─> Refresher.Run    task list refresh loop
//	      └─> ui.Run           blocks until the user quits
//
// Quitting the UI cancels the shared context, which stops the refresher and
// every task poll before Run returns.
//
// # List Refresh
//
// The Refresher lists the store's current query every list_refresh seconds
// (10 by default). Failures keep the previous page in the store and back the
// schedule off exponentially up to 30 seconds. The UI calls Trigger after it
// changes the query or mutates a task so the list updates without waiting for
// the next tick.
//
// # Errors
//
// Configuration, logging, telemetry and client setup errors are fatal and
// returned from Run. Refresh and poll errors are recorded in the store and
// logged; they never stop the application.
package app
