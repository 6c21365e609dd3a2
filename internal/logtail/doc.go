// Package logtail reads and parses Foundry's own log file for the Activity
// view.
//
// # Reading
//
// Read walks the log backwards from the end in fixed chunks and stops once it
// holds maxLines lines. A
// non-positive maxLines reads the whole file. A missing file yields nil, nil.
// Entries combines Read with Parse and skips blank lines; it is what the
// Activity view loads on every refresh.
//
// # Parsing
//
// Parse understands both slog handlers:
//
//	time=2026-01-02T15:04:05.000Z level=INFO msg="task status" task_id=7
//	{"time":"2026-01-02T15:04:05Z","level":"INFO","msg":"task status","task_id":7}
//
// Anything else is returned as a message-only Entry so the view never drops a
// line. AtLeast compares level names for the view's level filter.
package logtail
