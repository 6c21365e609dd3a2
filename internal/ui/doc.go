// Package ui provides the Bubble Tea terminal interface for Foundry.
//
// # Views
//
// Four views share one header, command bar and notification line:
//
//   - Tasks: paginated task list with a status filter and a detail pane.
//     Tasks can be cancelled, deleted, packaged as an APK and watched.
//   - Generate: form that submits a new generation task. The new task is
//     watched until it settles.
//   - Settings: API URL, API key and theme, saved to the preferences file,
//     plus a health check against both health endpoints.
//   - Activity: tail of the client's own log file with a level filter.
//
// # Data Flow
//
// The list comes from state.Store, which the list refresher fills in the
// background; the model re-reads the snapshot on every UI tick. Watched tasks
// are polled by a TaskWatcher. Its handler writes each observation into the
// store and forwards it to the model over a buffered channel, so the poll
// goroutine never waits on the UI.
//
// Requests issued from the UI run as tea.Cmds and report back with a result
// message; failures become notifications and never end the program.
//
// # Key Bindings
//
// Press ? inside the program for the full list. While a form field has
// focus it receives every key; esc releases focus and global keys work again.
package ui
