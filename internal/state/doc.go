// Package state holds the data the Foundry UI renders.
//
// # Overview
//
// Store is the meeting point of three writers and one reader:
//
//	list refresher ──Update(query, list, err)──┐
//	task pollers   ──Observe(observation)──────┼──> Store ──Snapshot()──> UI
//	UI actions     ──SetQuery / Unwatch / Forget┘
//
// # List Query
//
// Query carries the status filter and page (limit/offset) of the task list.
// The refresher reads the current query, fetches it, and hands the result
// back together with the query it fetched. Results for a query the user has
// since changed are dropped, so a slow response cannot overwrite a newer
// page.
//
// # Update Semantics
//
// A failed refresh keeps the previous tasks and records the error.
// ConsecutiveFailures counts failures since the last success; IsOffline
// reports two or more.
//
// # Watches
//
// Every poll observation updates the task's Watch and, when the task is on
// the current page, its row in Tasks. A watch outlives its poll so the UI can
// keep showing the last known state and error.
//
// # Copying
//
// Snapshot clones slices, watched tasks and the error value. The zero Store
// is ready to use.
package state
