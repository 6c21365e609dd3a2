// Package poller tracks generation tasks until they settle.
//
// # Overview
//
// A Manager polls GET status/{id} for each watched task at a fixed interval
// (5 seconds by default) and hands every result to a caller-supplied Handler
// as an Observation. The UI owns rendering; the poller owns only scheduling
// and fetching.
//
// # State Machine
//
//	Idle ──Start──> Polling ──terminal status──> Stopped
//	                   │  ├──fetch error───────> Stopped
//	                   │  └──Cancel────────────> Stopped
//	                   └──PENDING/RUNNING: fetch again after Interval
//
// A COMPLETED task whose apk_build_status is BUILDING keeps polling until the
// build reports BUILDED or BUILDFAILED.
//
// # Errors
//
// A failed fetch is delivered once with Observation.Err set and ends the poll.
// Callers that want to retry call Start again.
//
// # Concurrency
//
// Each poll runs on its own goroutine with a single timer. Handler calls are
// serialized with Cancel: once Cancel returns, the cancelled poll delivers
// nothing more. Start on a task that is already polled stops the old poll and
// waits for it to exit before the new one fetches.
package poller
