// Package query turns a live search text and a live sort mode into one
// live, sorted list of species entries.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every input (SetQuery, SetSort, Subscribe, timer firings, lookup results)
// is an event on a FIFO queue. Pipeline.Run dequeues events one at a time and
// is the only goroutine that touches pipeline state, so text, sort mode and
// the in-flight lookup are never updated concurrently.
//
// Two explicit stages feed the loop:
//
//  1. debouncer: a cancellable delay. Each SetQuery restarts the quiet window
//     and bumps a generation token; a firing whose token is stale is dropped.
//  2. switcher: start new, abandon previous. Each settled text starts a store
//     observation (ObserveAll for blank text, ObserveSearch otherwise) under
//     a fresh generation and cancels the previous one. Results are tagged with
//     their generation and the loop drops any that are not current, so a slow
//     superseded lookup can never overwrite a newer result.
//
// The sort mode is applied in the loop to whatever the current lookup last
// produced; changing it re-sorts without touching the store.
//
// Sharing:
// All subscribers see the same computed value, and a new subscriber is
// replayed the latest one. When the last subscriber leaves, the lookup keeps
// running for a grace period; if nobody reattaches in time the pipeline goes
// idle and the next subscriber triggers a fresh lookup. Text and sort mode
// survive idling.
//
// Lookup errors are delivered to the subscribers attached at that moment and
// are not replayed later; the pipeline keeps running.
package query
