// Package store provides SQLite-backed durable storage for species entries.
//
// The store owns all persisted entry state. Other components hold transient
// copies obtained either from one-shot reads (All, ByID, Search) or from live
// observations (ObserveAll, ObserveByID, ObserveSearch).
//
// # Live Observation
//
// Every observation replays the current result to its subscriber, then
// re-runs its query after each committed mutation and emits again when the
// result differs from the last emission. Change signals coalesce: a burst of
// writes may yield a single re-query. An observation ends when its context is
// cancelled or the store is closed; its channel is then closed.
//
// # Identity
//
//   - Ids are assigned by SQLite AUTOINCREMENT and are never reused
//   - created_at is stamped on first insert and never rewritten by upsert
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// The schema version lives in PRAGMA user_version. A database written by an
// incompatible version is dropped and recreated rather than migrated.
package store
