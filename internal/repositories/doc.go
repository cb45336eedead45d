// Package repositories implements SQLite persistence for pass history and shared state.
//
// Key Implementations:
//   - [RunRepository] : Run history with status tracking and soft deletes
//   - [StateRepository] : [state.Store] over the state table, shared by the web and worker processes
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// [NextSequence] increments per-table counters in dedicated sequence tables inside the inserting transaction.
package repositories
