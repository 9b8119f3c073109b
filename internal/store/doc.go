// Package store provides SQLite-backed durable storage for dispatch
// journals.
//
// The store is an append-only log of ir.DispatchRecord rows, one per call
// into a store's dispatch chain (root or re-entrant). Only actions are
// recorded; reducer state is never persisted.
//
// # Critical Patterns
//
// Idempotent writes
//   - Record IDs are content-addressed (ir.DispatchID)
//   - INSERT ... ON CONFLICT(id) DO NOTHING makes rewrites no-ops
//
// Logical time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//
// Deterministic query results
//   - Queries over records MUST include: ORDER BY seq ASC, id COLLATE BINARY ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single open connection: SQLite has one writer
//
// Action payloads are stored as canonical JSON (ir.MarshalCanonical).
package store
