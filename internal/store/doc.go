// Package store provides a SQLite-backed journal of scene runs.
//
// The journal is append-only and records, per scene root:
//   - Roots: the scene name, its spec hash and the runtime versions
//   - Calls: every native engine call, in the order it was issued
//   - Cycles: one summary row per settle step
//
// # Ordering
//
// Calls and cycles share the root's logical clock (engine.Clock). All
// ordering uses that seq column, never timestamps, and every query ends
// in ORDER BY seq ASC so reads are identical across runs.
//
// # Idempotency
//
// Rows are keyed by (root_id, seq) and written with ON CONFLICT DO
// NOTHING, so re-recording a call is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Calls and cycles must belong to a known root
//
// Property values are stored as RFC 8785 canonical JSON (ir.MarshalCanonical).
package store
