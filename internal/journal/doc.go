// Package journal provides SQLite-backed recording of machine runs.
//
// The journal is an append-only log with two tables:
//   - Runs: one row per Execute invocation (source, status, outcome)
//   - Steps: one row per executed instruction (seq, ip, op, direction)
//
// Ordering always uses the machine's logical step counter (seq),
// never wall-clock timestamps; the started/ended columns are
// informational only. Reading a run back in seq order reproduces the
// exact instruction sequence the machine executed.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: steps cannot outlive their run
package journal
