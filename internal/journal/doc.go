// Package journal records table listener streams in SQLite and replays
// them into other tables.
//
// A journal holds two tables:
//   - tables: one row per recorded table with its schema hash and declaration
//   - events: the listener events (schema, restart, item, delta, done, fail)
//     as canonical JSON, each with a content hash checked on read
//
// # Ordering
//
// Every event is stamped with a logical clock value (seq). Reads use
// ORDER BY seq ASC, id ASC so a replay sees events exactly in recording
// order regardless of wall time.
//
// # Replay
//
// Replay feeds recorded events into a table's receiveUpdate function, so a
// journal rebuilds a mirror the same way a live listener stream would.
// Each recording starts with schema and restart events, and restart clears
// the mirror, so replaying several recordings of one table converges on
// the state of the last.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: events must belong to a registered table
package journal
