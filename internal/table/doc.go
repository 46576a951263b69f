// Package table is the runtime of a compiled schema: a set of live indexes
// kept consistent under insert, update and delete, plus the listening
// protocol that turns mutations into a replayable event stream.
//
// INDEX VARIANTS:
//
//	map           one item per key
//	multimap      several items per key, insertion ordered
//	list          insertion ordered, no keys
//	single_value  at most one item
//
// Each variant implements Index. Operations a variant cannot answer (a
// list index cannot Get by key) return *UnsupportedOperationError rather
// than doing nothing.
//
// CONSISTENCY:
//
// Every mutation walks every index of the schema. Items are tracked by
// reference: an update callback may edit the item in place or return a new
// object, and each keyed index ends up holding exactly the post-update
// object under its post-update key. CheckConsistency verifies that all
// indexes hold the same items.
//
// LISTENING:
//
// Listen returns a stream that starts with a schema event (the delete
// functions the consumer must support), a restart, optionally the current
// items, and then live item and delta events. ReceiveUpdate is the
// consumer half: it applies such a stream to a mirror table.
//
// Tables are not safe for concurrent use.
package table
