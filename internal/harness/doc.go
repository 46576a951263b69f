// Package harness runs scripted scenarios against tables and the query
// graph, and snapshots their traces for golden comparison.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: users_roundtrip
//	description: "What this scenario checks"
//	specs:
//	  - specs/users.cue
//	tables:
//	  - name: users_copy
//	    attrs: [id, name]
//	    funcs: [get(id), listenToStream]
//	steps:
//	  - op: listen
//	    table: users
//	    initial_data: true
//	  - op: insert
//	    table: users
//	    item: { name: ada }
//	  - op: update
//	    table: users
//	    func: update_with_id
//	    args: [1]
//	    set: { name: "ada lovelace" }
//	  - op: query
//	    query: "users id=1 name"
//	    expect:
//	      - { users: null, id: 1, name: "ada lovelace" }
//	assertions:
//	  - type: count
//	    table: users
//	    count: 1
//	  - type: replay_equals
//	    table: users
//
// # Steps
//
//   - insert: insert item into table
//   - delete: call a delete function (func, args)
//   - update: assign set on the items a update function selects
//   - query: run a get query on the graph, optionally checking expect
//   - listen: record the table's listener stream in the journal
//   - mirror: feed the table's listener stream into the table named by into
//
// A step with error set must fail: query steps with that error type,
// other steps with a message containing it.
//
// # Assertion Types
//
//   - count, items: final contents of a table
//   - query_items, query_error: outcome of a query on the final state
//   - consistent: every index of a table agrees
//   - mirror_equals: a mirror holds the same items as its source
//   - replay_equals: replaying the journal rebuilds the table
//
// # Deterministic Testing
//
// Seqs come from a deterministic clock and listener IDs from a
// sequential generator, so traces compare byte for byte.
package harness
