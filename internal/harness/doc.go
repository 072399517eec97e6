// Package harness runs multi-replica convergence scenarios.
//
// A scenario declares a set of replicas of one document, a script of edits
// and synchronizations between them, and assertions on the final states.
// Every replica is a full engine.Engine with a predictable replica id, so a
// scenario produces the same updates and the same states on every run.
//
// # Scenario Format
//
//	name: concurrent_inserts
//	description: "Two replicas insert at the top level, then sync"
//	doc_id: notes
//	replicas: [alice, bob]
//	auto_timestamps: true
//	steps:
//	  - init: alice
//	  - sync: {from: alice, to: bob}
//	  - replica: alice
//	    actions:
//	      - action: insert
//	        block: {id: a1, type: paragraph, attributes: {device: alpha}}
//	  - replica: bob
//	    expect_error: BLOCK_NOT_FOUND
//	    actions:
//	      - action: update
//	        block: {id: ghost, type: paragraph}
//	  - sync_all: true
//	assertions:
//	  - type: children
//	    parent: root
//	    order: [a1]
//	  - type: converged
//
// Actions use the same field names as the JSON action format.
//
// # Steps
//
//   - init: initializes the named replica's document
//   - actions: applies a batch on one replica; expect_error names the error
//     kind the batch must fail with
//   - sync: ships one replica's full state to another
//   - sync_all: merges every replica's state into every replica
//
// # Assertion Types
//
//   - children: a parent's children are in the given order
//   - converged: every replica has the same state
//   - block_absent: the block does not exist
//   - prev_id: the block's prevId (empty for none)
//   - text: the block's plain text
//
// Assertions without a replica are checked on every replica.
package harness
