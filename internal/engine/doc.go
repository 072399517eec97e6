// Package engine implements the host-facing operations of a block document.
//
// An Engine owns one local replica. Edits arrive as batches of block actions
// (insert, update, delete, move) and are applied in a single substrate
// transaction; the transaction's ops are returned as a binary update for the
// host to ship to other replicas. Remote updates are merged and applied
// with ApplyUpdates.
//
// ARCHITECTURE:
//
// Single-Writer Replica:
// Every mutation of a replica happens inside exactly one transaction at a
// time. A failing action aborts its whole batch and the replica is left as
// it was before the call. There is no partial-application mode.
//
// Derived Order:
// Sibling order is never stored. Blocks carry prevId, device, and timestamp
// hints; GetDocumentState runs the reconciliation sorter over them on every
// read. Replicas holding the same ops therefore report identical states no
// matter the order those ops arrived in.
//
// Text Diff Collaborator:
// Block text supplied with an action is proposed full content. When the
// caller passes a diff function it is called synchronously inside the
// transaction to turn the proposal into edit ops; the transaction cannot
// commit until it returns.
package engine
