// Package journal stores a document's binary updates in SQLite.
//
// Updates are opaque to the journal. Each row is keyed by the update's
// content digest, so journaling the same bytes twice is a no-op, and rows
// read back in append order (seq, then id). Replaying a document means
// applying every row to an empty replica.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: every update belongs to a known document
package journal
