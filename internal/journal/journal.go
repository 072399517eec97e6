package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/blockdoc/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added (doc_id, seq) read index
const currentSchemaVersion = 1

// Journal is a SQLite-backed update journal.
type Journal struct {
	db *sql.DB
}

// Entry is one journaled update.
type Entry struct {
	ID      string
	DocID   string
	Seq     int64
	Origin  string
	Payload []byte
}

// DocumentSummary describes one journaled document.
type DocumentSummary struct {
	DocID   string `json:"doc_id"`
	Updates int    `json:"updates"`
	Bytes   int64  `json:"bytes"`
}

// Open creates or opens a journal at path, applying pragmas and migrations.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append journals an update for docID and returns its id. Appending bytes
// already journaled for the document changes nothing; inserted reports
// whether a row was written.
func (j *Journal) Append(ctx context.Context, docID, origin string, payload []byte) (id string, inserted bool, err error) {
	if docID == "" {
		return "", false, errors.New("append: empty document id")
	}
	if len(payload) == 0 {
		return "", false, errors.New("append: empty update")
	}
	id = ir.UpdateID(payload)

	err = j.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureDocument(ctx, tx, docID); err != nil {
			return err
		}
		seq, err := nextSeq(ctx, tx, docID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO updates (id, doc_id, seq, origin, payload)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(doc_id, id) DO NOTHING
		`, id, docID, seq, origin, payload)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("append update: %w", err)
	}
	return id, inserted, nil
}

// ReadUpdates returns every update of docID in append order.
// An unknown document yields an empty slice.
func (j *Journal) ReadUpdates(ctx context.Context, docID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, doc_id, seq, origin, payload
		FROM updates
		WHERE doc_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("read updates: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.DocID, &e.Seq, &e.Origin, &e.Payload); err != nil {
			return nil, fmt.Errorf("read updates: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read updates: %w", err)
	}
	return entries, nil
}

// Payloads returns the update bytes of entries, in order.
func Payloads(entries []Entry) [][]byte {
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Payload
	}
	return out
}

// ListDocuments returns every journaled document ordered by id.
func (j *Journal) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT d.doc_id, COUNT(u.id), COALESCE(SUM(LENGTH(u.payload)), 0)
		FROM documents d
		LEFT JOIN updates u ON u.doc_id = d.doc_id
		GROUP BY d.doc_id
		ORDER BY d.doc_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []DocumentSummary{}
	for rows.Next() {
		var d DocumentSummary
		if err := rows.Scan(&d.DocID, &d.Updates, &d.Bytes); err != nil {
			return nil, fmt.Errorf("list documents: scan: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Compact replaces every update of docID with merged, in one transaction.
// merged must already contain everything the replaced rows held; the
// journal does not look inside updates. It returns the number of rows
// removed.
func (j *Journal) Compact(ctx context.Context, docID, origin string, merged []byte) (int, error) {
	if len(merged) == 0 {
		return 0, errors.New("compact: empty update")
	}
	id := ir.UpdateID(merged)

	var removed int
	err := j.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureDocument(ctx, tx, docID); err != nil {
			return err
		}
		seq, err := nextSeq(ctx, tx, docID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM updates WHERE doc_id = ?`, docID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = int(n)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO updates (id, doc_id, seq, origin, payload)
			VALUES (?, ?, ?, ?, ?)
		`, id, docID, seq, origin, merged)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("compact %s: %w", docID, err)
	}
	return removed, nil
}

func (j *Journal) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func ensureDocument(ctx context.Context, tx *sql.Tx, docID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO documents (doc_id) VALUES (?)
		ON CONFLICT(doc_id) DO NOTHING
	`, docID)
	return err
}

// nextSeq returns one past the highest seq of docID. Seq never goes back,
// not even across compaction.
func nextSeq(ctx context.Context, tx *sql.Tx, docID string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM updates WHERE doc_id = ?`, docID,
	).Scan(&seq)
	return seq, err
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_updates_doc_seq
		ON updates(doc_id, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
