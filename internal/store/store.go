// Package store is the durable message store. One SQLite database per
// workspace holds every indexed message; all ordered and filtered reads
// are served from here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// Store wraps the SQLite database holding indexed messages.
// Safe for concurrent use from multiple goroutines within one process.
type Store struct {
	db *sql.DB
}

// Message is the atomic stored record. Messages are immutable once
// written; there is no update or delete path.
type Message struct {
	// ID is the internally assigned sequential id.
	ID int64 `json:"id"`

	// ExternalID is the source-assigned identifier, unique within the
	// workspace and increasing within a conversation.
	ExternalID string `json:"external_id"`

	ConversationID   string `json:"conversation_id"`
	ConversationName string `json:"conversation_name"`

	// Sender is the resolved display name, never a raw user id.
	Sender string `json:"sender"`

	Text string `json:"text"`

	// Timestamp is seconds since epoch.
	Timestamp int64 `json:"timestamp"`

	// SelfAuthored marks messages written by the authenticated user.
	SelfAuthored bool `json:"self_authored"`

	// ThreadParentID is the parent message's ExternalID for thread
	// replies, empty otherwise.
	ThreadParentID string `json:"thread_parent_id,omitempty"`
}

// Open creates or opens the message database at dbPath with WAL mode and
// busy timeout.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("store: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Migrate creates tables and indexes if they don't exist.
func (s *Store) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("store: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id       TEXT NOT NULL UNIQUE,
			conversation_id   TEXT NOT NULL,
			conversation_name TEXT NOT NULL,
			sender            TEXT NOT NULL,
			text              TEXT NOT NULL,
			ts                INTEGER NOT NULL,
			self_authored     INTEGER NOT NULL DEFAULT 0,
			thread_parent_id  TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("store: create messages: %w", err)
	}

	// Context retrieval walks (conversation_id, ts); recency queries walk
	// (ts). Both paths must never fall back to a full scan.
	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_messages_conversation_ts
		ON messages(conversation_id, ts)
	`); err != nil {
		return fmt.Errorf("store: create conversation index: %w", err)
	}
	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_messages_ts
		ON messages(ts)
	`); err != nil {
		return fmt.Errorf("store: create ts index: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("store: set schema version: %w", err)
	}

	return tx.Commit()
}

// InsertBatch upserts records in a single transaction. Duplicate external
// ids are silently ignored (first write wins). Returns the number of rows
// actually inserted. All-or-nothing: a failure leaves nothing visible.
func (s *Store) InsertBatch(ctx context.Context, records []Message) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO messages (
			external_id, conversation_id, conversation_name,
			sender, text, ts, self_authored, thread_parent_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range records {
		res, err := stmt.ExecContext(ctx,
			m.ExternalID, m.ConversationID, m.ConversationName,
			m.Sender, m.Text, m.Timestamp, boolToInt(m.SelfAuthored), m.ThreadParentID,
		)
		if err != nil {
			return 0, fmt.Errorf("store: insert %s: %w", m.ExternalID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit insert: %w", err)
	}
	return inserted, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
