package matrix

// sessionstore.go implements mautrix.SyncStore backed by SQLite. Persisting
// the next_batch token across restarts keeps the bot from replaying old room
// history and re-answering messages it already handled.

import (
	"context"
	"database/sql"
	"fmt"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	_ "modernc.org/sqlite"
)

var _ mautrix.SyncStore = (*SessionStore)(nil)

// OpenSessionDB opens (or creates) the session database at path and ensures
// the session_state table exists.
func OpenSessionDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS session_state (
			user_id TEXT NOT NULL,
			key     TEXT NOT NULL,
			value   TEXT NOT NULL,
			PRIMARY KEY (user_id, key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create session_state table: %w", err)
	}
	return db, nil
}

// SessionStore stores sync state as rows in the session_state table keyed
// by (user_id, key).
type SessionStore struct {
	db *sql.DB
}

func newSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// SaveFilterID persists the event-filter ID for the given user.
func (s *SessionStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.saveKey(ctx, userID.String(), "filter_id", filterID)
}

// LoadFilterID retrieves the persisted event-filter ID.
// Returns ("", nil) when none has been saved yet.
func (s *SessionStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.loadKey(ctx, userID.String(), "filter_id")
}

// SaveNextBatch persists the opaque /sync next_batch token.
func (s *SessionStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.saveKey(ctx, userID.String(), "next_batch", nextBatchToken)
}

// LoadNextBatch retrieves the last saved next_batch token.
// Returns ("", nil) on first run.
func (s *SessionStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.loadKey(ctx, userID.String(), "next_batch")
}

func (s *SessionStore) saveKey(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_state (user_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`, userID, key, value)
	return err
}

func (s *SessionStore) loadKey(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM session_state WHERE user_id = ? AND key = ?
	`, userID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
