package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries to a SQLite file so a session survives a
// console restart within the same session id. Rows are scoped by session id;
// a fresh session never sees another session's keys.
type SQLiteStore struct {
	db        *sql.DB
	sessionID string

	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path. An empty path uses
// an in-memory database.
func NewSQLiteStore(path, sessionID string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	if sessionID == "" {
		return nil, fmt.Errorf("sqlite store requires a session id")
	}

	db, err := sql.Open("sqlite", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, sessionID: sessionID, now: time.Now}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	// Drop leftovers from previous sessions so the backing file does not
	// grow without bound.
	if err := s.purgeOtherSessions(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS session_kv(
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY(session_id, key)
	);`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create session_kv table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) purgeOtherSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_kv WHERE session_id != ?`, s.sessionID)
	return err
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expires := s.now().Add(ttl).UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_kv(session_id, key, value, expires_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value=excluded.value, expires_at=excluded.expires_at;`,
		s.sessionID, key, value, expires)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM session_kv WHERE session_id = ? AND key = ?`,
		s.sessionID, key).Scan(&value, &expires)
	switch {
	case err == sql.ErrNoRows:
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	if s.now().UnixMilli() >= expires {
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM session_kv WHERE session_id = ? AND key = ?`, s.sessionID, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_kv WHERE session_id = ? AND key = ?`, s.sessionID, key)
	return err
}

func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM session_kv
		WHERE session_id = ? AND key LIKE ? AND expires_at > ?`,
		s.sessionID, prefix+"%", s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("keys %q: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_kv WHERE session_id = ?`, s.sessionID)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
