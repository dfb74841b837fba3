package store

import (
	"errors"
	"strings"
)

// NewFromDSN creates a session store based on DSN format.
// Supported formats:
//   - "memory://" or "" (in-process, default)
//   - "sqlite:///path/to/file.db"
//   - "/path/to/file.db" (defaults to SQLite)
func NewFromDSN(dsn, sessionID string) (ExpiringStore, error) {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)

	switch {
	case dsn == "" || lower == "memory://" || lower == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(lower, "sqlite://"):
		return NewSQLiteStore(dsn[len("sqlite://"):], sessionID)
	case !strings.Contains(dsn, "://"):
		return NewSQLiteStore(dsn, sessionID)
	default:
		return nil, errors.New("unsupported store DSN: " + dsn)
	}
}
