package store

import (
	"context"
	"time"
)

// ExpiringStore is session-scoped key/value persistence with per-entry TTL.
// UptimeCache and ToastGate share it: uptime records, toast dedup keys and
// launched-here markers are all opaque values with an embedded expiry.
// Entries belong to one session id and are never visible to another session,
// so reopening the console always starts clean even on a persistent backend.
//
// Expired entries read as absent. Implementations must be safe for
// concurrent use.
type ExpiringStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value and true when the key exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	// Keys lists unexpired keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Clear removes every entry belonging to this session.
	Clear(ctx context.Context) error
	Close() error
}
