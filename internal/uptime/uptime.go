package uptime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Copycord/console/internal/status"
	"github.com/Copycord/console/internal/store"
)

// DefaultMaxAge is how old a cached uptime record may be before it is
// discarded on load. A long-dormant session must not show a confidently
// wrong uptime when it resumes.
const DefaultMaxAge = 60 * time.Second

// Record is the persisted uptime base for one role.
// BaseSec is the last known uptime at CapturedAt; displayed uptime while the
// role runs is BaseSec plus elapsed wall-clock time since CapturedAt.
type Record struct {
	Role       status.Role `json:"role"`
	BaseSec    float64     `json:"base_sec"`
	CapturedAt time.Time   `json:"captured_at"`
}

// ExtrapolatedSec returns the display uptime at now. This is a display-only
// estimate; the next real status message always overwrites it.
func (r Record) ExtrapolatedSec(now time.Time) float64 {
	return r.BaseSec + now.Sub(r.CapturedAt).Seconds()
}

// Cache persists and extrapolates per-role uptime across reloads of the same
// session.
type Cache struct {
	store  store.ExpiringStore
	maxAge time.Duration
	logger *slog.Logger

	now func() time.Time
}

func New(s store.ExpiringStore, maxAge time.Duration, logger *slog.Logger) *Cache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: s, maxAge: maxAge, logger: logger, now: time.Now}
}

func key(role status.Role) string { return "uptime:" + string(role) }

// Save records sec as the uptime base for role, captured now. The merge path
// calls it on every running update, and once with sec=0 on the transition to
// stopped.
func (c *Cache) Save(ctx context.Context, role status.Role, sec float64) error {
	rec := Record{Role: role, BaseSec: sec, CapturedAt: c.now()}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal uptime record: %w", err)
	}
	if err := c.store.Set(ctx, key(role), b, c.maxAge); err != nil {
		return fmt.Errorf("save uptime for %s: %w", role, err)
	}
	return nil
}

// Load returns the cached record for role, or ok=false when there is none,
// the record is malformed, or it is stale. A record aged exactly maxAge
// counts as stale.
func (c *Cache) Load(ctx context.Context, role status.Role) (Record, bool) {
	b, found, err := c.store.Get(ctx, key(role))
	if err != nil {
		c.logger.Debug("uptime cache read failed", "role", role, "error", err)
		return Record{}, false
	}
	if !found {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		c.logger.Debug("discarding malformed uptime record", "role", role, "error", err)
		_ = c.store.Delete(ctx, key(role))
		return Record{}, false
	}
	if c.now().Sub(rec.CapturedAt) >= c.maxAge {
		_ = c.store.Delete(ctx, key(role))
		return Record{}, false
	}
	return rec, true
}
