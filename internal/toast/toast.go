package toast

import (
	"context"
	"log/slog"
	"time"

	"github.com/Copycord/console/internal/metrics"
	"github.com/Copycord/console/internal/store"
)

// Defaults tuned for connection churn: a flapping channel produces one toast
// per TTL window, not one per retry.
const (
	DefaultTTL     = 15 * time.Second
	DefaultQuiet   = 900 * time.Millisecond
	launchedTTL    = 20 * time.Second
	dedupKeyPrefix = "toast:"
	launchedPrefix = "launched:"
)

// Level classifies a notification for the presenting surface.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier is the user-visible notification surface. ClearAll is invoked on
// session restore so stale notifications cannot resurrect.
type Notifier interface {
	Notify(key, msg string, level Level)
	ClearAll()
}

// Gate deduplicates and time-gates notifications from every channel.
type Gate struct {
	store    store.ExpiringStore
	notifier Notifier
	logger   *slog.Logger
	ttl      time.Duration
	quiet    time.Duration
	bootAt   time.Time

	now func() time.Time
}

func New(s store.ExpiringStore, n Notifier, ttl, quiet time.Duration, logger *slog.Logger) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:    s,
		notifier: n,
		logger:   logger,
		ttl:      ttl,
		quiet:    quiet,
		bootAt:   time.Now(),
		now:      time.Now,
	}
}

// Once shows the notification unless the same key fired within its TTL
// window. The dedup entry is persisted, so it survives a reload within the
// session. Returns whether the notification was shown.
func (g *Gate) Once(ctx context.Context, key, msg string, level Level, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = g.ttl
	}
	_, seen, err := g.store.Get(ctx, dedupKeyPrefix+key)
	if err != nil {
		g.logger.Debug("toast dedup read failed", "key", key, "error", err)
	}
	if seen {
		metrics.IncToastSuppressed("dedup")
		return false
	}
	if err := g.store.Set(ctx, dedupKeyPrefix+key, []byte{1}, ttl); err != nil {
		g.logger.Debug("toast dedup write failed", "key", key, "error", err)
	}
	g.notifier.Notify(key, msg, level)
	metrics.IncToastShown()
	return true
}

// MarkLaunched flags that a local user action makes the next notification
// for key expected. A "connected" toast after the user clicked start should
// fire even inside the boot-quiet window.
func (g *Gate) MarkLaunched(ctx context.Context, key string) {
	if err := g.store.Set(ctx, launchedPrefix+key, []byte{1}, launchedTTL); err != nil {
		g.logger.Debug("launched marker write failed", "key", key, "error", err)
	}
}

// LaunchedHere reports whether key was marked by a local user action and the
// marker has not expired.
func (g *Gate) LaunchedHere(ctx context.Context, key string) bool {
	_, ok, err := g.store.Get(ctx, launchedPrefix+key)
	if err != nil {
		g.logger.Debug("launched marker read failed", "key", key, "error", err)
		return false
	}
	return ok
}

// WSGate gates channel-health notifications. During the boot-quiet window
// they are suppressed unless forced or explicitly launched by a local user
// action; after the window it behaves like Once.
func (g *Gate) WSGate(ctx context.Context, key, msg string, level Level, force bool, ttl time.Duration) bool {
	inQuiet := g.now().Sub(g.bootAt) < g.quiet
	if inQuiet && !force && !g.LaunchedHere(ctx, key) {
		metrics.IncToastSuppressed("boot_quiet")
		return false
	}
	return g.Once(ctx, key, msg, level, ttl)
}

// ClearAll clears displayed toasts and their dedup keys. Called on restore
// from history cache; stale notifications must not resurrect, and their keys
// must be free to fire again.
func (g *Gate) ClearAll(ctx context.Context) {
	g.notifier.ClearAll()
	keys, err := g.store.Keys(ctx, dedupKeyPrefix)
	if err != nil {
		g.logger.Debug("toast dedup listing failed", "error", err)
		return
	}
	for _, k := range keys {
		_ = g.store.Delete(ctx, k)
	}
}
