package toast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Copycord/console/internal/store"
)

type recordedToast struct {
	key   string
	msg   string
	level Level
}

type fakeNotifier struct {
	mu      sync.Mutex
	shown   []recordedToast
	cleared int
}

func (f *fakeNotifier) Notify(key, msg string, level Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, recordedToast{key, msg, level})
}

func (f *fakeNotifier) ClearAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}

func newGate(t *testing.T) (*Gate, *fakeNotifier, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	n := &fakeNotifier{}
	return New(s, n, DefaultTTL, DefaultQuiet, nil), n, s
}

func TestOnceDeduplicatesWithinTTL(t *testing.T) {
	g, n, _ := newGate(t)
	ctx := context.Background()

	assert.True(t, g.Once(ctx, "push-lost", "connection lost", LevelWarning, 0))
	assert.False(t, g.Once(ctx, "push-lost", "connection lost", LevelWarning, 0))
	assert.False(t, g.Once(ctx, "push-lost", "connection lost again", LevelWarning, 0))
	assert.Equal(t, 1, n.count())

	// a different key is independent
	assert.True(t, g.Once(ctx, "bus-lost", "bus gone", LevelWarning, 0))
	assert.Equal(t, 2, n.count())
}

func TestOnceFiresAgainAfterTTL(t *testing.T) {
	g, n, _ := newGate(t)
	ctx := context.Background()

	assert.True(t, g.Once(ctx, "k", "m", LevelInfo, 40*time.Millisecond))
	assert.False(t, g.Once(ctx, "k", "m", LevelInfo, 40*time.Millisecond))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, g.Once(ctx, "k", "m", LevelInfo, 40*time.Millisecond))
	assert.Equal(t, 2, n.count())
}

func TestWSGateSuppressesDuringBootQuiet(t *testing.T) {
	g, n, _ := newGate(t)
	ctx := context.Background()
	boot := time.Now()
	g.bootAt = boot
	g.now = func() time.Time { return boot.Add(100 * time.Millisecond) }

	assert.False(t, g.WSGate(ctx, "push-connected", "connected", LevelSuccess, false, 0))
	assert.Equal(t, 0, n.count())

	// after the quiet window the same call goes through
	g.now = func() time.Time { return boot.Add(DefaultQuiet) }
	assert.True(t, g.WSGate(ctx, "push-connected", "connected", LevelSuccess, false, 0))
	assert.Equal(t, 1, n.count())
}

func TestWSGateForceBypassesQuiet(t *testing.T) {
	g, n, _ := newGate(t)
	ctx := context.Background()
	boot := time.Now()
	g.bootAt = boot
	g.now = func() time.Time { return boot }

	assert.True(t, g.WSGate(ctx, "k", "m", LevelError, true, 0))
	assert.Equal(t, 1, n.count())
}

func TestWSGateLaunchedHereBypassesQuiet(t *testing.T) {
	g, n, _ := newGate(t)
	ctx := context.Background()
	boot := time.Now()
	g.bootAt = boot
	g.now = func() time.Time { return boot }

	g.MarkLaunched(ctx, "push-connected")
	assert.True(t, g.LaunchedHere(ctx, "push-connected"))
	assert.True(t, g.WSGate(ctx, "push-connected", "connected", LevelSuccess, false, 0))
	assert.Equal(t, 1, n.count())
}

func TestClearAllResetsDedupKeys(t *testing.T) {
	g, n, s := newGate(t)
	ctx := context.Background()

	require.True(t, g.Once(ctx, "k", "m", LevelInfo, 0))
	g.ClearAll(ctx)
	assert.Equal(t, 1, n.cleared)

	// key is free to fire again
	assert.True(t, g.Once(ctx, "k", "m", LevelInfo, 0))

	// launched markers survive ClearAll
	g.MarkLaunched(ctx, "k")
	g.ClearAll(ctx)
	assert.True(t, g.LaunchedHere(ctx, "k"))
	keys, _ := s.Keys(ctx, "launched:")
	assert.Len(t, keys, 1)
}
