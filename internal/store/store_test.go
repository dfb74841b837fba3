package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Second))

	s.now = func() time.Time { return base.Add(9 * time.Second) }
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	// exactly at the deadline the entry is already gone
	s.now = func() time.Time { return base.Add(10 * time.Second) }
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStoreKeysPrefixSkipsExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.Set(ctx, "toast:a", []byte("1"), time.Second))
	require.NoError(t, s.Set(ctx, "toast:b", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "uptime:server", []byte("1"), time.Minute))

	s.now = func() time.Time { return base.Add(5 * time.Second) }
	keys, err := s.Keys(ctx, "toast:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"toast:b"}, keys)
}

func TestMemoryStoreDeleteAndClear(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, _ := s.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	_, ok, _ = s.Get(ctx, "b")
	assert.False(t, ok)
}

func TestMemoryStoreValueIsCopied(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	src := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", src, time.Minute))
	src[0] = 'X'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := NewSQLiteStore(path, "sess-1")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	// upsert
	require.NoError(t, s.Set(ctx, "k", []byte("v2"), time.Minute))
	got, _, _ = s.Get(ctx, "k")
	assert.Equal(t, []byte("v2"), got)
}

func TestSQLiteStoreExpiry(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "s.db"), "sess-1")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	base := time.Now()
	s.now = func() time.Time { return base }
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Second))

	s.now = func() time.Time { return base.Add(10 * time.Second) }
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorePurgesOtherSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(path, "sess-1")
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, s1.Close())

	// A new session on the same file must not see the old session's keys.
	s2, err := NewSQLiteStore(path, "sess-2")
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	_, ok, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreRequiresSessionID(t *testing.T) {
	_, err := NewSQLiteStore("", "")
	assert.Error(t, err)
}

func TestNewFromDSN(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromDSN("", "sess")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewFromDSN("memory://", "sess")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewFromDSN("sqlite://"+filepath.Join(dir, "a.db"), "sess")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	_ = s.Close()

	s, err = NewFromDSN(filepath.Join(dir, "b.db"), "sess")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	_ = s.Close()

	_, err = NewFromDSN("redis://localhost", "sess")
	assert.Error(t, err)
}
