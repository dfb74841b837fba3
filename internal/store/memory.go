package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. It is the default backend:
// a console session and its store die together, which already satisfies the
// session-only persistence rule.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry

	// now is overridable in tests.
	now func() time.Time
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var keys []string
	for k, e := range m.entries {
		if now.Before(e.expiresAt) && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memEntry)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
