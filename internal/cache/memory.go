package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value    []byte
	expireAt time.Time
}

// MemoryStore is an in-process Store. The mutex guards the map only; there
// is no coordination across keys.
type MemoryStore struct {
	mu         sync.Mutex
	items      map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries keys.
// maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		items:      make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expireAt) {
		delete(m.items, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[key]; !exists && m.maxEntries > 0 && len(m.items) >= m.maxEntries {
		m.evictLocked()
	}
	m.items[key] = memoryEntry{
		value:    append([]byte(nil), value...),
		expireAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) DelPattern(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored keys, including expired ones not yet swept.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// evictLocked drops expired entries, then the entry closest to expiry if
// the store is still full.
func (m *MemoryStore) evictLocked() {
	now := m.now()
	var victim string
	var victimExp time.Time
	for key, e := range m.items {
		if !now.Before(e.expireAt) {
			delete(m.items, key)
			continue
		}
		if victim == "" || e.expireAt.Before(victimExp) {
			victim, victimExp = key, e.expireAt
		}
	}
	if len(m.items) >= m.maxEntries && victim != "" {
		delete(m.items, victim)
	}
}
