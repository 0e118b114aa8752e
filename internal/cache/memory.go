package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps cached responses in process memory. Entries expire individually;
// PurgeExpired drops them eagerly.
type MemoryStore struct {
	items *gocache.Cache
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store without a janitor goroutine.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: gocache.New(gocache.NoExpiration, 0),
		now:   time.Now,
	}
}

type memoryEntry struct {
	expiresAt time.Time
	value     []byte
}

func memoryKey(endpoint, key string) string {
	return endpoint + "\x00" + key
}

// GetCached returns an unexpired entry.
func (m *MemoryStore) GetCached(_ context.Context, endpoint, key string) ([]byte, bool, error) {
	raw, ok := m.items.Get(memoryKey(endpoint, key))
	if !ok {
		return nil, false, nil
	}
	entry := raw.(memoryEntry)
	if !m.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// PutCached stores an entry until expiresAt.
func (m *MemoryStore) PutCached(_ context.Context, endpoint, key string, value []byte, expiresAt time.Time) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.items.Set(memoryKey(endpoint, key), memoryEntry{value: stored, expiresAt: expiresAt}, gocache.NoExpiration)
	return nil
}

// PurgeExpired removes expired entries and returns how many were dropped.
func (m *MemoryStore) PurgeExpired(_ context.Context) (int64, error) {
	now := m.now()
	var purged int64
	for k, item := range m.items.Items() {
		entry, ok := item.Object.(memoryEntry)
		if ok && !now.Before(entry.expiresAt) {
			m.items.Delete(k)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (m *MemoryStore) Len() int {
	return m.items.ItemCount()
}
