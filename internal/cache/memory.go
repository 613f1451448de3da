package cache

import (
	"context"
	"time"

	"github.com/emrgen/template/internal/model"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var _ ResolutionCache = (*MemoryResolutionCache)(nil)

type memoryEntry struct {
	revision  *model.Revision
	expiresAt time.Time
}

// MemoryResolutionCache is a bounded in-process cache. Entries leave on their
// own ttl, on maxTTL or on capacity eviction, whichever comes first. Revisions
// are copied in and out.
type MemoryResolutionCache struct {
	entries *expirable.LRU[string, memoryEntry]
	now     func() time.Time
}

func NewMemoryResolutionCache(capacity int, maxTTL time.Duration) *MemoryResolutionCache {
	return &MemoryResolutionCache{
		entries: expirable.NewLRU[string, memoryEntry](capacity, nil, maxTTL),
		now:     time.Now,
	}
}

func (m *MemoryResolutionCache) Get(ctx context.Context, key ResolutionKey) (*model.Revision, error) {
	entry, ok := m.entries.Get(key.String())
	if !ok {
		return nil, nil
	}
	if !m.now().Before(entry.expiresAt) {
		m.entries.Remove(key.String())
		return nil, nil
	}

	return entry.revision.Clone(), nil
}

func (m *MemoryResolutionCache) Set(ctx context.Context, key ResolutionKey, revision *model.Revision, ttl time.Duration) error {
	m.entries.Add(key.String(), memoryEntry{revision: revision.Clone(), expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *MemoryResolutionCache) Delete(ctx context.Context, key ResolutionKey) error {
	m.entries.Remove(key.String())
	return nil
}

func (m *MemoryResolutionCache) Len() int {
	return m.entries.Len()
}
