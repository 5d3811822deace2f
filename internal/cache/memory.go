package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	memNumCounters = 1e5
	memMaxCost     = 64 << 20 // 64MB
	memBufferItems = 64
)

// Memory is an in-process cache backend built on ristretto.
type Memory struct {
	cache *ristretto.Cache
}

// Verify at compile time that Memory implements Store.
var _ Store = (*Memory)(nil)

// NewMemory creates an in-memory cache backend.
func NewMemory() (*Memory, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: memNumCounters,
		MaxCost:     memMaxCost,
		BufferItems: memBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{cache: c}, nil
}

// Lookup returns the entry for key, or a miss if absent or expired.
func (m *Memory) Lookup(_ context.Context, key string) (*Entry, bool) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(Entry)
	if !ok {
		return nil, false
	}
	return &e, true
}

// Put stores the entry with the given TTL. Ristretto applies writes from a
// buffer, so we wait for the write to land before returning; the entry must
// be visible to the next identical request.
func (m *Memory) Put(_ context.Context, key string, e Entry, ttl time.Duration) error {
	cost := int64(len(key) + len(e.Text) + len(e.ImageURL))
	m.cache.SetWithTTL(key, e, cost, ttl)
	m.cache.Wait()
	return nil
}

// Close releases the cache's internal resources.
func (m *Memory) Close() {
	m.cache.Close()
}
