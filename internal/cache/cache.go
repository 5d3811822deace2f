// Package cache provides the advisory result cache keyed by prompt
// fingerprint. The cache exists purely to collapse repeated identical
// requests into a single paid generation call; it is never a source of
// truth, so its unavailability degrades cost and latency, not correctness.
package cache

import (
	"context"
	"time"
)

// Entry is the cached outcome of one successful generation.
type Entry struct {
	Text     string `json:"ai_text"`
	ImageURL string `json:"image_url"`
}

// Store is implemented by cache backends.
//
// Lookup fails closed: a backend error and an expired entry both read as a
// miss, so the caller always has a defined fallback path. Put is
// best-effort; callers log and swallow a returned error rather than failing
// the request that already computed a result.
type Store interface {
	Lookup(ctx context.Context, key string) (*Entry, bool)
	Put(ctx context.Context, key string, e Entry, ttl time.Duration) error
}
