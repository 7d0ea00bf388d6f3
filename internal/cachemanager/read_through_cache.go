package cachemanager

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zjrosen/skywidgets/internal/log"
)

// Loader produces the value for a cache miss.
type Loader[I, V any] func(ctx context.Context, input I) (V, error)

// ReadThroughCache loads values on a miss and stores them. Concurrent misses
// for the same key wait for one load instead of each reading the stream.
type ReadThroughCache[K comparable, V any, I any] struct {
	cache  CacheManager[K, V]
	load   Loader[I, V]
	bypass bool

	inflight singleflight.Group
	hits     atomic.Int64
	misses   atomic.Int64
}

// NewReadThroughCache wraps cache with load. With bypass every call goes
// straight to load and nothing is stored.
func NewReadThroughCache[K comparable, V any, I any](cache CacheManager[K, V], load Loader[I, V], bypass bool) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{cache: cache, load: load, bypass: bypass}
}

// Get returns the cached value for key or loads it from input.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.bypass {
		return r.load(ctx, input)
	}
	if value, ok := r.cache.Get(ctx, key); ok {
		r.hits.Add(1)
		return value, nil
	}
	return r.fill(ctx, key, input, ttl)
}

// GetWithRefresh is Get, extending the TTL of a hit.
func (r *ReadThroughCache[K, V, I]) GetWithRefresh(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.bypass {
		return r.load(ctx, input)
	}
	if value, ok := r.cache.GetWithRefresh(ctx, key, ttl); ok {
		r.hits.Add(1)
		return value, nil
	}
	return r.fill(ctx, key, input, ttl)
}

func (r *ReadThroughCache[K, V, I]) fill(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	r.misses.Add(1)
	res, err, shared := r.inflight.Do(fmt.Sprint(key), func() (any, error) {
		value, err := r.load(ctx, input)
		if err != nil {
			return value, err
		}
		r.cache.Set(ctx, key, value, ttl)
		return value, nil
	})
	if shared {
		log.Debug(log.CatCache, "Joined in-flight load", "key", key)
	}
	value, _ := res.(V)
	return value, err
}

// Stats returns the hit and miss counts. Bypassed calls count as neither.
func (r *ReadThroughCache[K, V, I]) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}
