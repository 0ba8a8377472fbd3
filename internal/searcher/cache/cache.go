// Package cache memoizes retrieval results in a bounded in-process LRU.
// Concurrent misses for the same key are collapsed into one computation.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/metrics"
)

// Key identifies one cacheable retrieval. Generation scopes entries to the
// index snapshot they were computed on.
type Key struct {
	Query      string
	TopK       int
	Generation uint64
}

func (k Key) String() string {
	return fmt.Sprintf("g%d:k%d:%s", k.Generation, k.TopK, k.Query)
}

// ComputeFunc produces a value and says whether it may be stored. The
// context it receives carries the first caller's values but not its
// cancellation, since the result is shared with every collapsed caller.
type ComputeFunc[V any] func(ctx context.Context) (value V, cacheable bool, err error)

type QueryCache[V any] struct {
	entries *lru.Cache[string, V]
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache holding at most size entries. A non-positive size
// disables storage but still collapses concurrent computations.
func New[V any](size int, m *metrics.Metrics) (*QueryCache[V], error) {
	c := &QueryCache[V]{
		metrics: m,
		logger:  slog.Default().With("component", "retrieval-cache"),
	}
	if size > 0 {
		entries, err := lru.New[string, V](size)
		if err != nil {
			return nil, fmt.Errorf("creating lru cache: %w", err)
		}
		c.entries = entries
	}
	return c, nil
}

func (c *QueryCache[V]) Get(key Key) (V, bool) {
	var zero V
	if c.entries == nil {
		c.recordMiss()
		return zero, false
	}
	v, ok := c.entries.Get(key.String())
	if !ok {
		c.recordMiss()
		return zero, false
	}
	c.recordHit()
	return v, true
}

func (c *QueryCache[V]) Set(key Key, v V) {
	if c.entries == nil {
		return
	}
	c.entries.Add(key.String(), v)
}

// GetOrCompute returns the cached value for key, or runs compute once for
// all concurrent callers asking for the same key. The boolean reports a
// cache hit. A caller whose ctx ends stops waiting and gets ctx.Err();
// the computation carries on for the others.
func (c *QueryCache[V]) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc[V]) (V, bool, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		if c.entries != nil {
			if v, ok := c.entries.Get(key.String()); ok {
				return v, nil
			}
		}
		v, cacheable, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if cacheable {
			c.Set(key, v)
		}
		return v, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(V), false, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// Invalidate drops every entry.
func (c *QueryCache[V]) Invalidate() {
	if c.entries == nil {
		return
	}
	n := c.entries.Len()
	c.entries.Purge()
	c.logger.Info("cache invalidated", "entries_dropped", n)
}

func (c *QueryCache[V]) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *QueryCache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache[V]) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache[V]) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
