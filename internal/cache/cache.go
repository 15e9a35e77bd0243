// Package cache memoizes engine results.
//
// Only queries whose action is cacheable and not randomized are eligible
// (queryir.Query.CacheEligible). The key is the hash of the canonical query
// serialization (ir.QueryKey). An entry holds the raw response lines
// together with the data version they were computed from, so a hit can
// restore the version for the response header.
//
// The engine's data version is tracked across calls. When any fresh call
// reports a version different from the last one seen, every entry is
// purged before the new one is stored. Concurrent misses for the same key
// share one engine call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/queryir"
	"github.com/roach88/lapis/internal/silo"
)

// Entry is one cached engine answer.
type Entry struct {
	DataVersion string
	Lines       [][]byte
}

// Cost approximates the memory held by the entry in bytes.
func (e Entry) Cost() int64 {
	cost := int64(len(e.DataVersion))
	for _, l := range e.Lines {
		cost += int64(len(l)) + 24
	}
	return cost
}

// ErrNotStored is returned by a Backend whose admission policy declined
// an entry. The answer is still served; it is just not cached.
var ErrNotStored = errors.New("cache: entry not stored")

// Backend stores entries by key. Implementations must be safe for
// concurrent use. A successful Set is visible to the next Get.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Purge(ctx context.Context) error
	Close() error
}

// Stats counts cache outcomes since start.
type Stats struct {
	Hits          int64
	Misses        int64
	Bypassed      int64
	Invalidations int64
}

// Cache wraps a silo.Querier. It implements silo.Querier itself.
type Cache struct {
	next    silo.Querier
	backend Backend
	logger  *slog.Logger
	group   singleflight.Group

	mu          sync.Mutex
	dataVersion string

	hits, misses, bypassed, invalidations atomic.Int64
}

// New returns a cache in front of next.
func New(next silo.Querier, backend Backend, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{next: next, backend: backend, logger: logger}
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Bypassed:      c.bypassed.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Query serves q from the cache when possible. Ineligible queries always
// reach the engine and are streamed without being stored.
func (c *Cache) Query(ctx context.Context, q queryir.Query) (*silo.Result, error) {
	if !q.CacheEligible() {
		c.bypassed.Add(1)
		res, err := c.next.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		if err := c.observe(ctx, res.DataVersion); err != nil {
			res.Close()
			return nil, err
		}
		return res, nil
	}

	key, err := Key(q)
	if err != nil {
		return nil, err
	}

	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if ok && c.current(entry.DataVersion) {
		c.hits.Add(1)
		c.logger.Debug("cache hit", "key", key, "data_version", entry.DataVersion)
		res := silo.NewResult(entry.DataVersion, entry.Lines)
		res.Cached = true
		return res, nil
	}

	c.misses.Add(1)
	c.logger.Debug("cache miss", "key", key)
	v, err, _ := c.group.Do(key, func() (any, error) {
		// The shared call must outlive any one caller giving up.
		return c.fill(context.WithoutCancel(ctx), key, q)
	})
	if err != nil {
		return nil, err
	}
	e := v.(Entry)
	return silo.NewResult(e.DataVersion, e.Lines), nil
}

func (c *Cache) fill(ctx context.Context, key string, q queryir.Query) (Entry, error) {
	res, err := c.next.Query(ctx, q)
	if err != nil {
		return Entry{}, err
	}
	lines, err := res.Collect()
	if err != nil {
		return Entry{}, err
	}
	e := Entry{DataVersion: res.DataVersion, Lines: lines}

	if err := c.observe(ctx, e.DataVersion); err != nil {
		return Entry{}, err
	}
	switch err := c.backend.Set(ctx, key, e); {
	case errors.Is(err, ErrNotStored):
		c.logger.Debug("cache entry not admitted", "key", key, "cost", e.Cost())
	case err != nil:
		return Entry{}, fmt.Errorf("cache set: %w", err)
	}
	return e, nil
}

// current reports whether an entry's version may be served. Before the
// first engine call any version is accepted.
func (c *Cache) current(version string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataVersion == "" || c.dataVersion == version
}

// observe records the version of a fresh engine answer and purges the
// backend when it changed.
func (c *Cache) observe(ctx context.Context, version string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version == "" || version == c.dataVersion {
		return nil
	}
	previous := c.dataVersion
	c.dataVersion = version
	if previous == "" {
		return nil
	}

	c.invalidations.Add(1)
	c.logger.Info("data version changed, purging cache", "previous", previous, "current", version)
	if err := c.backend.Purge(ctx); err != nil {
		return fmt.Errorf("cache purge: %w", err)
	}
	return nil
}

// Key is the cache key of q.
func Key(q queryir.Query) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encoding query: %w", err)
	}
	return ir.QueryKey(data)
}
