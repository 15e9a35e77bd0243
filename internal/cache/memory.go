package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Memory is an in-process backend bounded by total entry size. Eviction is
// ristretto's TinyLFU admission with sampled LFU eviction; entries
// optionally expire after a TTL.
type Memory struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewMemory returns a backend holding at most maxCost bytes of entries.
// A zero ttl keeps entries until evicted.
func NewMemory(maxCost int64, ttl time.Duration) (*Memory, error) {
	if maxCost <= 0 {
		return nil, fmt.Errorf("cache: maxCost must be positive, got %d", maxCost)
	}
	// About ten counters per expected entry; results average a few KiB.
	counters := maxCost / 512
	if counters < 1000 {
		counters = 1000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        counters,
		MaxCost:            maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize memory cache: %w", err)
	}
	return &Memory{cache: c, ttl: ttl}, nil
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	return v.(Entry), true, nil
}

// Set stores e and returns once the entry is visible to Get. It returns
// ErrNotStored when ristretto drops the set under contention or its
// admission policy rejects the entry.
func (m *Memory) Set(_ context.Context, key string, e Entry) error {
	if !m.cache.SetWithTTL(key, e, e.Cost(), m.ttl) {
		return ErrNotStored
	}
	m.cache.Wait()
	if _, ok := m.cache.Get(key); !ok {
		return ErrNotStored
	}
	return nil
}

func (m *Memory) Purge(context.Context) error {
	m.cache.Clear()
	return nil
}

func (m *Memory) Close() error {
	m.cache.Close()
	return nil
}

var _ Backend = (*Memory)(nil)
