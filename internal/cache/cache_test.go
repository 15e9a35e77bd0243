package cache

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/queryir"
	"github.com/roach88/lapis/internal/silo"
	"github.com/roach88/lapis/internal/testutil"
)

// mapBackend applies sets synchronously.
type mapBackend struct {
	mu      sync.Mutex
	entries map[string]Entry
	purges  int
}

func newMapBackend() *mapBackend {
	return &mapBackend{entries: map[string]Entry{}}
}

func (b *mapBackend) Get(_ context.Context, key string) (Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	return e, ok, nil
}

func (b *mapBackend) Set(_ context.Context, key string, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = e
	return nil
}

func (b *mapBackend) Purge(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = map[string]Entry{}
	b.purges++
	return nil
}

func (b *mapBackend) Close() error { return nil }

// refusingBackend declines every entry.
type refusingBackend struct{ mapBackend }

func (*refusingBackend) Set(context.Context, string, Entry) error { return ErrNotStored }

func aggregated(country string) queryir.Query {
	return queryir.Query{
		Action:           queryir.Aggregated{},
		FilterExpression: queryir.StringEquals{Column: "country", Value: ir.Str(country)},
	}
}

func lines(t *testing.T, res *silo.Result) []string {
	t.Helper()
	all, err := res.Collect()
	require.NoError(t, err)
	out := make([]string, len(all))
	for i, l := range all {
		out[i] = string(l)
	}
	return out
}

func TestCache_SecondIdenticalRequestIsServedFromCache(t *testing.T) {
	fake := testutil.NewFakeSilo(t)
	fake.SetDataVersion("100")
	fake.Rows(`{"count":42}`)
	c := New(silo.New(fake.URL), newMapBackend(), nil)
	ctx := context.Background()

	first, err := c.Query(ctx, aggregated("Switzerland"))
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, []string{`{"count":42}`}, lines(t, first))

	second, err := c.Query(ctx, aggregated("Switzerland"))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "100", second.DataVersion)
	assert.Equal(t, []string{`{"count":42}`}, lines(t, second))

	assert.Equal(t, 1, fake.Calls("/query"))
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestCache_DifferentQueriesDoNotShareEntries(t *testing.T) {
	fake := testutil.NewFakeSilo(t)
	c := New(silo.New(fake.URL), newMapBackend(), nil)
	ctx := context.Background()

	_, err := c.Query(ctx, aggregated("Switzerland"))
	require.NoError(t, err)
	_, err = c.Query(ctx, aggregated("Germany"))
	require.NoError(t, err)

	assert.Equal(t, 2, fake.Calls("/query"))
}

func TestCache_RandomizedQueriesAlwaysReachEngine(t *testing.T) {
	fake := testutil.NewFakeSilo(t)
	c := New(silo.New(fake.URL), newMapBackend(), nil)
	ctx := context.Background()
	seed := int64(3)

	q := queryir.Query{
		Action:           queryir.Aggregated{Common: queryir.NewCommon(ir.RandomOrder{Seed: &seed}, nil, nil)},
		FilterExpression: queryir.True{},
	}
	for i := 0; i < 3; i++ {
		res, err := c.Query(ctx, q)
		require.NoError(t, err)
		assert.False(t, res.Cached)
		res.Close()
	}

	assert.Equal(t, 3, fake.Calls("/query"))
	assert.Equal(t, int64(3), c.Stats().Bypassed)
}

func TestCache_NonCacheableActionsAlwaysReachEngine(t *testing.T) {
	fake := testutil.NewFakeSilo(t)
	backend := newMapBackend()
	c := New(silo.New(fake.URL), backend, nil)
	ctx := context.Background()

	q := queryir.Query{Action: queryir.Details{}, FilterExpression: queryir.True{}}
	for i := 0; i < 2; i++ {
		res, err := c.Query(ctx, q)
		require.NoError(t, err)
		res.Close()
	}

	assert.Equal(t, 2, fake.Calls("/query"))
	assert.Empty(t, backend.entries)
}

func TestCache_DataVersionChangePurges(t *testing.T) {
	fake := testutil.NewFakeSilo(t)
	backend := newMapBackend()
	c := New(silo.New(fake.URL), backend, nil)
	ctx := context.Background()

	fake.SetDataVersion("1")
	_, err := c.Query(ctx, aggregated("Switzerland"))
	require.NoError(t, err)

	fake.SetDataVersion("2")
	res, err := c.Query(ctx, aggregated("Germany"))
	require.NoError(t, err)
	assert.Equal(t, "2", res.DataVersion)
	assert.Equal(t, 1, backend.purges)

	res, err = c.Query(ctx, aggregated("Switzerland"))
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "2", res.DataVersion)

	assert.Equal(t, 3, fake.Calls("/query"))
	assert.Equal(t, int64(1), c.Stats().Invalidations)
}

func TestCache_StaleEntryIsNotServed(t *testing.T) {
	fake := testutil.NewFakeSilo(t)
	fake.SetDataVersion("2")
	backend := newMapBackend()
	c := New(silo.New(fake.URL), backend, nil)
	ctx := context.Background()

	// Learn the current version from an uncached call.
	res, err := c.Query(ctx, queryir.Query{Action: queryir.Details{}, FilterExpression: queryir.True{}})
	require.NoError(t, err)
	res.Close()

	key, err := Key(aggregated("Switzerland"))
	require.NoError(t, err)
	backend.entries[key] = Entry{DataVersion: "1", Lines: [][]byte{[]byte(`{"count":1}`)}}

	res, err = c.Query(ctx, aggregated("Switzerland"))
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "2", res.DataVersion)
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	fake := testutil.NewFakeSilo(t)
	c := New(silo.New(fake.URL), newMapBackend(), nil)
	ctx := context.Background()

	fake.Fail(http.StatusServiceUnavailable, "5", `{"error":"Unavailable","message":"loading"}`)
	_, err := c.Query(ctx, aggregated("Switzerland"))
	require.Error(t, err)

	fake.Rows(`{"count":1}`)
	res, err := c.Query(ctx, aggregated("Switzerland"))
	require.NoError(t, err)
	assert.Equal(t, []string{`{"count":1}`}, lines(t, res))
	assert.Equal(t, 2, fake.Calls("/query"))
}

func TestCache_ConcurrentMissesShareOneCall(t *testing.T) {
	fake := testutil.NewFakeSilo(t)
	release := make(chan struct{})
	var once sync.Once
	releaseAll := func() { once.Do(func() { close(release) }) }
	defer releaseAll()
	fake.OnQuery(func(string) testutil.SiloResponse {
		<-release
		return testutil.SiloResponse{Status: http.StatusOK, Body: `{"count":7}` + "\n"}
	})
	c := New(silo.New(fake.URL), newMapBackend(), nil)

	const callers = 5
	var wg sync.WaitGroup
	results := make([][]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Query(context.Background(), aggregated("Switzerland"))
			if !assert.NoError(t, err) {
				return
			}
			all, err := res.Collect()
			if assert.NoError(t, err) {
				for _, l := range all {
					results[i] = append(results[i], string(l))
				}
			}
		}(i)
	}

	require.Eventually(t, func() bool { return c.Stats().Misses == callers }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	releaseAll()
	wg.Wait()

	assert.Equal(t, 1, fake.Calls("/query"))
	for _, r := range results {
		assert.Equal(t, []string{`{"count":7}`}, r)
	}
}

func TestKey_IsStablePerQuery(t *testing.T) {
	a, err := Key(aggregated("Switzerland"))
	require.NoError(t, err)
	b, err := Key(aggregated("Switzerland"))
	require.NoError(t, err)
	other, err := Key(aggregated("Germany"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.Len(t, a, 64)
}

func TestKey_DistinguishesUnicodeForms(t *testing.T) {
	composed, err := Key(aggregated("Z\u00fcrich"))
	require.NoError(t, err)
	decomposed, err := Key(aggregated("Zu\u0308rich"))
	require.NoError(t, err)

	assert.NotEqual(t, composed, decomposed)
}

func TestCache_NotStoredEntryIsStillServed(t *testing.T) {
	fake := testutil.NewFakeSilo(t)
	fake.Rows(`{"count":42}`)
	c := New(silo.New(fake.URL), &refusingBackend{mapBackend{entries: map[string]Entry{}}}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := c.Query(ctx, aggregated("Switzerland"))
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.Equal(t, []string{`{"count":42}`}, lines(t, res))
	}
	assert.Equal(t, 2, fake.Calls("/query"))
}
