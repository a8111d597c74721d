package fetch_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/adeilh/go-newscache/cache"
	"github.com/adeilh/go-newscache/cache/memory"
	"github.com/adeilh/go-newscache/fetch"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openService(t *testing.T) (*cache.Service, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	svc := cache.New(memory.NewStore(), cache.WithClock(clock.Now))
	if err := svc.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc, clock
}

type countingFetch struct {
	calls int
	data  []string
	err   error
}

func (f *countingFetch) fn(ctx context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func articleParams() cache.KeyParams {
	return cache.KeyParams{"type": "articles", "country": "us", "query": "election"}
}

func TestDoHappyPathThenCached(t *testing.T) {
	svc, clock := openService(t)
	ctx := context.Background()
	network := &countingFetch{data: []string{"a1", "a2"}}

	result, err := fetch.Do(ctx, svc, fetch.Request[[]string]{
		Params: articleParams(),
		Fetch:  network.fn,
		TTL:    time.Hour,
		Source: "news-api",
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !reflect.DeepEqual(result.Data, []string{"a1", "a2"}) {
		t.Fatalf("Data = %v", result.Data)
	}
	if result.FromCache {
		t.Fatalf("first call should not report cache")
	}
	if result.Notice != "" {
		t.Fatalf("Notice = %q, want empty", result.Notice)
	}
	if network.calls != 1 {
		t.Fatalf("network called %d times, want 1", network.calls)
	}

	// Second call within maxAge must be served from cache without touching
	// the network, even if the network would now fail.
	network.err = errors.New("network gone")
	clock.Advance(time.Minute)

	result, err = fetch.Do(ctx, svc, fetch.Request[[]string]{
		Params: articleParams(),
		Fetch:  network.fn,
		MaxAge: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !result.FromCache {
		t.Fatalf("second call should be served from cache")
	}
	if result.CacheAge != time.Minute {
		t.Fatalf("CacheAge = %v, want %v", result.CacheAge, time.Minute)
	}
	if !reflect.DeepEqual(result.Data, []string{"a1", "a2"}) {
		t.Fatalf("Data = %v", result.Data)
	}
	if network.calls != 1 {
		t.Fatalf("network called %d times, want still 1", network.calls)
	}
}

func TestDoForceRefreshSkipsCache(t *testing.T) {
	svc, _ := openService(t)
	ctx := context.Background()
	network := &countingFetch{data: []string{"fresh"}}

	if _, err := fetch.Do(ctx, svc, fetch.Request[[]string]{Params: articleParams(), Fetch: network.fn}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	network.data = []string{"fresher"}
	result, err := fetch.Do(ctx, svc, fetch.Request[[]string]{
		Params:       articleParams(),
		Fetch:        network.fn,
		ForceRefresh: true,
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result.FromCache {
		t.Fatalf("forced refresh served from cache")
	}
	if !reflect.DeepEqual(result.Data, []string{"fresher"}) {
		t.Fatalf("Data = %v", result.Data)
	}
	if network.calls != 2 {
		t.Fatalf("network called %d times, want 2", network.calls)
	}
}

func TestDoStaleCacheNeedsNetwork(t *testing.T) {
	svc, clock := openService(t)
	ctx := context.Background()
	network := &countingFetch{data: []string{"old"}}

	if _, err := fetch.Do(ctx, svc, fetch.Request[[]string]{Params: articleParams(), Fetch: network.fn, TTL: 24 * time.Hour}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	// Entry is now older than maxAge but still within TTL.
	clock.Advance(45 * time.Minute)
	network.data = []string{"new"}

	result, err := fetch.Do(ctx, svc, fetch.Request[[]string]{
		Params: articleParams(),
		Fetch:  network.fn,
		MaxAge: 30 * time.Minute,
		TTL:    24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result.FromCache {
		t.Fatalf("stale entry served despite available network")
	}
	if !reflect.DeepEqual(result.Data, []string{"new"}) {
		t.Fatalf("Data = %v", result.Data)
	}
	if network.calls != 2 {
		t.Fatalf("network called %d times, want 2", network.calls)
	}
}

func TestDoQuotaFallbackToStaleCache(t *testing.T) {
	svc, clock := openService(t)
	ctx := context.Background()
	network := &countingFetch{data: []string{"d-old"}}

	if _, err := fetch.Do(ctx, svc, fetch.Request[[]string]{Params: articleParams(), Fetch: network.fn, TTL: 24 * time.Hour}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	// Older than maxAge; the network now reports quota exhaustion. The
	// stale entry must be served anyway, with a quota notice.
	clock.Advance(45 * time.Minute)
	network.err = errors.New("API rate limit exceeded (429)")

	result, err := fetch.Do(ctx, svc, fetch.Request[[]string]{
		Params: articleParams(),
		Fetch:  network.fn,
		MaxAge: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !result.FromCache {
		t.Fatalf("expected stale cache fallback")
	}
	if !reflect.DeepEqual(result.Data, []string{"d-old"}) {
		t.Fatalf("Data = %v", result.Data)
	}
	if result.CacheAge != 45*time.Minute {
		t.Fatalf("CacheAge = %v, want %v", result.CacheAge, 45*time.Minute)
	}
	if result.Notice != "Daily API limit reached. Showing cached data." {
		t.Fatalf("Notice = %q", result.Notice)
	}
}

func TestDoTotalFailureServesDefault(t *testing.T) {
	svc, _ := openService(t)
	ctx := context.Background()
	network := &countingFetch{err: errors.New("service unavailable")}
	fallback := []string{"sample-1", "sample-2"}

	result, err := fetch.Do(ctx, svc, fetch.Request[[]string]{
		Params:  articleParams(),
		Fetch:   network.fn,
		Default: &fallback,
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !result.FromCache {
		t.Fatalf("default serve should be flagged as non-fresh")
	}
	if !reflect.DeepEqual(result.Data, fallback) {
		t.Fatalf("Data = %v", result.Data)
	}
	if result.CacheAge != -1 {
		t.Fatalf("CacheAge = %v, want -1", result.CacheAge)
	}
	if result.Notice != "Service temporarily unavailable. Showing sample data." {
		t.Fatalf("Notice = %q", result.Notice)
	}
}

func TestDoTotalFailureWithoutDefault(t *testing.T) {
	svc, _ := openService(t)
	ctx := context.Background()
	netErr := errors.New("boom")
	network := &countingFetch{err: netErr}

	_, err := fetch.Do(ctx, svc, fetch.Request[[]string]{
		Params: articleParams(),
		Fetch:  network.fn,
	})
	if !errors.Is(err, netErr) {
		t.Fatalf("expected original network error, got %v", err)
	}
}

func TestDoExpiredEntryDoesNotServeFallback(t *testing.T) {
	svc, clock := openService(t)
	ctx := context.Background()
	network := &countingFetch{data: []string{"short-lived"}}

	if _, err := fetch.Do(ctx, svc, fetch.Request[[]string]{Params: articleParams(), Fetch: network.fn, TTL: time.Minute}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	// Past TTL the entry is logically absent, so even the last-known-good
	// rung cannot serve it.
	clock.Advance(2 * time.Minute)
	network.err = errors.New("boom")
	fallback := []string{"sample"}

	result, err := fetch.Do(ctx, svc, fetch.Request[[]string]{
		Params:  articleParams(),
		Fetch:   network.fn,
		Default: &fallback,
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !reflect.DeepEqual(result.Data, fallback) {
		t.Fatalf("Data = %v, want default", result.Data)
	}
}

func TestDoRequiresFetch(t *testing.T) {
	svc, _ := openService(t)
	if _, err := fetch.Do(context.Background(), svc, fetch.Request[[]string]{Params: articleParams()}); err == nil {
		t.Fatalf("expected error for missing fetch function")
	}
}

func TestDoWriteBackVisibleToNextRequest(t *testing.T) {
	svc, _ := openService(t)
	ctx := context.Background()
	network := &countingFetch{data: []string{"v"}}

	if _, err := fetch.Do(ctx, svc, fetch.Request[[]string]{Params: articleParams(), Fetch: network.fn, TTL: time.Hour, Source: "news-api"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	key, err := cache.DeriveKey(articleParams())
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	got, err := cache.GetJSON[[]string](ctx, svc, key)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"v"}) {
		t.Fatalf("cache content = %v", got)
	}
}
