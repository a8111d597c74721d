// Package fetch implements the cache-first retrieval policy used by the
// news, video, and live-TV paths: fresh cache, then network with write-back,
// then any surviving cache entry, then a caller-supplied default.
//
// The policy deliberately serves a stale entry after a network failure even
// when it is older than the caller's freshness threshold: degraded data
// beats no data. There is no request de-duplication; two concurrent
// identical requests may both reach the network and the last write-back
// wins.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adeilh/go-newscache/cache"
)

// DefaultMaxAge is the freshness threshold applied when a request does not
// set one.
const DefaultMaxAge = 30 * time.Minute

// Request describes one logical retrieval. Fetch is the caller's network
// function; the policy never talks to providers itself.
type Request[T any] struct {
	// Params identify the logical query and derive the cache key.
	Params cache.KeyParams

	// Fetch retrieves fresh data from the network. Required.
	Fetch func(ctx context.Context) (T, error)

	// Default, when non-nil, is served if every other rung of the fallback
	// chain comes up empty.
	Default *T

	// ForceRefresh skips the initial cache attempt.
	ForceRefresh bool

	// MaxAge is the freshness threshold for the initial cache attempt;
	// DefaultMaxAge when zero.
	MaxAge time.Duration

	// Write-back knobs for entries created from successful fetches.
	TTL      time.Duration
	Source   string
	Metadata map[string]any
}

// Result carries the served data and how it was obtained. CacheAge is -1
// when the data did not come from a dated cache entry.
type Result[T any] struct {
	Data      T
	FromCache bool
	CacheAge  time.Duration
	Notice    string
}

// Do runs the retrieval policy for one request.
//
// A storage-layer failure during the initial cache attempt degrades to a
// network attempt; a storage failure during write-back is returned, since
// reporting success while losing the write would defeat the next request's
// cache attempt silently.
func Do[T any](ctx context.Context, svc *cache.Service, req Request[T]) (Result[T], error) {
	var zero Result[T]

	if req.Fetch == nil {
		return zero, errors.New("fetch: request requires a fetch function")
	}

	key, err := cache.DeriveKey(req.Params)
	if err != nil {
		return zero, err
	}

	maxAge := req.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	if !req.ForceRefresh {
		if result, ok := tryCache[T](ctx, svc, key, maxAge); ok {
			return result, nil
		}
	}

	fresh, fetchErr := req.Fetch(ctx)
	if fetchErr == nil {
		opts := []cache.SetOption{}
		if req.TTL > 0 {
			opts = append(opts, cache.WithTTL(req.TTL))
		}
		if req.Source != "" {
			opts = append(opts, cache.WithSource(req.Source))
		}
		if len(req.Metadata) > 0 {
			opts = append(opts, cache.WithMetadata(req.Metadata))
		}
		if err := svc.Set(ctx, key, fresh, opts...); err != nil {
			return zero, fmt.Errorf("fetch: write back %q: %w", key, err)
		}
		return Result[T]{Data: fresh, FromCache: false, CacheAge: -1}, nil
	}

	kind := Classify(fetchErr)

	// Last known good: any surviving entry, however stale.
	if result, ok := tryCache[T](ctx, svc, key, 0); ok {
		result.Notice = notice(kind, false)
		return result, nil
	}

	if req.Default != nil {
		return Result[T]{
			Data:      *req.Default,
			FromCache: true,
			CacheAge:  -1,
			Notice:    notice(kind, true),
		}, nil
	}

	return zero, fetchErr
}

// tryCache attempts to serve from the cache. A maxAge of zero disables the
// freshness check (the stale-fallback rung). Store failures and misses both
// report no result; the caller moves down the chain.
func tryCache[T any](ctx context.Context, svc *cache.Service, key string, maxAge time.Duration) (Result[T], bool) {
	age, err := svc.AgeByKey(ctx, key)
	if err != nil {
		return Result[T]{}, false
	}
	if maxAge > 0 && age > maxAge {
		return Result[T]{}, false
	}

	data, err := cache.GetJSON[T](ctx, svc, key)
	if err != nil {
		// Expired between the age check and the read, or the store failed.
		return Result[T]{}, false
	}
	return Result[T]{Data: data, FromCache: true, CacheAge: age}, true
}
