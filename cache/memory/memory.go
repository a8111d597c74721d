// Package memory provides an in-process cache.Store. Nothing survives a
// restart, which makes it the backend of choice for tests and for callers
// that only want quota resilience within a single run.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/adeilh/go-newscache/cache"
)

// Store keeps entries in a mutex-guarded map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]cache.Entry
}

// NewStore builds an empty in-memory store.
func NewStore() *Store {
	return &Store{entries: make(map[string]cache.Entry)}
}

func (s *Store) Put(ctx context.Context, entry cache.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = copyEntry(entry)
	return nil
}

func (s *Store) GetByKey(ctx context.Context, key string) (cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return cache.Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return cache.Entry{}, cache.ErrNotFound
	}
	return copyEntry(entry), nil
}

func (s *Store) DeleteByKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return cache.ErrNotFound
	}
	delete(s.entries, key)
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]cache.Entry)
	return nil
}

func (s *Store) ScanAll(ctx context.Context) ([]cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]cache.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, copyEntry(entry))
	}
	return entries, nil
}

func (s *Store) ScanExpiredBefore(ctx context.Context, ts time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for key, entry := range s.entries {
		if !entry.ExpiresAt.After(ts) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// copyEntry detaches the mutable fields so callers cannot alias store state.
func copyEntry(entry cache.Entry) cache.Entry {
	out := entry
	out.Data = append([]byte(nil), entry.Data...)
	if entry.Metadata != nil {
		out.Metadata = make(map[string]any, len(entry.Metadata))
		for k, v := range entry.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
