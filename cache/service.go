package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

// Service is the expiry-aware read/write API over a Store. It owns TTL
// bookkeeping and lazy expiry; the Store underneath persists envelopes
// verbatim.
//
// A Service must be opened with Open before use and every method fails with
// ErrClosed outside the Open/Close window. Construct one instance per
// logical cache and pass it to whatever needs it; there is no package-level
// singleton.
type Service struct {
	store  Store
	ttl    time.Duration
	clock  func() time.Time
	logger *log.Logger

	mu   sync.RWMutex
	open bool
}

// New builds a Service over the given store. The store is not touched until
// Open is called.
func New(store Store, opts ...Option) *Service {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Service{
		store:  store,
		ttl:    cfg.DefaultTTL,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
}

// Open initializes the underlying store (schema creation and the like) and
// marks the service ready. Calling Open on an already-open service is a
// no-op.
func (s *Service) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	if s.store == nil {
		return errors.New("cache: service requires a store")
	}
	if opener, ok := s.store.(Opener); ok {
		if err := opener.Open(ctx); err != nil {
			return fmt.Errorf("cache: open store: %w", err)
		}
	}
	s.open = true
	return nil
}

// Close marks the service unusable and releases the store's resources when
// it holds any.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	if closer, ok := s.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return ErrClosed
	}
	return nil
}

// Set marshals data and upserts it under key. WrittenAt is the current
// clock reading and ExpiresAt is WrittenAt plus the TTL (the service default
// when none is given). A negative TTL is rejected.
func (s *Service) Set(ctx context.Context, key string, data any, opts ...SetOption) error {
	if err := s.ready(); err != nil {
		return err
	}

	cfg := SetOptions{TTL: s.ttl, Source: "unknown"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.ttlSet && cfg.TTL < 0 {
		return fmt.Errorf("cache: negative ttl %v", cfg.TTL)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cache: marshal payload for %q: %w", key, err)
	}

	now := s.clock()
	entry := Entry{
		Key:       key,
		Data:      payload,
		WrittenAt: now,
		ExpiresAt: now.Add(cfg.TTL),
		Source:    cfg.Source,
		Metadata:  cfg.Metadata,
	}
	if err := s.store.Put(ctx, entry); err != nil {
		return err
	}
	s.logger.Debugf("cached %q (ttl %v, source %s)", key, cfg.TTL, cfg.Source)
	return nil
}

// Get returns the payload stored under key, or ErrNotFound when the key is
// absent. An entry past its expiry is deleted on the way out and reported as
// absent; a rival delete racing the sweep is harmless.
func (s *Service) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	entry, err := s.store.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if entry.Expired(s.clock()) {
		s.logger.Debugf("entry %q expired, deleting", key)
		if err := s.store.DeleteByKey(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return entry.Data, nil
}

// GetJSON reads the payload at key and unmarshals it into T. Misses surface
// as ErrNotFound, exactly like Get.
func GetJSON[T any](ctx context.Context, s *Service, key string) (T, error) {
	var out T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("cache: unmarshal payload for %q: %w", key, err)
	}
	return out, nil
}

// Delete removes the entry at key. Deleting an absent key returns
// ErrNotFound.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.DeleteByKey(ctx, key)
}

// Clear removes every entry.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.DeleteAll(ctx)
}

// CleanupExpired sweeps all entries whose expiry is at or before now and
// returns how many were removed. Safe to call repeatedly and concurrently
// with reads: a key already gone by the time the sweep reaches it is simply
// not counted.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	keys, err := s.store.ScanExpiredBefore(ctx, s.clock())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if err := s.store.DeleteByKey(ctx, key); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debugf("cleaned up %d expired entries", removed)
	}
	return removed, nil
}

// Stats summarizes the store contents. The numbers are raw: expired entries
// that have not been swept yet still count.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := s.ready(); err != nil {
		return Stats{}, err
	}

	entries, err := s.store.ScanAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{TotalEntries: len(entries)}
	for _, entry := range entries {
		stats.TotalSize += entrySize(entry)
		if stats.OldestEntry.IsZero() || entry.WrittenAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.WrittenAt
		}
		if entry.WrittenAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.WrittenAt
		}
	}
	return stats, nil
}

// Age reports how long ago the entry for the given logical query was
// written. The raw envelope is consulted, so an expired-but-unswept entry
// still reports its age; an absent key returns ErrNotFound.
func (s *Service) Age(ctx context.Context, params KeyParams) (time.Duration, error) {
	key, err := DeriveKey(params)
	if err != nil {
		return 0, err
	}
	return s.AgeByKey(ctx, key)
}

// AgeByKey is Age for a pre-derived key.
func (s *Service) AgeByKey(ctx context.Context, key string) (time.Duration, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	entry, err := s.store.GetByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	return s.clock().Sub(entry.WrittenAt), nil
}

// entrySize approximates the serialized footprint of an entry.
func entrySize(entry Entry) int64 {
	size := int64(len(entry.Key) + len(entry.Data) + len(entry.Source))
	if len(entry.Metadata) > 0 {
		if meta, err := json.Marshal(entry.Metadata); err == nil {
			size += int64(len(meta))
		}
	}
	return size
}
