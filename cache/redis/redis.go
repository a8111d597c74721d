// Package redis implements cache.Store over the Redis RESP protocol with a
// hand-rolled client. Entries are stored as JSON envelopes under a
// configurable key prefix; expiry stays under the cache service's control
// rather than Redis TTLs, so stale envelopes remain readable for the
// last-known-good fallback path.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adeilh/go-newscache/cache"
)

const scanBatch = 100

// Store implements cache.Store using the Redis RESP protocol.
type Store struct {
	opts   Options
	dialFn dialFunc
	pool   chan *clientConn
}

// NewStore builds a Redis-backed cache store.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	return &Store{opts: cfg, dialFn: defaultDial, pool: make(chan *clientConn, cfg.PoolSize)}
}

// WithDial allows overriding the dialer (useful for tests/mocks).
func (s *Store) WithDial(fn dialFunc) {
	if fn != nil {
		s.dialFn = fn
	}
}

// Open verifies connectivity with a PING so misconfiguration surfaces at
// cache.Service.Open rather than on the first read.
func (s *Store) Open(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return s.withConn(ctx, func(conn *clientConn) error {
		if err := s.send(conn, "PING"); err != nil {
			return err
		}
		resp, err := s.read(conn)
		if err != nil {
			return err
		}
		if msg, ok := resp.(string); ok && strings.EqualFold(msg, "PONG") {
			return nil
		}
		return fmt.Errorf("redis: unexpected PING response %v", resp)
	})
}

// Close drains and closes the pooled connections.
func (s *Store) Close() error {
	for {
		select {
		case conn := <-s.pool:
			_ = conn.Close()
		default:
			return nil
		}
	}
}

// wireEntry is the persisted JSON shape. Timestamps are unix milliseconds so
// envelopes stay inspectable with redis-cli.
type wireEntry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	WrittenAt int64           `json:"writtenAt"`
	ExpiresAt int64           `json:"expiresAt"`
	Source    string          `json:"source,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

func toWire(entry cache.Entry) wireEntry {
	return wireEntry{
		Key:       entry.Key,
		Data:      entry.Data,
		WrittenAt: entry.WrittenAt.UnixMilli(),
		ExpiresAt: entry.ExpiresAt.UnixMilli(),
		Source:    entry.Source,
		Metadata:  entry.Metadata,
	}
}

func fromWire(w wireEntry) cache.Entry {
	return cache.Entry{
		Key:       w.Key,
		Data:      w.Data,
		WrittenAt: time.UnixMilli(w.WrittenAt),
		ExpiresAt: time.UnixMilli(w.ExpiresAt),
		Source:    w.Source,
		Metadata:  w.Metadata,
	}
}

func (s *Store) Put(ctx context.Context, entry cache.Entry) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(toWire(entry))
	if err != nil {
		return fmt.Errorf("redis: marshal entry %q: %w", entry.Key, err)
	}

	return s.withConn(ctx, func(conn *clientConn) error {
		if err := s.send(conn, "SET", s.opts.KeyPrefix+entry.Key, string(payload)); err != nil {
			return err
		}
		resp, err := s.read(conn)
		if err != nil {
			return err
		}
		if msg, ok := resp.(string); ok && strings.EqualFold(msg, "OK") {
			return nil
		}
		return fmt.Errorf("redis: SET failed: %v", resp)
	})
}

func (s *Store) GetByKey(ctx context.Context, key string) (cache.Entry, error) {
	if err := ctxErr(ctx); err != nil {
		return cache.Entry{}, err
	}

	var entry cache.Entry
	err := s.withConn(ctx, func(conn *clientConn) error {
		if err := s.send(conn, "GET", s.opts.KeyPrefix+key); err != nil {
			return err
		}
		resp, err := s.read(conn)
		if err != nil {
			return err
		}
		switch v := resp.(type) {
		case nil:
			return cache.ErrNotFound
		case []byte:
			var w wireEntry
			if err := json.Unmarshal(v, &w); err != nil {
				return fmt.Errorf("redis: unmarshal entry %q: %w", key, err)
			}
			entry = fromWire(w)
			return nil
		default:
			return fmt.Errorf("redis: unexpected GET response %T", resp)
		}
	})

	return entry, err
}

func (s *Store) DeleteByKey(ctx context.Context, key string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	return s.withConn(ctx, func(conn *clientConn) error {
		if err := s.send(conn, "DEL", s.opts.KeyPrefix+key); err != nil {
			return err
		}
		resp, err := s.read(conn)
		if err != nil {
			return err
		}
		switch v := resp.(type) {
		case int64:
			if v == 0 {
				return cache.ErrNotFound
			}
			return nil
		default:
			return fmt.Errorf("redis: DEL failed: %v", resp)
		}
	})
}

func (s *Store) DeleteAll(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	pipe, err := s.Pipeline(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		pipe.Queue("DEL", key)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) ScanAll(ctx context.Context) ([]cache.Entry, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe, err := s.Pipeline(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		pipe.Queue("GET", key)
	}
	responses, err := pipe.Exec(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]cache.Entry, 0, len(responses))
	for _, resp := range responses {
		payload, ok := resp.([]byte)
		if !ok {
			// Key deleted between SCAN and GET.
			continue
		}
		var w wireEntry
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, fmt.Errorf("redis: unmarshal scanned entry: %w", err)
		}
		entries = append(entries, fromWire(w))
	}
	return entries, nil
}

// ScanExpiredBefore filters a full scan; Redis has no secondary index over
// the envelope's expiry field.
func (s *Store) ScanExpiredBefore(ctx context.Context, ts time.Time) ([]string, error) {
	entries, err := s.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, entry := range entries {
		if !entry.ExpiresAt.After(ts) {
			keys = append(keys, entry.Key)
		}
	}
	return keys, nil
}

// scanKeys walks SCAN cursors collecting every key under the store's prefix.
// Returned keys keep the prefix; callers feed them straight back into
// GET/DEL commands.
func (s *Store) scanKeys(ctx context.Context) ([]string, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var keys []string
	err := s.withConn(ctx, func(conn *clientConn) error {
		cursor := "0"
		for {
			if err := ctxErr(ctx); err != nil {
				return err
			}
			if err := s.send(conn, "SCAN", cursor, "MATCH", s.opts.KeyPrefix+"*", "COUNT", strconv.Itoa(scanBatch)); err != nil {
				return err
			}
			resp, err := s.read(conn)
			if err != nil {
				return err
			}
			next, batch, err := parseScanReply(resp)
			if err != nil {
				return err
			}
			keys = append(keys, batch...)
			if next == "0" {
				return nil
			}
			cursor = next
		}
	})
	return keys, err
}

func parseScanReply(resp any) (cursor string, keys []string, err error) {
	parts, ok := resp.([]any)
	if !ok || len(parts) != 2 {
		return "", nil, fmt.Errorf("redis: unexpected SCAN response %T", resp)
	}
	cursorBytes, ok := parts[0].([]byte)
	if !ok {
		return "", nil, errors.New("redis: malformed SCAN cursor")
	}
	batch, ok := parts[1].([]any)
	if !ok {
		return "", nil, errors.New("redis: malformed SCAN key list")
	}
	keys = make([]string, 0, len(batch))
	for _, item := range batch {
		key, ok := item.([]byte)
		if !ok {
			return "", nil, errors.New("redis: malformed SCAN key")
		}
		keys = append(keys, string(key))
	}
	return string(cursorBytes), keys, nil
}
