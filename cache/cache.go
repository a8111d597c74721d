package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("cache: key not found")
	ErrClosed   = errors.New("cache: service not open")
)

// Entry is the envelope persisted for every cached payload. Data holds the
// payload as canonical JSON; Source and Metadata are diagnostic only and
// never influence expiry or eviction.
type Entry struct {
	Key       string
	Data      json.RawMessage
	WrittenAt time.Time
	ExpiresAt time.Time
	Source    string
	Metadata  map[string]any
}

// Expired reports whether the entry is logically absent at the given instant.
func (e Entry) Expired(at time.Time) bool {
	return at.After(e.ExpiresAt)
}

// Store represents durable keyed storage of cache entries that can be backed
// by memory, SQLite, Postgres, Redis, or any other KV store. Stores persist
// entries verbatim: expiry filtering is the Service's job, so GetByKey and
// ScanAll return entries whose ExpiresAt is already in the past.
//
// Implementations must treat Put as an upsert and report a missing key from
// GetByKey and DeleteByKey with ErrNotFound. Any other error means the
// storage layer itself failed and is propagated to callers untouched.
type Store interface {
	Put(ctx context.Context, entry Entry) error
	GetByKey(ctx context.Context, key string) (Entry, error)
	DeleteByKey(ctx context.Context, key string) error
	DeleteAll(ctx context.Context) error

	// ScanAll returns every stored entry in unspecified order.
	ScanAll(ctx context.Context) ([]Entry, error)

	// ScanExpiredBefore returns the keys of entries whose ExpiresAt is at or
	// before ts. Backends without an expiry index may fall back to a full
	// scan-and-filter.
	ScanExpiredBefore(ctx context.Context, ts time.Time) ([]string, error)
}

// Opener is implemented by stores that need explicit initialization, such as
// schema creation, before first use.
type Opener interface {
	Open(ctx context.Context) error
}

// Stats is a point-in-time summary of the underlying store. TotalEntries is
// a raw count that still includes expired entries not yet swept; TotalSize
// is approximate. Oldest and Newest are zero when the store is empty.
type Stats struct {
	TotalEntries int
	TotalSize    int64
	OldestEntry  time.Time
	NewestEntry  time.Time
}
