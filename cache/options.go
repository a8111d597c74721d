package cache

import (
	"time"

	"github.com/labstack/gommon/log"
)

// DefaultTTL applies to entries written without an explicit TTL.
const DefaultTTL = 24 * time.Hour

// Options configures a Service.
type Options struct {
	DefaultTTL time.Duration
	Clock      func() time.Time
	Logger     *log.Logger
}

type Option func(*Options)

func defaultOptions() Options {
	logger := log.New("cache")
	logger.SetLevel(log.WARN)
	return Options{
		DefaultTTL: DefaultTTL,
		Clock:      time.Now,
		Logger:     logger,
	}
}

// WithDefaultTTL overrides the TTL used when Set is called without one.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.DefaultTTL = d
		}
	}
}

// WithClock injects the time source, letting tests drive expiry with a
// virtual clock.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// SetOptions captures the per-write knobs of Service.Set.
type SetOptions struct {
	TTL      time.Duration
	Source   string
	Metadata map[string]any

	ttlSet bool
}

type SetOption func(*SetOptions)

// WithTTL sets the entry's time to live. A zero TTL is honored literally:
// the entry is stale the instant it is written.
func WithTTL(d time.Duration) SetOption {
	return func(o *SetOptions) {
		o.TTL = d
		o.ttlSet = true
	}
}

// WithSource tags the entry with its provenance, e.g. "news-api".
func WithSource(source string) SetOption {
	return func(o *SetOptions) {
		if source != "" {
			o.Source = source
		}
	}
}

// WithMetadata attaches free-form diagnostic annotations to the entry.
func WithMetadata(metadata map[string]any) SetOption {
	return func(o *SetOptions) {
		if len(metadata) > 0 {
			o.Metadata = metadata
		}
	}
}
