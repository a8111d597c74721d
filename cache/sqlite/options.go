package sqlite

import "time"

// Options configures the embedded SQLite database backing a cache store.
type Options struct {
	// Path is the database file. ":memory:" gives a throwaway database.
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

type Option func(*Options)

// WithPath sets the database file location.
func WithPath(path string) Option {
	return func(o *Options) {
		if path != "" {
			o.Path = path
		}
	}
}

// WithMaxOpenConns limits the connection pool. SQLite serializes writers, so
// the default keeps the pool small.
func WithMaxOpenConns(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxOpenConns = n
		}
	}
}

// WithBusyTimeout controls how long a connection waits on a locked database
// before failing.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.BusyTimeout = d
		}
	}
}

func defaultOptions() Options {
	return Options{
		Path:         "newscache.db",
		MaxOpenConns: 4,
		BusyTimeout:  5 * time.Second,
	}
}
