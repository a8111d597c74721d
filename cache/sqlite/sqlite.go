// Package sqlite persists cache entries in an embedded SQLite database via
// the pure-Go glebarez driver, so cached news survives process restarts
// without an external service.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/glebarez/go-sqlite"
)

// Open creates or opens the database file and applies pool settings.
func Open(opts ...Option) (*sql.DB, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	dsn := cfg.Path
	if cfg.BusyTimeout > 0 {
		params := url.Values{}
		params.Set("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
		dsn = cfg.Path + "?" + params.Encode()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return db, nil
}
