// Package config loads cache settings from a YAML file for applications
// that prefer file-driven setup over wiring options in code.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config defines the cache settings loaded from a YAML file.
type Config struct {
	// Backend selects the store: "memory", "sqlite", "postgres", or "redis".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// PostgresDSN is the lib/pq connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// RedisAddr is host:port for the redis backend.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// DefaultTTLSeconds overrides the 24h write default when positive.
	DefaultTTLSeconds int `yaml:"default_ttl_seconds"`

	// MaxCacheAgeSeconds is the retrieval policy's freshness threshold.
	MaxCacheAgeSeconds int `yaml:"max_cache_age_seconds"`
}

var backends = map[string]bool{
	"memory":   true,
	"sqlite":   true,
	"postgres": true,
	"redis":    true,
}

// Load reads the YAML config file and returns the validated Config.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks backend selection and its required settings.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("backend is required in config")
	}
	if !backends[c.Backend] {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Backend == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn is required for the postgres backend")
	}
	if c.DefaultTTLSeconds < 0 {
		return fmt.Errorf("default_ttl_seconds must not be negative")
	}
	if c.MaxCacheAgeSeconds < 0 {
		return fmt.Errorf("max_cache_age_seconds must not be negative")
	}
	return nil
}

// DefaultTTL returns the configured write TTL, or zero when unset.
func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// MaxCacheAge returns the configured freshness threshold, or zero when
// unset.
func (c *Config) MaxCacheAge() time.Duration {
	return time.Duration(c.MaxCacheAgeSeconds) * time.Second
}
