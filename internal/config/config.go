// Package config provides environment-driven configuration for catalogsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Marker store kinds.
const (
	MarkerStoreFile     = "file"
	MarkerStorePostgres = "postgres"
	MarkerStoreNone     = "none"
)

// Config holds all application configuration values.
type Config struct {
	CatalogURL        string
	APIKey            Secret
	APIVersion        int
	Namespace         string
	Autocommit        bool
	PageLimit         int
	MaxQueryGroup     int
	Timeout           time.Duration
	ExtractWorkers    int
	LogLevel          string
	MarkerStore       string
	MarkerFile        string
	MarkerDatabaseURL Secret
	DBMaxConns        int
	MetricsAddr       string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		CatalogURL:        envOrDefault("CATALOG_URL", "http://localhost:7187"),
		APIKey:            Secret(envOrDefault("CATALOG_API_KEY", "")),
		Namespace:         envOrDefault("CATALOG_NAMESPACE", "catalogsync"),
		Autocommit:        envOrDefault("CATALOG_AUTOCOMMIT", "false") == "true",
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		MarkerStore:       envOrDefault("MARKER_STORE", MarkerStoreFile),
		MarkerFile:        envOrDefault("MARKER_FILE", defaultMarkerFile()),
		MarkerDatabaseURL: Secret(envOrDefault("MARKER_DATABASE_URL", "")),
		MetricsAddr:       envOrDefault("METRICS_ADDR", ""),
	}

	var err error
	if cfg.APIVersion, err = intEnv("CATALOG_API_VERSION", 9, 1, 99); err != nil {
		return nil, err
	}
	if cfg.PageLimit, err = intEnv("CATALOG_PAGE_LIMIT", 1000, 1, 10000); err != nil {
		return nil, err
	}
	if cfg.MaxQueryGroup, err = intEnv("CATALOG_MAX_QUERY_GROUP", 800, 1, 1024); err != nil {
		return nil, err
	}
	if cfg.ExtractWorkers, err = intEnv("EXTRACT_WORKERS", 4, 1, 32); err != nil {
		return nil, err
	}
	if cfg.DBMaxConns, err = intEnv("MARKER_DB_MAX_CONNS", 4, 1, 50); err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(envOrDefault("CATALOG_TIMEOUT", "30s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("CATALOG_TIMEOUT must be a positive duration")
	}
	cfg.Timeout = timeout

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func defaultMarkerFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".catalogsync-markers.json"
	}
	return filepath.Join(home, ".catalogsync", "markers.json")
}

func intEnv(key string, fallback, lo, hi int) (int, error) {
	n, err := strconv.Atoi(envOrDefault(key, strconv.Itoa(fallback)))
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// Overrides carries settings from CLI flags or a profile file. Empty fields
// leave the loaded value alone.
type Overrides struct {
	CatalogURL  string
	APIKey      string
	Namespace   string
	MetricsAddr string
}

// Apply merges o into c and validates the result.
func (c *Config) Apply(o Overrides) error {
	if o.CatalogURL != "" {
		c.CatalogURL = o.CatalogURL
	}
	if o.APIKey != "" {
		c.APIKey = Secret(o.APIKey)
	}
	if o.Namespace != "" {
		c.Namespace = o.Namespace
	}
	if o.MetricsAddr != "" {
		c.MetricsAddr = o.MetricsAddr
	}

	if err := c.validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	return nil
}
