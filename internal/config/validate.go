package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
)

func (c *Config) validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}

	if err := c.validateLogLevel(); err != nil {
		return err
	}

	if err := c.validateMarkerStore(); err != nil {
		return err
	}

	if err := c.validateMetrics(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateCatalog() error {
	u, err := url.Parse(c.CatalogURL)
	if err != nil {
		return fmt.Errorf("CATALOG_URL is not a valid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("CATALOG_URL scheme must be http:// or https://")
	}

	if u.Hostname() == "" {
		return fmt.Errorf("CATALOG_URL must include a host")
	}

	if c.APIKey.Value() != "" && u.Scheme != "https" && !isLocalhost(c.CatalogURL) {
		return fmt.Errorf("CATALOG_URL must use HTTPS when CATALOG_API_KEY is sent to non-localhost host %q", u.Hostname())
	}

	if c.Namespace == "" {
		return fmt.Errorf("CATALOG_NAMESPACE must not be empty")
	}

	return nil
}

func (c *Config) validateLogLevel() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	return nil
}

func (c *Config) validateMarkerStore() error {
	switch c.MarkerStore {
	case MarkerStoreFile:
		if c.MarkerFile == "" {
			return fmt.Errorf("MARKER_FILE is required when MARKER_STORE is file")
		}
	case MarkerStorePostgres:
		return c.validateDatabase()
	case MarkerStoreNone:
	default:
		return fmt.Errorf("MARKER_STORE must be 'file', 'postgres' or 'none', got %q", c.MarkerStore)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.MarkerDatabaseURL.Value() == "" {
		return fmt.Errorf("MARKER_DATABASE_URL is required when MARKER_STORE is postgres")
	}

	dbURL, err := url.Parse(c.MarkerDatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("MARKER_DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("MARKER_DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("MARKER_DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if dbHost != "localhost" && dbHost != "127.0.0.1" && dbHost != "::1" {
		sslmode := dbURL.Query().Get("sslmode")
		if sslmode == "disable" {
			return fmt.Errorf("MARKER_DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
		}
	}

	return nil
}

func (c *Config) validateMetrics() error {
	if c.MetricsAddr == "" {
		return nil
	}

	host, portStr, err := net.SplitHostPort(c.MetricsAddr)
	if err != nil {
		return fmt.Errorf("METRICS_ADDR must be host:port: %w", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("METRICS_ADDR port must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("METRICS_ADDR port must be between 1 and 65535")
	}

	switch host {
	case "127.0.0.1", "::1", "localhost", "0.0.0.0", "::":
	default:
		return fmt.Errorf("METRICS_ADDR must bind a loopback address or 0.0.0.0/:: for containers, got %q", host)
	}

	return nil
}

// isLocalhost returns true if the given address points to a loopback address.
func isLocalhost(addr string) bool {
	u, err := url.Parse(addr)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
