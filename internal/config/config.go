// Package config provides centralized configuration management for the
// supply import service. It loads configuration from environment variables
// with defaults declared in struct tags and validates all settings on startup
// so misconfiguration fails fast.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Apply    ApplyConfig
	Catalog  CatalogConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds parse requests. Apply requests are not cut off
	// once rows start committing (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	// URL selects the backend by scheme: postgres:// or postgresql:// use pgx,
	// sqlite:// or file: use SQLite, memory:// keeps everything in process.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies the embedded schema on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// Driver returns the store backend implied by the URL scheme.
// Returns "postgres", "sqlite", "memory", or "" when unrecognised.
func (c DatabaseConfig) Driver() string {
	u := strings.ToLower(strings.TrimSpace(c.URL))
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(u, "sqlite://"), strings.HasPrefix(u, "file:"):
		return "sqlite"
	case strings.HasPrefix(u, "memory://"):
		return "memory"
	default:
		return ""
	}
}

// UploadConfig holds spreadsheet parsing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxHeaderSearchRows is how many leading rows are scanned for the header (default: 20)
	MaxHeaderSearchRows int `env:"UPLOAD_MAX_HEADER_SEARCH_ROWS" default:"20"`

	// MaxConcurrent is the maximum number of parses and applies running at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a processing slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// ParseTimeout is the maximum duration for a single parse (default: 2m)
	ParseTimeout time.Duration `env:"UPLOAD_PARSE_TIMEOUT" default:"2m"`
}

// ApplyConfig holds commit-phase settings.
type ApplyConfig struct {
	// Parallelism is the number of inventory keys committed concurrently.
	// 1 keeps the apply strictly sequential (default: 1)
	Parallelism int `env:"APPLY_PARALLELISM" default:"1"`

	// VersionRetries is how many times an inventory write is retried after
	// losing an optimistic version check (default: 3)
	VersionRetries int `env:"APPLY_VERSION_RETRIES" default:"3"`

	// RowTimeout bounds the store calls for a single row (default: 15s)
	RowTimeout time.Duration `env:"APPLY_ROW_TIMEOUT" default:"15s"`
}

// CatalogConfig holds defaults for supplies created by an import.
type CatalogConfig struct {
	// DefaultCategory is assigned to newly created supplies (default: uncategorized)
	DefaultCategory string `env:"CATALOG_DEFAULT_CATEGORY" default:"uncategorized"`

	// DefaultUnitCostCents is the unit cost of newly created supplies (default: 0)
	DefaultUnitCostCents int64 `env:"CATALOG_DEFAULT_UNIT_COST_CENTS" default:"0"`
}

// RateLimitConfig holds rate limiting settings per client IP.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// ImportLimit is requests per minute for parse/apply endpoints (default: 20)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey makes the import endpoints require an X-API-Key header (default: false)
	RequireAPIKey bool `env:"SECURITY_REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
