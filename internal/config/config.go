// Package config provides centralized configuration management for the pipelines.
// Process settings come from environment variables with sensible defaults and
// are validated on startup to fail fast on misconfiguration. Mapping tables
// (countries, sector and org type vocabularies, per-theme datasets) come from
// a YAML file, see Mappings.
package config

import (
	"strconv"
	"time"
)

// Config holds all process configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

// ServerConfig holds status server settings.
type ServerConfig struct {
	// Enabled starts the status server alongside the run (default: false)
	Enabled bool `env:"STATUS_ENABLED" default:"false"`

	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 15s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"15s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`

	// APIKeys, when set, are required in the X-API-Key header (comma-separated)
	APIKeys []string `env:"STATUS_API_KEYS"`

	// TrustedProxies are CIDRs allowed to set X-Real-IP / X-Forwarded-For
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required unless the run is dry.
	// Supports both DATABASE_URL and DB_URI env vars.
	URL string `env:"DATABASE_URL" envAlt:"DB_URI"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// PipelineConfig holds run settings.
type PipelineConfig struct {
	// MappingsPath is the YAML mapping file (default: config/pipelines.yaml)
	MappingsPath string `env:"HAPI_CONFIG" default:"config/pipelines.yaml"`

	// CatalogPath is the YAML dataset catalog (default: config/catalog.yaml)
	CatalogPath string `env:"HAPI_CATALOG" default:"config/catalog.yaml"`

	// Themes selects themes, e.g. "population:AFG|COD,funding" (default: all)
	Themes string `env:"HAPI_THEMES"`

	// CommitLimit is the number of admin rows between commits (default: 1000)
	CommitLimit int `env:"COMMIT_LIMIT" default:"1000"`

	// BatchSize is the number of rows per COPY batch (default: 1000)
	BatchSize int `env:"BATCH_SIZE" default:"1000"`

	// HTTPTimeout bounds each resource download (default: 60s)
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" default:"60s"`

	// ErrToHDX publishes flagged messages to the data source (default: false)
	ErrToHDX bool `env:"ERR_TO_HDX" default:"false"`

	// ErrorsOut is where published messages are written (default: hapi_errors.yaml)
	ErrorsOut string `env:"HAPI_ERRORS_OUT" default:"hapi_errors.yaml"`

	// RecreateSchema drops and recreates every table first (default: false)
	RecreateSchema bool `env:"RECREATE_SCHEMA" default:"false"`

	// DryRun keeps every row in memory instead of the database (default: false)
	DryRun bool `env:"DRY_RUN" default:"false"`

	// Debug logs the organisation variant map after the run (default: false)
	Debug bool `env:"HAPI_DEBUG" default:"false"`
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
