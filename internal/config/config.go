// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Geocode   GeocodeConfig
	Import    ImportConfig
	Storage   StorageConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings for serve mode.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestsPerMinute is the per-IP rate limit, 0 disables it (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// APIKeys is a comma-separated list of keys accepted in X-API-Key;
	// the API is open when empty
	APIKeys []string `env:"API_KEYS"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the dialect: postgres, mysql or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of open connections (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// GeocodeConfig holds the AMap client and cache settings.
type GeocodeConfig struct {
	// Enabled turns the coordinate update into a no-op when false (default: true)
	Enabled bool `env:"GEOCODE_ENABLED" default:"true"`

	// CacheOnly resolves from the cache file without calling the API (default: false)
	CacheOnly bool `env:"GEOCODE_CACHE_ONLY" default:"false"`

	// APIKey is the AMap web service key, required unless disabled or cache-only
	APIKey string `env:"AMAP_API_KEY" envAlt:"AMAP_KEY"`

	// BaseURL is the AMap REST endpoint (default: https://restapi.amap.com)
	BaseURL string `env:"GEOCODE_BASE_URL" default:"https://restapi.amap.com"`

	// City constrains lookups (default: 上海)
	City string `env:"GEOCODE_CITY" default:"上海"`

	// CityPrefix is forced onto normalized addresses (default: 上海市)
	CityPrefix string `env:"GEOCODE_CITY_PREFIX" default:"上海市"`

	// CacheFile is the address,lng,lat cache (default: geocode_cache.csv)
	CacheFile string `env:"GEOCODE_CACHE_FILE" default:"geocode_cache.csv"`

	// Delay is the pause after each uncached address and each failed attempt (default: 250ms)
	Delay time.Duration `env:"GEOCODE_DELAY" default:"250ms"`

	// Retry is the number of extra attempts per stage (default: 2)
	Retry int `env:"GEOCODE_RETRY" default:"2"`

	// Timeout is the per-request HTTP timeout (default: 8s)
	Timeout time.Duration `env:"GEOCODE_TIMEOUT" default:"8s"`

	// FlushEvery saves the cache after this many new entries (default: 20)
	FlushEvery int `env:"GEOCODE_FLUSH_EVERY" default:"20"`
}

// ImportConfig holds import run settings.
type ImportConfig struct {
	// Sheet is the workbook sheet to read, empty for the first (default: "")
	Sheet string `env:"IMPORT_SHEET"`

	// MaxFileSize is the maximum accepted input size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// Timeout is the maximum duration for a single run (default: 30m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"30m"`

	// MaxWaitTime is how long a request waits for the running import (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`
}

// StorageConfig holds settings for s3:// inputs.
type StorageConfig struct {
	// Region is the S3 region (default: us-east-1)
	Region string `env:"S3_REGION" envAlt:"AWS_REGION" default:"us-east-1"`

	// Endpoint overrides the S3 endpoint, e.g. for MinIO
	Endpoint string `env:"S3_ENDPOINT"`

	// PathStyle forces path-style addressing (default: false)
	PathStyle bool `env:"S3_PATH_STYLE" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds prometheus settings.
type MetricsConfig struct {
	// PushgatewayURL receives CLI run metrics when set
	PushgatewayURL string `env:"METRICS_PUSHGATEWAY_URL"`

	// Job is the pushgateway job name (default: traumaimport)
	Job string `env:"METRICS_JOB" default:"traumaimport"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector; tracing is off when empty
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// ServiceName is reported on every span (default: traumaimport)
	ServiceName string `env:"OTEL_SERVICE_NAME" default:"traumaimport"`

	// Insecure disables TLS to the collector (default: false)
	Insecure bool `env:"OTEL_EXPORTER_OTLP_INSECURE" default:"false"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

