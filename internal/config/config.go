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
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Session  SessionConfig
	Storage  StorageConfig
	Schema   SchemaConfig
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

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"10m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout also bounds the wait for dispatched batches (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-batch requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds record store settings.
type DatabaseConfig struct {
	// Backend selects the record store: postgres or memory (default: postgres)
	Backend string `env:"RECORD_STORE" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres backend.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate creates the tables on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// UploadConfig holds import file and batch execution settings.
type UploadConfig struct {
	// Dir stores uploaded source files (default: ./uploads)
	Dir string `env:"UPLOAD_DIR" default:"uploads"`

	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of batches executing at once (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a batch waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// BatchSize is used when an import does not choose one (default: 500)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"500"`

	// BatchTimeout bounds a single dispatched batch (default: 5m)
	BatchTimeout time.Duration `env:"IMPORT_BATCH_TIMEOUT" default:"5m"`
}

// SessionConfig selects where import configurations live between requests.
type SessionConfig struct {
	// Backend is memory, postgres or redis (default: memory)
	Backend string `env:"SESSION_STORE" default:"memory"`

	// RedisURL is required for the redis backend
	RedisURL string `env:"REDIS_URL" envAlt:"REDIS_ADDR"`

	// TTL expires idle sessions in postgres and redis; 0 keeps them (default: 24h)
	TTL time.Duration `env:"SESSION_TTL" default:"24h"`
}

// StorageConfig holds attachment storage settings.
type StorageConfig struct {
	// Backend is local or minio (default: local)
	Backend string `env:"STORAGE_BACKEND" default:"local"`

	// Dir is the object directory of the local backend (default: ./attachments)
	Dir string `env:"STORAGE_DIR" default:"attachments"`

	// SourceRoot confines local attachment paths; empty allows only URLs
	SourceRoot string `env:"ATTACHMENT_SOURCE_ROOT"`

	// MaxBytes limits one attachment (default: 20MB)
	MaxBytes int64 `env:"ATTACHMENT_MAX_BYTES" default:"20971520"`

	FetchTimeout time.Duration `env:"ATTACHMENT_FETCH_TIMEOUT" default:"30s"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" default:"attachments"`
	MinioRegion    string `env:"MINIO_REGION"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" default:"false"`
}

// SchemaConfig locates the schema definitions.
type SchemaConfig struct {
	// Path is the YAML schema file (default: schemas.yaml)
	Path string `env:"SCHEMA_FILE" default:"schemas.yaml"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// UploadLimit is requests per minute for import creation (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key authentication on /api routes
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
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
