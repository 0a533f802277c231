package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Lookup returns the raw value of a setting and whether it is set.
// os.LookupEnv is the usual source.
type Lookup func(name string) (string, bool)

// Load reads the configuration from the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an explicit source of settings.
func LoadFrom(lookup Lookup) (*Config, error) {
	cfg := &Config{}

	for _, b := range bindings(reflect.ValueOf(cfg).Elem()) {
		if err := b.apply(lookup); err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// binding ties one tagged field to its setting:
//
//	Port int `env:"SERVER_PORT" default:"8080"`
//	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`
type binding struct {
	name, alt, def string
	required       bool
	field          reflect.Value
}

// bindings collects the tagged fields of v and its nested structs in
// declaration order.
func bindings(v reflect.Value) []binding {
	var out []binding
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			out = append(out, bindings(fv)...)
			continue
		}
		if name := sf.Tag.Get("env"); name != "" {
			out = append(out, binding{
				name:     name,
				alt:      sf.Tag.Get("envAlt"),
				def:      sf.Tag.Get("default"),
				required: sf.Tag.Get("required") == "true",
				field:    fv,
			})
		}
	}
	return out
}

func (b binding) apply(lookup Lookup) error {
	raw, ok := lookup(b.name)
	if (!ok || raw == "") && b.alt != "" {
		raw, ok = lookup(b.alt)
	}
	if !ok || raw == "" {
		if b.required {
			return fmt.Errorf("required setting %s is not set", b.name)
		}
		raw = b.def
	}
	if raw == "" {
		return nil
	}

	if err := set(b.field.Addr().Interface(), raw); err != nil {
		return fmt.Errorf("invalid value for %s=%q: %w", b.name, raw, err)
	}
	return nil
}

// set parses raw into the field dst points to.
func set(dst any, raw string) error {
	var err error
	switch p := dst.(type) {
	case *string:
		*p = raw
	case *bool:
		*p, err = strconv.ParseBool(raw)
	case *int:
		*p, err = strconv.Atoi(raw)
	case *int64:
		*p, err = strconv.ParseInt(raw, 10, 64)
	case *time.Duration:
		*p, err = time.ParseDuration(raw)
	case *[]string:
		*p = splitList(raw)
	default:
		return fmt.Errorf("unsupported field type %T", dst)
	}
	return err
}

// splitList splits a comma-separated setting, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	switch strings.ToLower(c.Database.Backend) {
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when RECORD_STORE=postgres")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("RECORD_STORE (%q) must be one of: postgres, memory", c.Database.Backend))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.Dir == "" {
		errs = append(errs, "UPLOAD_DIR is required")
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Upload.BatchSize < 0 {
		errs = append(errs, "IMPORT_BATCH_SIZE must be non-negative")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.BatchTimeout <= 0 {
		errs = append(errs, "IMPORT_BATCH_TIMEOUT must be positive")
	}

	// Session validation
	switch strings.ToLower(c.Session.Backend) {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when SESSION_STORE=postgres")
		}
	case "redis":
		if c.Session.RedisURL == "" {
			errs = append(errs, "REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("SESSION_STORE (%q) must be one of: memory, postgres, redis", c.Session.Backend))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, "SESSION_TTL must be non-negative")
	}

	// Storage validation
	switch strings.ToLower(c.Storage.Backend) {
	case "local":
		if c.Storage.Dir == "" {
			errs = append(errs, "STORAGE_DIR is required when STORAGE_BACKEND=local")
		}
	case "minio":
		if c.Storage.MinioEndpoint == "" || c.Storage.MinioBucket == "" {
			errs = append(errs, "MINIO_ENDPOINT and MINIO_BUCKET are required when STORAGE_BACKEND=minio")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_BACKEND (%q) must be one of: local, minio", c.Storage.Backend))
	}
	if c.Storage.MaxBytes < 0 {
		errs = append(errs, "ATTACHMENT_MAX_BYTES must be non-negative")
	}

	if c.Schema.Path == "" {
		errs = append(errs, "SCHEMA_FILE is required")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.UploadLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {Backend: %q, URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.Backend, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Upload: {Dir: %q, MaxFileSize: %d, MaxConcurrent: %d, BatchSize: %d}, ",
		c.Upload.Dir, c.Upload.MaxFileSize, c.Upload.MaxConcurrent, c.Upload.BatchSize))
	b.WriteString(fmt.Sprintf("Session: {Backend: %q, TTL: %s}, ", c.Session.Backend, c.Session.TTL))
	b.WriteString(fmt.Sprintf("Storage: {Backend: %q}, ", c.Storage.Backend))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
