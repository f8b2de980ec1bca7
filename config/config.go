// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the root configuration structure.
type Config struct {
	Schemas  SchemasConfig  `yaml:"schemas"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SchemasConfig locates the schema documents.
type SchemasConfig struct {
	URI     string `yaml:"uri"`     // file://{folder}
	Version string `yaml:"version"` // subfolder of the version label
}

// DatabaseConfig selects the storage driver.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "memory", "sqlite" or "redis"
	DSN    string `yaml:"dsn"`    // sqlite database path
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig tunes the storage layer.
type StorageConfig struct {
	MaxDepth int `yaml:"max_depth"` // reference resolution depth
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	OpenAPI      bool          `yaml:"openapi"` // serve /.well-known/openapi.json and /swagger/
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Addr returns the listen address of the server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	DATALAYER_SCHEMAS_URI          - Schema location (default: file://schema)
//	DATALAYER_SCHEMAS_VERSION      - Schema version label (default: latest)
//	DATALAYER_DATABASE_DRIVER      - memory, sqlite or redis (default: sqlite)
//	DATALAYER_DATABASE_DSN         - SQLite path (default: datalayer.db)
//	DATALAYER_REDIS_ADDR           - Redis address (default: localhost:6379)
//	DATALAYER_REDIS_PASSWORD       - Redis password
//	DATALAYER_REDIS_DB             - Redis database number
//	DATALAYER_STORAGE_MAX_DEPTH    - Reference resolution depth (default: 64)
//	DATALAYER_SERVER_HOST          - Server host (default: 0.0.0.0)
//	DATALAYER_SERVER_PORT          - Server port (default: 8080)
//	DATALAYER_SERVER_OPENAPI       - Serve the OpenAPI document and Swagger UI
//	DATALAYER_LOG_LEVEL            - debug, info, warn, error (default: info)
//	DATALAYER_LOG_FORMAT           - json or console (default: json)
//	DATALAYER_METRICS_ENABLED      - Enable metrics endpoint
//	DATALAYER_METRICS_PATH         - Metrics path (default: /metrics)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies DATALAYER_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Schemas
	if v := os.Getenv("DATALAYER_SCHEMAS_URI"); v != "" {
		cfg.Schemas.URI = v
	}
	if v := os.Getenv("DATALAYER_SCHEMAS_VERSION"); v != "" {
		cfg.Schemas.Version = v
	}

	// Database
	if v := os.Getenv("DATALAYER_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATALAYER_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Redis
	if v := os.Getenv("DATALAYER_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DATALAYER_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DATALAYER_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}

	// Storage
	if v := os.Getenv("DATALAYER_STORAGE_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxDepth = n
		}
	}

	// Server
	if v := os.Getenv("DATALAYER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DATALAYER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATALAYER_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("DATALAYER_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("DATALAYER_SERVER_OPENAPI"); v != "" {
		cfg.Server.OpenAPI = parseBool(v)
	}

	// Logging
	if v := os.Getenv("DATALAYER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DATALAYER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics
	if v := os.Getenv("DATALAYER_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("DATALAYER_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Schemas.URI == "" {
		cfg.Schemas.URI = "file://schema"
	}
	if cfg.Schemas.Version == "" {
		cfg.Schemas.Version = "latest"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "datalayer.db"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	if cfg.Storage.MaxDepth == 0 {
		cfg.Storage.MaxDepth = 64
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if !strings.Contains(cfg.Schemas.URI, "://") {
		return fmt.Errorf("schemas.uri must be a URI like file://schema, got %q", cfg.Schemas.URI)
	}

	switch cfg.Database.Driver {
	case DriverMemory, DriverSQLite, DriverRedis:
	default:
		return fmt.Errorf("database.driver must be one of: memory, sqlite, redis, got %q", cfg.Database.Driver)
	}

	if cfg.Storage.MaxDepth < 0 {
		return fmt.Errorf("storage.max_depth must not be negative")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
