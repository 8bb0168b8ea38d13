// Package config loads mdcite-server configuration.
//
// Values are resolved in this order, later sources winning:
//
//  1. built-in defaults
//  2. the YAML file named by the path argument or MDCITE_CONFIG
//  3. .env / .env.local files (or ENV_FILE), loaded into the environment
//  4. MDCITE_* environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dbh/mdcite/internal/logger"
)

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transform TransformConfig `yaml:"transform"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       logger.Config   `yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"

	// MaxDocumentBytes caps request bodies and uploaded files.
	MaxDocumentBytes int64 `yaml:"max_document_bytes"` // default: 10 MiB

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 5s
}

// TransformConfig holds defaults for requests that omit options.
type TransformConfig struct {
	GroupByDomain   bool   `yaml:"group_by_domain"`   // default: true
	KeepDomainNames bool   `yaml:"keep_domain_names"` // default: true
	HTML            string `yaml:"html"`              // auto, always, never; default: auto

	// BatchLimit caps concurrent transforms per upload; 0 means GOMAXPROCS.
	BatchLimit int `yaml:"batch_limit"`
}

// RateLimitConfig controls per-client rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`             // default: true
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 10
	Burst             int     `yaml:"burst"`               // default: 20
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"` // default: 500; 0 disables
	TTL        time.Duration `yaml:"ttl"`         // default: 1h
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			Mode:             "release",
			MaxDocumentBytes: 10 << 20,
			ShutdownTimeout:  5 * time.Second,
		},
		Transform: TransformConfig{
			GroupByDomain:   true,
			KeepDomainNames: true,
			HTML:            "auto",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Cache: CacheConfig{
			MaxEntries: 500,
			TTL:        time.Hour,
		},
		Log: logger.Config{
			Level:       "info",
			OutputPaths: []string{"stdout"},
		},
	}
}

// Load resolves the configuration. path may be empty; MDCITE_CONFIG is used
// then, and without either only defaults and environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("MDCITE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxDocumentBytes <= 0 {
		errs = append(errs, errors.New("server.max_document_bytes must be positive"))
	}
	switch c.Transform.HTML {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("transform.html %q must be auto, always or never", c.Transform.HTML))
	}
	if c.Transform.BatchLimit < 0 {
		errs = append(errs, errors.New("transform.batch_limit must not be negative"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate_limit requires positive requests_per_second and burst"))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache.max_entries must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// loadEnvFiles loads ENV_FILE if set, otherwise .env.local then .env.
// godotenv never overrides variables that are already set.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func applyEnv(c *Config) {
	c.Server.Host = envOr("MDCITE_HOST", c.Server.Host)
	c.Server.Port = envIntOr("MDCITE_PORT", c.Server.Port)
	c.Server.Mode = envOr("MDCITE_MODE", c.Server.Mode)
	c.Server.MaxDocumentBytes = int64(envIntOr("MDCITE_MAX_DOCUMENT_BYTES", int(c.Server.MaxDocumentBytes)))
	c.Server.ShutdownTimeout = envDurationOr("MDCITE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Transform.GroupByDomain = envBoolOr("MDCITE_GROUP_BY_DOMAIN", c.Transform.GroupByDomain)
	c.Transform.KeepDomainNames = envBoolOr("MDCITE_KEEP_DOMAIN_NAMES", c.Transform.KeepDomainNames)
	c.Transform.HTML = strings.ToLower(envOr("MDCITE_HTML", c.Transform.HTML))
	c.Transform.BatchLimit = envIntOr("MDCITE_BATCH_LIMIT", c.Transform.BatchLimit)

	c.RateLimit.Enabled = envBoolOr("MDCITE_RATE_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RequestsPerSecond = envFloatOr("MDCITE_RATE_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = envIntOr("MDCITE_RATE_BURST", c.RateLimit.Burst)

	c.Cache.MaxEntries = envIntOr("MDCITE_CACHE_MAX_ENTRIES", c.Cache.MaxEntries)
	c.Cache.TTL = envDurationOr("MDCITE_CACHE_TTL", c.Cache.TTL)

	c.Log.Level = envOr("MDCITE_LOG_LEVEL", c.Log.Level)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
