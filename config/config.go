// Package config loads service configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptar/promptar/generation"
	"github.com/promptar/promptar/gltf"
	"github.com/promptar/promptar/inference"
	"github.com/promptar/promptar/internal/audit"
	"github.com/promptar/promptar/internal/ratelimit"
	"github.com/promptar/promptar/internal/server"
)

// StorageConfig governs artifact storage behavior.
type StorageConfig struct {
	// Dir is the managed artifact directory.
	Dir string `yaml:"dir"`
	// UploadDir stages incoming image uploads; empty uses the system
	// temp directory.
	UploadDir string `yaml:"upload_dir"`
	// Ephemeral deletes an artifact's backing file after it is served.
	Ephemeral bool `yaml:"ephemeral"`
}

// RateLimitConfig extends the limiter budget with an optional Redis
// backend for multi-instance deployments.
type RateLimitConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Requests  int           `yaml:"requests"`
	Window    time.Duration `yaml:"window"`
	RedisAddr string        `yaml:"redis_addr"` // empty means in-process limiting
}

// LogConfig selects logger behavior.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Config is the root service configuration.
type Config struct {
	Server      server.Config         `yaml:"server"`
	MetricsAddr string                `yaml:"metrics_addr"`
	Storage     StorageConfig         `yaml:"storage"`
	Inference   inference.Config      `yaml:"inference"`
	Generation  generation.Config     `yaml:"generation"`
	Brightness  gltf.BrightnessConfig `yaml:"brightness"`
	RateLimit   RateLimitConfig       `yaml:"rate_limit"`
	Audit       audit.Config          `yaml:"audit"`
	Log         LogConfig             `yaml:"log"`
}

// Default returns a runnable configuration.
func Default() *Config {
	return &Config{
		Server:      server.DefaultConfig(),
		MetricsAddr: ":9090",
		Storage: StorageConfig{
			Dir:       "./models",
			Ephemeral: true,
		},
		Inference:  inference.DefaultConfig(),
		Generation: generation.DefaultConfig(),
		Brightness: gltf.DefaultBrightnessConfig(),
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: ratelimit.DefaultConfig().Requests,
			Window:   ratelimit.DefaultConfig().Window,
		},
		Audit: audit.Config{
			Driver: "sqlite",
			DSN:    "./promptar_audit.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Limiter returns the limiter budget portion of the rate limit config.
func (c *Config) Limiter() ratelimit.Config {
	return ratelimit.Config{
		Requests: c.RateLimit.Requests,
		Window:   c.RateLimit.Window,
	}
}

// Validate rejects configurations that cannot serve.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must not be empty")
	}
	if c.Generation.MaxConcurrent <= 0 {
		return fmt.Errorf("generation.max_concurrent must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate_limit.requests must be positive when enabled")
	}
	switch c.Audit.Driver {
	case "", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("audit.driver must be sqlite, postgres or mysql, got %q", c.Audit.Driver)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// Loader reads configuration from an optional YAML file, then applies
// PROMPTAR_* environment overrides on top.
type Loader struct {
	path string
}

func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) WithConfigPath(path string) *Loader {
	l.path = path
	return l
}

// Load produces the effective configuration. A missing config file is an
// error only when a path was given explicitly.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", l.path, err)
		}
	}

	l.applyEnv(cfg)

	// storage.dir is the single source of truth for the artifact
	// directory; the orchestrator receives it from here.
	cfg.Generation.StorageDir = cfg.Storage.Dir

	return cfg, nil
}

// applyEnv overlays PROMPTAR_* environment variables. Only settings that
// commonly differ per deployment get an override.
func (l *Loader) applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "PROMPTAR_ADDR")
	setString(&cfg.MetricsAddr, "PROMPTAR_METRICS_ADDR")
	setString(&cfg.Storage.Dir, "PROMPTAR_STORAGE_DIR")
	setBool(&cfg.Storage.Ephemeral, "PROMPTAR_STORAGE_EPHEMERAL")
	setString(&cfg.Inference.Token, "PROMPTAR_HF_TOKEN")
	setString(&cfg.Inference.FastDirect.Space, "PROMPTAR_SPACE_FAST")
	setString(&cfg.Inference.TexturedDirect.Space, "PROMPTAR_SPACE_TEXTURED")
	setString(&cfg.Inference.ImageTo3DA.Space, "PROMPTAR_SPACE_IMAGE_A")
	setString(&cfg.Inference.ImageTo3DB.Space, "PROMPTAR_SPACE_IMAGE_B")
	setString(&cfg.RateLimit.RedisAddr, "PROMPTAR_REDIS_ADDR")
	setBool(&cfg.RateLimit.Enabled, "PROMPTAR_RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Requests, "PROMPTAR_RATE_LIMIT_REQUESTS")
	setString(&cfg.Audit.Driver, "PROMPTAR_AUDIT_DRIVER")
	setString(&cfg.Audit.DSN, "PROMPTAR_AUDIT_DSN")
	setString(&cfg.Log.Level, "PROMPTAR_LOG_LEVEL")
	setString(&cfg.Log.Format, "PROMPTAR_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}
