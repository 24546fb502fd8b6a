// Package config loads user settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kyleking/gh-actionstatus/internal/compose"
	"github.com/kyleking/gh-actionstatus/internal/logging"
	"gopkg.in/yaml.v3"
)

// Version is the only supported config file version.
const Version = 1

// Environment variables read by ApplyEnv.
const (
	EnvToken       = "GH_TOKEN"
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvStore       = "ACTIONSTATUS_STORE"
	EnvLogLevel    = "ACTIONSTATUS_LOG_LEVEL"
	EnvConcurrency = "ACTIONSTATUS_CONCURRENCY"
)

// Config holds every user-tunable setting.
type Config struct {
	Version         int           `yaml:"version"`
	Host            string        `yaml:"host"`
	Store           string        `yaml:"store"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Concurrency     int           `yaml:"concurrency"`
	Retries         int           `yaml:"retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	Log             LogConfig     `yaml:"log"`
	Serve           ServeConfig   `yaml:"serve"`
	Compose         ComposeConfig `yaml:"compose"`

	// Token comes from the environment only.
	Token string `yaml:"-"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// ServeConfig configures the HTTP status endpoint.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// ComposeConfig holds defaults for generated workflows.
type ComposeConfig struct {
	Platforms []string `yaml:"platforms"`
	Toolchain string   `yaml:"toolchain"`
	Build     *bool    `yaml:"build"`
	Test      *bool    `yaml:"test"`
}

// DefaultPath returns the config location under the XDG config directory.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "actionstatus", "config.yml")
	}

	home, _ := os.UserHomeDir()

	return filepath.Join(home, ".config", "actionstatus", "config.yml")
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()

	return cfg
}

// Load reads path (DefaultPath when empty), fills defaults and applies the
// environment. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()

	return cfg, cfg.Validate()
}

// LoadFrom reads a config file without consulting the environment.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}

		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != Version {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, Version)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = Version
	}

	if c.Host == "" {
		c.Host = "github.com"
	}

	if c.RefreshInterval == 0 {
		c.RefreshInterval = 5 * time.Minute
	}

	if c.Concurrency == 0 {
		c.Concurrency = 4
	}

	if c.Retries == 0 {
		c.Retries = 2
	}

	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Serve.Addr == "" {
		c.Serve.Addr = "127.0.0.1:8787"
	}

	if len(c.Compose.Platforms) == 0 {
		c.Compose.Platforms = []string{string(compose.PlatformLinux)}
	}

	if c.Compose.Toolchain == "" {
		c.Compose.Toolchain = string(compose.ToolchainGo)
	}
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv() {
	c.Token = envOrDefault(EnvToken, os.Getenv(EnvGitHubToken))
	c.Store = envOrDefault(EnvStore, c.Store)
	c.Log.Level = envOrDefault(EnvLogLevel, c.Log.Level)
	c.Concurrency = envOrDefaultInt(EnvConcurrency, c.Concurrency)
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	var errs []error

	if c.RefreshInterval < time.Second {
		errs = append(errs, fmt.Errorf("refresh_interval must be at least 1s, got %s", c.RefreshInterval))
	}

	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if _, err := c.ComposeOptions(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ComposeOptions converts the compose section into composer options.
func (c *Config) ComposeOptions() (compose.Options, error) {
	platforms, err := compose.ParsePlatforms(c.Compose.Platforms)
	if err != nil {
		return compose.Options{}, err
	}

	toolchain, err := compose.ParseToolchain(c.Compose.Toolchain)
	if err != nil {
		return compose.Options{}, err
	}

	return compose.Options{
		Platforms: platforms,
		Toolchain: toolchain,
		Build:     boolOrDefault(c.Compose.Build, true),
		Test:      boolOrDefault(c.Compose.Test, true),
	}, nil
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none)
// without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return fallback
}

func boolOrDefault(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}

	return *b
}
