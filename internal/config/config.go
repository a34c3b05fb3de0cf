// Package config loads settings for both binaries: defaults first, then an
// optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

// DefaultProviderURL is the GraphQL endpoint of the mailbox provider.
const DefaultProviderURL = "https://dropmail.me/api/graphql/web-test-20230602QuMvA"

type Config struct {
	// Forwarding service
	ListenAddr             string   `yaml:"listen_addr" env:"LISTEN_ADDR"`
	ProviderURL            string   `yaml:"provider_url" env:"PROVIDER_URL"`
	ProviderTimeoutSeconds int      `yaml:"provider_timeout_seconds" env:"PROVIDER_TIMEOUT_SECONDS"`
	AllowedOrigins         []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	RateLimitCreatePerMin  int      `yaml:"rate_limit_create_per_min" env:"RATE_LIMIT_CREATE_PER_MIN"`
	RateLimitFetchPerMin   int      `yaml:"rate_limit_fetch_per_min" env:"RATE_LIMIT_FETCH_PER_MIN"`

	// Shared
	RedisURL       string `yaml:"redis_url" env:"REDIS_URL"`
	RedisKeyPrefix string `yaml:"redis_key_prefix" env:"REDIS_KEY_PREFIX"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat      string `yaml:"log_format" env:"LOG_FORMAT"`

	// Client
	APIURL         string `yaml:"api_url" env:"API_URL"`
	PollIntervalMS int    `yaml:"poll_interval_ms" env:"POLL_INTERVAL_MS"`
	SessionBackend string `yaml:"session_backend" env:"SESSION_BACKEND"`
	StateDir       string `yaml:"state_dir" env:"STATE_DIR"`
	Notifications  string `yaml:"notifications" env:"NOTIFICATIONS"`
}

// Default returns a Config with every field set to its fallback value.
func Default() *Config {
	return &Config{
		ListenAddr:             ":8080",
		ProviderURL:            DefaultProviderURL,
		ProviderTimeoutSeconds: 30,
		AllowedOrigins:         []string{"*"},
		RateLimitCreatePerMin:  10,
		RateLimitFetchPerMin:   60,
		RedisKeyPrefix:         "dropinbox",
		LogLevel:               "info",
		LogFormat:              "text",
		APIURL:                 "http://localhost:8080",
		PollIntervalMS:         15000,
		SessionBackend:         "file",
		Notifications:          "default",
	}
}

// Load builds a Config from defaults and environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile uses the YAML file at path as the base layer. Environment
// variables still take precedence over it.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPath calls LoadFromFile when path is set and Load otherwise.
func LoadPath(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	return Load()
}

func (c *Config) applyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.SessionBackend = strings.ToLower(c.SessionBackend)
	c.Notifications = strings.ToLower(c.Notifications)
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// SessionDir returns the directory holding the persisted session file.
// STATE_DIR wins, then $XDG_STATE_HOME/dropinbox, then ~/.local/state/dropinbox.
func (c *Config) SessionDir() (string, error) {
	if c.StateDir != "" {
		return c.StateDir, nil
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "dropinbox"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "dropinbox"), nil
}
