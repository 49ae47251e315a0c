// Package config loads client configuration from an optional YAML file and
// environment variables, and wires up the shared logger.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Confab server
	ServerURL string `yaml:"server_url"`
	Token     string `yaml:"token"`
	Identity  string `yaml:"identity"`

	// Sync core tuning
	PollInterval      time.Duration `yaml:"poll_interval"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	AutoConnect       bool          `yaml:"auto_connect"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	// Raw level string from file/env, parsed into LogLevel.
	LogLevelName string `yaml:"log_level"`
}

// Defaults returns the stock configuration.
func Defaults() Config {
	return Config{
		ServerURL:         "http://localhost:8787",
		PollInterval:      2 * time.Second,
		ReconnectAttempts: 5,
		ReconnectDelay:    time.Second,
		AutoConnect:       false,
		LogFile:           "/tmp/confab.log",
		LogLevel:          slog.LevelInfo,
	}
}

// Load reads configuration: defaults, then the config file (CONFAB_CONFIG
// or ~/.config/confab/config.yaml if present), then environment overrides.
func Load() (Config, error) {
	cfg := Defaults()

	path := os.Getenv("CONFAB_CONFIG")
	explicit := path != ""
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".config", "confab", "config.yaml")
		}
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if explicit || !os.IsNotExist(err) {
				return cfg, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.LogLevelName != "" {
		cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServerURL = getEnv("CONFAB_SERVER_URL", cfg.ServerURL)
	cfg.Token = getEnv("CONFAB_TOKEN", cfg.Token)
	cfg.Identity = getEnv("CONFAB_IDENTITY", cfg.Identity)
	cfg.LogFile = getEnv("CONFAB_LOG_FILE", cfg.LogFile)
	cfg.LogLevelName = getEnv("CONFAB_LOG_LEVEL", cfg.LogLevelName)

	if v := os.Getenv("CONFAB_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("CONFAB_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectAttempts = n
		}
	}
	if v := os.Getenv("CONFAB_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReconnectDelay = d
		}
	}
	if v := os.Getenv("CONFAB_AUTO_CONNECT"); v != "" {
		cfg.AutoConnect = v == "true" || v == "1"
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
