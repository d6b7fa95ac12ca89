// Package config reads the client settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xcrape/xcrape/pkg/api/v1/routes"
)

// environment variable names
const (
	EnvServerAddress = "XCRAPE_SERVER_ADDRESS"
	EnvPollInterval  = "XCRAPE_POLL_INTERVAL"
	EnvExportDir     = "XCRAPE_EXPORT_DIR"
	EnvTimeout       = "XCRAPE_TIMEOUT"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogFile       = "LOG_FILE"
)

// defaults
const (
	DefaultPollInterval = 4 * time.Second
	DefaultTimeout      = 30 * time.Second
	DefaultExportDir    = "downloads"
	DefaultLogLevel     = "info"
)

// Config holds the client settings
type Config struct {
	ServerAddress string
	PollInterval  time.Duration
	ExportDir     string
	Timeout       time.Duration
	LogLevel      string
	// LogFile receives log output while the terminal UI owns the screen
	LogFile string
}

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// LoadEnvFile loads variables from the given .env files, or ./.env when none
// are given. Missing files are ignored; variables already set win.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment after loading .env
func Load() (*Config, error) {
	if err := LoadEnvFile(); err != nil {
		return nil, err
	}
	return FromEnv()
}

// FromEnv reads the configuration from the environment only
func FromEnv() (*Config, error) {
	poll, err := ParseDuration(GetEnv(EnvPollInterval, ""), DefaultPollInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvPollInterval, err)
	}
	timeout, err := ParseDuration(GetEnv(EnvTimeout, ""), DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
	}

	cfg := &Config{
		ServerAddress: GetEnv(EnvServerAddress, routes.DefaultBaseURL),
		PollInterval:  poll,
		ExportDir:     GetEnv(EnvExportDir, DefaultExportDir),
		Timeout:       timeout,
		LogLevel:      GetEnv(EnvLogLevel, DefaultLogLevel),
		LogFile:       GetEnv(EnvLogFile, ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerAddress) == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ExportDir == "" {
		return fmt.Errorf("export directory cannot be empty")
	}
	return nil
}

// ParseDuration accepts a Go duration ("4s", "1m30s") or a bare number of
// milliseconds. An empty string yields fallback.
func ParseDuration(s string, fallback time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("must be positive: %s", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive: %s", s)
	}
	return d, nil
}
