// Package config loads tickup settings from an optional .env file, a YAML file and
// TICKUP_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/tickup/internal/constants"
)

type APIConfig struct {
	URL    string `yaml:"url"`
	UserID string `yaml:"user_id"`
	Token  string `yaml:"token"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type Config struct {
	Store    string `yaml:"store"`
	Timezone string `yaml:"timezone"`
	Debug    bool   `yaml:"debug"`
	// LogFormat is "text" or "json"
	LogFormat string `yaml:"log_format"`

	API      APIConfig      `yaml:"api"`
	TasksDSN string         `yaml:"tasks_dsn"`
	Telegram TelegramConfig `yaml:"telegram"`
	Tray     bool           `yaml:"tray"`

	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ItemTimeout       time.Duration `yaml:"item_timeout"`
	Concurrency       int           `yaml:"concurrency"`
	GracePeriod       time.Duration `yaml:"grace_period"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Store:             constants.DefaultConfigPath,
		Timezone:          constants.DefaultTimezone,
		Tray:              true,
		ReconcileInterval: constants.DefaultReconcileInterval,
		ItemTimeout:       constants.DefaultItemTimeout,
		Concurrency:       constants.DefaultConcurrency,
		GracePeriod:       constants.DefaultGracePeriod,
	}
}

// Load builds the configuration. A missing .env or YAML file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(ExpandPath(path))
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Store = ExpandPath(cfg.Store)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("TICKUP_STORE", &c.Store)
	setString("TICKUP_API_URL", &c.API.URL)
	setString("TICKUP_USER_ID", &c.API.UserID)
	setString("TICKUP_API_TOKEN", &c.API.Token)
	setString("TICKUP_TASKS_DSN", &c.TasksDSN)
	setString("TICKUP_TELEGRAM_TOKEN", &c.Telegram.Token)
	setString("TICKUP_TIMEZONE", &c.Timezone)
	setString("TICKUP_LOG_FORMAT", &c.LogFormat)

	if v := os.Getenv("TICKUP_TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TICKUP_TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		c.Telegram.ChatID = id
	}
	if v := os.Getenv("TICKUP_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TICKUP_DEBUG %q: %w", v, err)
		}
		c.Debug = debug
	}
	return nil
}

func (c *Config) Validate() error {
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile_interval must be positive")
	}
	if c.ItemTimeout <= 0 {
		return fmt.Errorf("item_timeout must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace_period must not be negative")
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// HasAPI reports whether the REST task source is configured
func (c *Config) HasAPI() bool {
	return c.API.URL != "" && c.API.UserID != ""
}

func (c *Config) HasTelegram() bool {
	return c.Telegram.Token != "" && c.Telegram.ChatID != 0
}

// IsPostgres reports whether the store is a PostgreSQL connection string
func (c *Config) IsPostgres() bool {
	return IsPostgresDSN(c.Store)
}

// IsPostgresDSN accepts both the URL and key=value connection string forms
func IsPostgresDSN(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://") ||
		strings.Contains(s, "host=")
}

// Dir returns the directory holding the config and log files
func (c *Config) Dir() string {
	if c.IsPostgres() || c.Store == "" {
		return ExpandPath(constants.DefaultConfigDir)
	}
	return filepath.Dir(c.Store)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
