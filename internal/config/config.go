// Package config provides configuration loading and validation for the dashboard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/jonathan/parts-dashboard/internal/geo"
)

// DefaultJobCategory is the only Zuper category the dashboard tracks. Note the capital R.
const DefaultJobCategory = "Field Requires Parts"

// MaxRefreshInterval caps the automatic sync interval.
const MaxRefreshInterval = 60 * time.Minute

// Config is the full application configuration, laid out like secrets.toml.
type Config struct {
	Zuper    ZuperConfig    `toml:"zuper"`
	Database DatabaseConfig `toml:"database"`
	LLM      LLMConfig      `toml:"llm"`
	App      AppConfig      `toml:"app"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ZuperConfig holds Zuper API access settings.
type ZuperConfig struct {
	APIKey             string        `toml:"api_key"`
	OrgUID             string        `toml:"org_uid"`
	BaseURL            string        `toml:"base_url" validate:"omitempty,url"`
	Timeout            time.Duration `toml:"timeout" validate:"gt=0"`
	MaxRetries         int           `toml:"max_retries" validate:"gte=1,lte=10"`
	BackoffBase        time.Duration `toml:"backoff_base" validate:"gte=0"`
	RateLimitPerMinute int           `toml:"rate_limit_per_minute" validate:"gte=1"`
	PageSize           int           `toml:"page_size" validate:"gte=1"`
	MaxPageSize        int           `toml:"max_page_size" validate:"gte=1"`
}

// IsConfigured reports whether every value needed to reach the API is present.
func (z ZuperConfig) IsConfigured() bool {
	return z.APIKey != "" && z.OrgUID != "" && z.BaseURL != ""
}

// DatabaseConfig holds local store settings.
type DatabaseConfig struct {
	Driver   string `toml:"driver" validate:"oneof=sqlite3 postgres"`
	DSN      string `toml:"dsn" validate:"required"`
	MinConns int    `toml:"min_conns" validate:"gte=0"`
	MaxConns int    `toml:"max_conns" validate:"gte=1"`
}

// LLMConfig holds assistant settings.
type LLMConfig struct {
	APIKey        string `toml:"api_key"`
	StandardModel string `toml:"standard_model"`
	LiteModel     string `toml:"lite_model"`
	MaxTokens     int    `toml:"max_tokens" validate:"gte=0"`
}

// AppConfig holds dashboard behavior settings.
type AppConfig struct {
	JobCategory            string          `toml:"job_category" validate:"required"`
	Bounds                 geo.BoundingBox `toml:"bounds"`
	RefreshIntervalMinutes int             `toml:"refresh_interval_minutes" validate:"gte=1"`
	MaxJobsPerPage         int             `toml:"max_jobs_per_page" validate:"gte=1,lte=100"`
	Features               FeatureFlags    `toml:"features"`
}

// RefreshInterval returns the sync interval, capped at MaxRefreshInterval.
func (a AppConfig) RefreshInterval() time.Duration {
	d := time.Duration(a.RefreshIntervalMinutes) * time.Minute
	if d > MaxRefreshInterval {
		return MaxRefreshInterval
	}
	return d
}

// FeatureFlags toggles optional features.
type FeatureFlags struct {
	AutoSync    bool `toml:"auto_sync"`
	ManualSync  bool `toml:"manual_sync"`
	BulkLookup  bool `toml:"bulk_lookup"`
	AIAssistant bool `toml:"ai_assistant"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Address   string          `toml:"address"`
	Port      int             `toml:"port" validate:"gte=1,lte=65535"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig bounds how often API clients may hit the endpoints that
// cost Zuper or LLM quota.
type RateLimitConfig struct {
	Enabled            bool `toml:"enabled"`
	DefaultPerMinute   int  `toml:"default_per_minute" validate:"gte=1"`
	SyncPerHour        int  `toml:"sync_per_hour" validate:"gte=1"`
	AssistantPerMinute int  `toml:"assistant_per_minute" validate:"gte=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

// DefaultConfig returns a Config with the dashboard defaults.
func DefaultConfig() *Config {
	return &Config{
		Zuper: ZuperConfig{
			Timeout:            30 * time.Second,
			MaxRetries:         3,
			BackoffBase:        time.Second,
			RateLimitPerMinute: 100,
			PageSize:           100,
			MaxPageSize:        100,
		},
		Database: DatabaseConfig{
			Driver:   "sqlite3",
			DSN:      "parts_dashboard.db",
			MinConns: 1,
			MaxConns: 10,
		},
		LLM: LLMConfig{
			StandardModel: "gemini-2.5-flash",
			LiteModel:     "gemini-2.5-flash-lite",
			MaxTokens:     1024,
		},
		App: AppConfig{
			JobCategory:            DefaultJobCategory,
			Bounds:                 geo.EuropeBounds,
			RefreshIntervalMinutes: 15,
			MaxJobsPerPage:         50,
			Features: FeatureFlags{
				AutoSync:    false,
				ManualSync:  true,
				BulkLookup:  true,
				AIAssistant: true,
			},
		},
		Server: ServerConfig{
			Address: "0.0.0.0",
			Port:    8080,
			RateLimit: RateLimitConfig{
				Enabled:            true,
				DefaultPerMinute:   600,
				SyncPerHour:        12,
				AssistantPerMinute: 20,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if path is not empty)
// 3. Environment variables
// Command-line flags are applied by the caller.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("failed to parse config TOML: %w", err)
	}
	return nil
}

// Validate checks that the configuration has valid values. A missing Zuper
// section is not an error here; commands that need the API check
// ZuperConfig.IsConfigured themselves.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %s", describeValidation(err))
	}

	if err := c.App.Bounds.Validate(); err != nil {
		return fmt.Errorf("config error: app.bounds: %w", err)
	}
	if c.Zuper.PageSize > c.Zuper.MaxPageSize {
		return fmt.Errorf("config error: 'zuper.page_size' (%d) exceeds 'zuper.max_page_size' (%d)",
			c.Zuper.PageSize, c.Zuper.MaxPageSize)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("config error: 'database.min_conns' must not exceed 'database.max_conns'")
	}
	if time.Duration(c.App.RefreshIntervalMinutes)*time.Minute > MaxRefreshInterval {
		return fmt.Errorf("config error: 'app.refresh_interval_minutes' must be at most %d",
			int(MaxRefreshInterval.Minutes()))
	}
	return nil
}

// describeValidation flattens validator errors into one readable line.
func describeValidation(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("'%s' failed '%s' check", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
