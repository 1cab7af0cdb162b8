// Package config loads tensequest settings from an optional YAML file and
// TENSEQUEST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/b2english/tensequest/internal/selection"
)

// Config holds the complete tensequest configuration.
type Config struct {
	Backend  BackendConfig  `koanf:"backend"`
	Practice PracticeConfig `koanf:"practice"`
	Progress ProgressConfig `koanf:"progress"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
}

// BackendConfig points at the practice API. An empty URL means offline
// play against the built-in banks.
type BackendConfig struct {
	URL           string        `koanf:"url"`
	Token         string        `koanf:"token"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
}

// PracticeConfig tunes run selection and the millionaire countdown.
type PracticeConfig struct {
	Policy       string        `koanf:"policy"`
	Budget       int           `koanf:"budget"`        // seconds per millionaire question
	TickInterval time.Duration `koanf:"tick_interval"` // 0 disables the background countdown
	Levels       int           `koanf:"levels"`
	RecentWindow time.Duration `koanf:"recent_window"`
	FocusCount   int           `koanf:"focus_count"`
}

// ProgressConfig holds device progress settings.
type ProgressConfig struct {
	DailyGoal int `koanf:"daily_goal"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 15 * time.Second
	}
	if cfg.Backend.RatePerSecond == 0 {
		cfg.Backend.RatePerSecond = 10
	}
	if cfg.Backend.Burst == 0 {
		cfg.Backend.Burst = 10
	}

	if cfg.Practice.Policy == "" {
		cfg.Practice.Policy = selection.PolicyStrict
	}
	if cfg.Practice.Budget == 0 {
		cfg.Practice.Budget = 30
	}
	if cfg.Practice.TickInterval == 0 {
		cfg.Practice.TickInterval = time.Second
	}
	if cfg.Practice.Levels == 0 {
		cfg.Practice.Levels = 15
	}
	if cfg.Practice.RecentWindow == 0 {
		cfg.Practice.RecentWindow = 7 * 24 * time.Hour
	}
	if cfg.Practice.FocusCount == 0 {
		cfg.Practice.FocusCount = 10
	}

	if cfg.Progress.DailyGoal == 0 {
		cfg.Progress.DailyGoal = 20
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8787"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Offline reports whether no backend is configured.
func (c *Config) Offline() bool {
	return c.Backend.URL == ""
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	if c.Backend.URL != "" {
		u, err := url.Parse(c.Backend.URL)
		if err != nil {
			return fmt.Errorf("invalid backend url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid backend url %q: scheme must be http or https", c.Backend.URL)
		}
	}
	if c.Backend.Timeout < 0 {
		return errors.New("backend timeout must not be negative")
	}
	if c.Backend.RatePerSecond < 0 {
		return errors.New("backend rate_per_second must not be negative")
	}

	switch c.Practice.Policy {
	case selection.PolicyStrict, selection.PolicyLRU:
	default:
		return fmt.Errorf("invalid practice policy %q (must be strict or lru)", c.Practice.Policy)
	}
	if c.Practice.Budget < 1 {
		return fmt.Errorf("invalid practice budget: %d (must be at least 1)", c.Practice.Budget)
	}
	if c.Practice.TickInterval < 0 {
		return errors.New("practice tick_interval must not be negative")
	}
	if c.Practice.Levels < 1 {
		return fmt.Errorf("invalid practice levels: %d (must be at least 1)", c.Practice.Levels)
	}
	if c.Practice.FocusCount < 1 {
		return fmt.Errorf("invalid practice focus_count: %d (must be at least 1)", c.Practice.FocusCount)
	}

	if c.Progress.DailyGoal < 1 {
		return fmt.Errorf("invalid progress daily_goal: %d (must be at least 1)", c.Progress.DailyGoal)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown_timeout must be positive")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log format %q (must be json or console)", c.Log.Format)
	}
	return nil
}
