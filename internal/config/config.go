package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/opsdesk/vigia/internal/db"
	"github.com/opsdesk/vigia/internal/schedule"
	"github.com/opsdesk/vigia/internal/sink/slack"
	"github.com/opsdesk/vigia/internal/source"
)

// Config represents the application configuration
type Config struct {
	// Timezone is the civil timezone business windows, weekly schedules and
	// report headers are evaluated in.
	Timezone string `toml:"timezone"`

	Runner   RunnerConfig          `toml:"runner"`
	Gate     GateConfig            `toml:"gate"`
	Database db.Config             `toml:"database"`
	Slack    slack.Config          `toml:"slack"`
	Superset source.SupersetConfig `toml:"superset"`
	History  HistoryConfig         `toml:"history"`
	Logging  LoggingConfig         `toml:"logging"`
	Jobs     []JobConfig           `toml:"jobs"`
}

// RunnerConfig holds the main loop settings
type RunnerConfig struct {
	TickInterval time.Duration `toml:"tick_interval"`
}

// GateConfig holds the connectivity gate target settings
type GateConfig struct {
	Host         string        `toml:"host"`
	Port         int           `toml:"port"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	PollInterval time.Duration `toml:"poll_interval"`
}

// HistoryConfig holds the optional local run-history settings
type HistoryConfig struct {
	Enabled    bool   `toml:"enabled"`
	DSN        string `toml:"dsn"`
	BufferSize int    `toml:"buffer_size"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// JobConfig declares one reporting job. Each entry becomes one registered
// job with its own source, transform, schedule and window.
type JobConfig struct {
	Name    string `toml:"name"`
	Kind    string `toml:"kind"`   // "sql" or "superset"
	Report  string `toml:"report"` // "steps", "summary" or "chart"
	Label   string `toml:"label"`
	Channel string `toml:"channel"`

	// Query is the aggregate SQL for kind="sql".
	Query string `toml:"query"`

	// ChartID is the Superset chart for kind="superset".
	ChartID int `toml:"chart_id"`

	// Schedule: either an interval or weekday wall-clock times, never both.
	Every time.Duration `toml:"every"`
	Days  []string      `toml:"days"`
	Times []string      `toml:"times"`

	// Window is "business" (default) or "always".
	Window string `toml:"window"`

	FetchTimeout   time.Duration `toml:"fetch_timeout"`
	DeliverTimeout time.Duration `toml:"deliver_timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Timezone: "America/Fortaleza",
		Runner: RunnerConfig{
			TickInterval: 30 * time.Second,
		},
		Gate: GateConfig{
			Port:         5432,
			DialTimeout:  5 * time.Second,
			PollInterval: 15 * time.Minute,
		},
		Database: db.Config{
			Driver:          "postgres",
			MaxOpenConns:    2,
			MaxIdleConns:    0,
			ConnMaxLifetime: 5 * time.Minute,
		},
		History: HistoryConfig{
			Enabled:    false,
			DSN:        "vigia_history.db",
			BufferSize: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Environment variables for secrets
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}

		if _, err := toml.DecodeFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()

	return config, nil
}

// applyEnv overrides secrets from the environment so tokens can stay out of
// the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SLACK_TOKEN"); v != "" {
		c.Slack.Token = v
	}
	if v := os.Getenv("VIGIA_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("SUPERSET_PASSWORD"); v != "" {
		c.Superset.Password = v
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate checks if the configuration is valid. Any error here is fatal at
// startup: a misconfigured bot must not come up half-working.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if c.Runner.TickInterval <= 0 {
		return fmt.Errorf("runner tick_interval must be positive")
	}

	if c.Gate.DialTimeout <= 0 {
		return fmt.Errorf("gate dial_timeout must be positive")
	}
	if c.Gate.PollInterval <= 0 {
		return fmt.Errorf("gate poll_interval must be positive")
	}

	if c.Slack.Token == "" {
		return fmt.Errorf("slack token must be set (config or SLACK_TOKEN)")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	if c.History.Enabled && c.History.DSN == "" {
		return fmt.Errorf("history dsn must be set when history is enabled")
	}

	if len(c.Jobs) == 0 {
		return fmt.Errorf("at least one job must be configured")
	}

	seen := map[string]bool{}
	needsDatabase := false
	needsGate := false
	needsSuperset := false

	for i, jc := range c.Jobs {
		if err := c.validateJob(jc); err != nil {
			return fmt.Errorf("job %d (%s): %w", i, jc.Name, err)
		}

		if seen[jc.Name] {
			return fmt.Errorf("duplicate job name: %s", jc.Name)
		}
		seen[jc.Name] = true

		if jc.Kind == "sql" {
			needsDatabase = true
			needsGate = true
		}
		if jc.Kind == "superset" {
			needsSuperset = true
		}
	}

	if needsDatabase {
		if c.Database.Driver == "" || c.Database.DSN == "" {
			return fmt.Errorf("database driver and dsn must be set for sql jobs")
		}
		if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite3" {
			return fmt.Errorf("unsupported database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
		}
	}
	if needsGate && c.Gate.Host == "" {
		return fmt.Errorf("gate host must be set for sql jobs")
	}
	if needsSuperset {
		if c.Superset.URL == "" || c.Superset.Username == "" {
			return fmt.Errorf("superset url and username must be set for superset jobs")
		}
	}

	return nil
}

func (c *Config) validateJob(jc JobConfig) error {
	if jc.Name == "" {
		return fmt.Errorf("name must be set")
	}
	if jc.Channel == "" {
		return fmt.Errorf("channel must be set")
	}

	switch jc.Kind {
	case "sql":
		if jc.Query == "" {
			return fmt.Errorf("query must be set for kind sql")
		}
	case "superset":
		if jc.ChartID <= 0 {
			return fmt.Errorf("chart_id must be set for kind superset")
		}
	default:
		return fmt.Errorf("invalid kind: %q (must be sql or superset)", jc.Kind)
	}

	switch jc.Report {
	case "steps", "summary", "chart":
	default:
		return fmt.Errorf("invalid report: %q (must be steps, summary, or chart)", jc.Report)
	}

	switch jc.Window {
	case "", "business", "always":
	default:
		return fmt.Errorf("invalid window: %q (must be business or always)", jc.Window)
	}

	hasInterval := jc.Every > 0
	hasWeekly := len(jc.Days) > 0 || len(jc.Times) > 0

	if hasInterval == hasWeekly {
		return fmt.Errorf("exactly one of 'every' or 'days'+'times' must be set")
	}

	if hasWeekly {
		if len(jc.Days) == 0 || len(jc.Times) == 0 {
			return fmt.Errorf("weekly schedule needs both days and times")
		}
		for _, d := range jc.Days {
			if _, err := schedule.ParseWeekday(d); err != nil {
				return err
			}
		}
		for _, tod := range jc.Times {
			if _, err := schedule.ParseTimeOfDay(tod); err != nil {
				return err
			}
		}
	}

	return nil
}
