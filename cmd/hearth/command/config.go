package command

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pixil98/go-errors"
)

const (
	EnvPrefix           = "HEARTH_"
	DefaultTickInterval = time.Second
)

type Config struct {
	TickInterval string            `json:"tick_interval" env:"TICK_INTERVAL"`
	LogLevel     string            `json:"log_level" env:"LOG_LEVEL"`
	Storage      StorageConfig     `json:"storage" envPrefix:"STORAGE_"`
	Nats         NatsConfig        `json:"nats" envPrefix:"NATS_"`
	Sequencer    SequencerConfig   `json:"sequencer" envPrefix:"SEQUENCER_"`
	Session      SessionConfig     `json:"session" envPrefix:"SESSION_"`
	Replication  ReplicationConfig `json:"replication" envPrefix:"REPLICATION_"`
	Settings     SettingsConfig    `json:"settings" envPrefix:"SETTINGS_"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if _, err := c.tickInterval(); err != nil {
		el.Add(err)
	}
	if _, err := c.logLevel(); err != nil {
		el.Add(err)
	}

	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Sequencer.validate())
	el.Add(c.Session.validate())
	el.Add(c.Replication.validate())
	el.Add(c.Settings.validate())

	if c.Replication.Enabled && c.Nats.Disabled {
		el.Add(fmt.Errorf("replication requires nats"))
	}

	return el.Err()
}

// ApplyEnv overlays HEARTH_* environment variables onto the loaded config.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(nil)
}

func (c *Config) applyEnv(environment map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

func (c *Config) tickInterval() (time.Duration, error) {
	if c.TickInterval == "" {
		return DefaultTickInterval, nil
	}

	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing tick_interval: %w", err)
	}
	if d < 10*time.Millisecond {
		return 0, fmt.Errorf("tick_interval must be at least 10ms")
	}
	return d, nil
}

func (c *Config) logLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("parsing log_level: %w", err)
	}
	return lvl, nil
}

func (c *Config) configureLogging() {
	lvl, err := c.logLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// parseOptionalDuration parses s, returning zero when it is empty.
func parseOptionalDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return d, nil
}
