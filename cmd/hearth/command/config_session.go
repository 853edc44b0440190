package command

import (
	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-hearth/internal/coordinator"
	"github.com/pixil98/go-hearth/internal/storage"
)

type SessionConfig struct {
	DefaultSlot      string `json:"default_slot" env:"DEFAULT_SLOT"`
	AutoLoad         *bool  `json:"auto_load" env:"AUTO_LOAD"`
	AutoSaveInterval string `json:"auto_save_interval" env:"AUTO_SAVE_INTERVAL"`
	ShutdownTimeout  string `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

func (c *SessionConfig) validate() error {
	el := errors.NewErrorList()

	if c.DefaultSlot != "" {
		el.Add(storage.ValidateSlot(c.DefaultSlot))
	}
	if _, err := parseOptionalDuration("auto_save_interval", c.AutoSaveInterval); err != nil {
		el.Add(err)
	}
	if _, err := parseOptionalDuration("shutdown_timeout", c.ShutdownTimeout); err != nil {
		el.Add(err)
	}

	return el.Err()
}

func (c *SessionConfig) coordinatorOpts() []coordinator.CoordinatorOpt {
	var opts []coordinator.CoordinatorOpt

	if c.DefaultSlot != "" {
		opts = append(opts, coordinator.WithDefaultSlot(c.DefaultSlot))
	}
	if c.AutoLoad != nil {
		opts = append(opts, coordinator.WithAutoLoad(*c.AutoLoad))
	}
	if d, _ := parseOptionalDuration("auto_save_interval", c.AutoSaveInterval); d > 0 {
		opts = append(opts, coordinator.WithAutoSaveInterval(d))
	}
	if d, _ := parseOptionalDuration("shutdown_timeout", c.ShutdownTimeout); d > 0 {
		opts = append(opts, coordinator.WithShutdownTimeout(d))
	}

	return opts
}
