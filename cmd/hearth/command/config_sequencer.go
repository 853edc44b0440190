package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-hearth/internal/sequencer"
)

type SequencerConfig struct {
	PollInterval string `json:"poll_interval" env:"POLL_INTERVAL"`
	StepDelay    string `json:"step_delay" env:"STEP_DELAY"`
	// StepTimeouts overrides the timeout of individual steps by name.
	StepTimeouts map[string]string `json:"step_timeouts" env:"STEP_TIMEOUTS"`
}

func (c *SequencerConfig) validate() error {
	el := errors.NewErrorList()

	if _, err := parseOptionalDuration("poll_interval", c.PollInterval); err != nil {
		el.Add(err)
	}
	if _, err := parseOptionalDuration("step_delay", c.StepDelay); err != nil {
		el.Add(err)
	}
	for name, s := range c.StepTimeouts {
		if _, ok := stepDefaults[name]; !ok {
			el.Add(fmt.Errorf("step_timeouts: unknown step %q", name))
		}
		if _, err := parseOptionalDuration("step_timeouts."+name, s); err != nil {
			el.Add(err)
		}
	}

	return el.Err()
}

func (c *SequencerConfig) stepTimeout(name string) time.Duration {
	d, _ := parseOptionalDuration(name, c.StepTimeouts[name])
	if d > 0 {
		return d
	}
	return stepDefaults[name].timeout
}

func (c *SequencerConfig) BuildSequencer(steps []sequencer.Step, opts ...sequencer.Opt) *sequencer.Sequencer {
	if d, _ := parseOptionalDuration("poll_interval", c.PollInterval); d > 0 {
		opts = append(opts, sequencer.WithPollInterval(d))
	}
	if d, _ := parseOptionalDuration("step_delay", c.StepDelay); d > 0 {
		opts = append(opts, sequencer.WithStepDelay(d))
	}
	return sequencer.New(steps, opts...)
}
