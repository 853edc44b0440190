package sequencer

import (
	"context"
	"time"
)

// Probe reports whether a step's precondition is satisfied. It is called
// repeatedly and must be idempotent. An error counts as not ready.
type Probe func(ctx context.Context) (bool, error)

// Step is one named unit of startup work.
type Step struct {
	Name     string
	Required bool
	Timeout  time.Duration
	Probe    Probe
}

type Phase int

const (
	NotStarted Phase = iota
	Running
	Complete
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// State is the sequencer's position. Index is the running step while Running.
type State struct {
	Phase Phase
	Index int
}

type StepResult struct {
	Name     string
	Required bool
	Ready    bool
	Elapsed  time.Duration
	Err      error
}

type Result struct {
	Elapsed time.Duration
	Steps   []StepResult
}

// RequiredFailures returns the required steps that never became ready.
func (r Result) RequiredFailures() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Required && !s.Ready {
			failed = append(failed, s)
		}
	}
	return failed
}

// Ready reports whether the named step became ready.
func (r Result) Ready(name string) bool {
	for _, s := range r.Steps {
		if s.Name == name {
			return s.Ready
		}
	}
	return false
}
