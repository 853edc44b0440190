package sequencer

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Opt func(*Sequencer)

// WithPollInterval sets how often a step's probe is retried.
func WithPollInterval(d time.Duration) Opt {
	return func(s *Sequencer) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithStepDelay sets a pause between consecutive steps.
func WithStepDelay(d time.Duration) Opt {
	return func(s *Sequencer) {
		s.stepDelay = d
	}
}

// WithProgressFunc is called after each step with the fraction finished.
func WithProgressFunc(fn func(step string, progress float64)) Opt {
	return func(s *Sequencer) {
		s.onProgress = fn
	}
}

// WithCompletionFunc registers a callback for when the sequence completes.
func WithCompletionFunc(fn func(Result)) Opt {
	return func(s *Sequencer) {
		s.onComplete = append(s.onComplete, fn)
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Opt {
	return func(s *Sequencer) {
		s.tracer = tp.Tracer(tracerName)
	}
}
