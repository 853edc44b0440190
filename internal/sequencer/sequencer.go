package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStepTimeout  = 10 * time.Second
)

var ErrStepTimeout = errors.New("initialization step timed out")

const tracerName = "github.com/pixil98/go-hearth/internal/sequencer"

// Sequencer runs a fixed list of initialization steps strictly in order. A step
// that never becomes ready is logged and skipped; the sequence always reaches
// Complete.
type Sequencer struct {
	steps        []Step
	pollInterval time.Duration
	stepDelay    time.Duration
	onProgress   func(step string, progress float64)
	tracer       trace.Tracer

	mu         sync.RWMutex
	state      State
	progress   float64
	result     Result
	onComplete []func(Result)
	started    bool
	done       chan struct{}
}

func New(steps []Step, opts ...Opt) *Sequencer {
	s := &Sequencer{
		steps:        make([]Step, len(steps)),
		pollInterval: DefaultPollInterval,
		tracer:       otel.Tracer(tracerName),
		done:         make(chan struct{}),
	}
	copy(s.steps, steps)

	for _, opt := range opts {
		opt(s)
	}

	for i := range s.steps {
		if s.steps[i].Timeout <= 0 {
			s.steps[i].Timeout = DefaultStepTimeout
		}
	}

	return s
}

// State returns a snapshot of the sequencer's position.
func (s *Sequencer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Progress returns the fraction of steps finished, 1.0 only once Complete.
func (s *Sequencer) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Done is closed once the sequencer reaches Complete.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// Result returns the outcome of the run. It is only meaningful after Done is closed.
func (s *Sequencer) Result() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// OnComplete registers fn to run when the sequence completes. If it already
// has, fn runs immediately.
func (s *Sequencer) OnComplete(fn func(Result)) {
	s.mu.Lock()
	if s.state.Phase != Complete {
		s.onComplete = append(s.onComplete, fn)
		s.mu.Unlock()
		return
	}
	res := s.result
	s.mu.Unlock()

	fn(res)
}

// Start runs the sequence and then blocks until ctx is done.
func (s *Sequencer) Start(ctx context.Context) error {
	s.Run(ctx)
	<-ctx.Done()
	return nil
}

// Run executes every step in order and returns once the sequence is Complete.
// Calling Run again waits for the first run and returns its result.
func (s *Sequencer) Run(ctx context.Context) Result {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		slog.WarnContext(ctx, "initialization sequence already started")
		<-s.done
		return s.Result()
	}
	s.started = true
	s.mu.Unlock()

	start := time.Now()
	total := len(s.steps)
	results := make([]StepResult, 0, total)

	for i, step := range s.steps {
		if i > 0 && s.stepDelay > 0 {
			s.wait(ctx, s.stepDelay)
		}

		s.setState(State{Phase: Running, Index: i})
		slog.DebugContext(ctx, "running initialization step", "step", step.Name, "index", i, "required", step.Required)

		res := s.runStep(ctx, step)
		results = append(results, res)
		s.report(ctx, res)

		if i < total-1 {
			s.advance(step.Name, float64(i+1)/float64(total))
		}
	}

	result := Result{Elapsed: time.Since(start), Steps: results}
	s.complete(ctx, result)

	return result
}

func (s *Sequencer) runStep(ctx context.Context, step Step) StepResult {
	ctx, span := s.tracer.Start(ctx, "initialization step "+step.Name, trace.WithAttributes(
		attribute.String("step.name", step.Name),
		attribute.Bool("step.required", step.Required),
		attribute.Int64("step.timeout_ms", step.Timeout.Milliseconds()),
	))
	defer span.End()

	start := time.Now()
	res := StepResult{Name: step.Name, Required: step.Required}

	if step.Probe == nil {
		res.Ready = true
		span.SetAttributes(attribute.Bool("step.ready", true))
		return res
	}

	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// At most one probe runs at a time. A probe still running when the step
	// times out is abandoned; its result lands in the buffered channel.
	results := make(chan probeResult, 1)
	inflight := false
	launch := func() {
		inflight = true
		go func() {
			results <- callProbe(stepCtx, step.Probe)
		}()
	}

	var lastErr error
	launch()
	for {
		select {
		case r := <-results:
			inflight = false
			if r.ready {
				res.Ready = true
				res.Elapsed = time.Since(start)
				span.SetAttributes(attribute.Bool("step.ready", true))
				return res
			}
			if r.err != nil {
				lastErr = r.err
			}

		case <-ticker.C:
			if !inflight {
				launch()
			}

		case <-stepCtx.Done():
			res.Elapsed = time.Since(start)
			res.Err = fmt.Errorf("%w: %s after %s", ErrStepTimeout, step.Name, res.Elapsed.Round(time.Millisecond))
			if lastErr != nil {
				res.Err = errors.Join(res.Err, lastErr)
			}
			span.SetAttributes(attribute.Bool("step.ready", false))
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "timed out")
			return res
		}
	}
}

type probeResult struct {
	ready bool
	err   error
}

// callProbe treats a panicking probe the same as one that reports not ready.
func callProbe(ctx context.Context, p Probe) (r probeResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r = probeResult{err: fmt.Errorf("probe panicked: %v", rec)}
		}
	}()

	ready, err := p(ctx)
	return probeResult{ready: ready, err: err}
}

func (s *Sequencer) report(ctx context.Context, res StepResult) {
	switch {
	case res.Ready:
		slog.InfoContext(ctx, "initialization step ready", "step", res.Name, "elapsed", res.Elapsed)
	case res.Required:
		// The sequence carries on past a failed required step; later steps must
		// tolerate a missing dependency.
		slog.ErrorContext(ctx, "required initialization step timed out", "step", res.Name, "elapsed", res.Elapsed, "error", res.Err)
	default:
		slog.WarnContext(ctx, "optional initialization step timed out", "step", res.Name, "elapsed", res.Elapsed, "error", res.Err)
	}
}

func (s *Sequencer) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Sequencer) advance(step string, progress float64) {
	s.mu.Lock()
	if progress > s.progress {
		s.progress = progress
	}
	progress = s.progress
	s.mu.Unlock()

	if s.onProgress != nil {
		s.onProgress(step, progress)
	}
}

func (s *Sequencer) complete(ctx context.Context, result Result) {
	lastStep := ""
	if n := len(s.steps); n > 0 {
		lastStep = s.steps[n-1].Name
	}

	s.mu.Lock()
	s.state = State{Phase: Complete, Index: len(s.steps)}
	s.progress = 1.0
	s.result = result
	callbacks := s.onComplete
	s.onComplete = nil
	close(s.done)
	s.mu.Unlock()

	if s.onProgress != nil {
		s.onProgress(lastStep, 1.0)
	}

	slog.InfoContext(ctx, "initialization complete",
		"elapsed", result.Elapsed,
		"steps", len(result.Steps),
		"failed_required", len(result.RequiredFailures()))

	for _, fn := range callbacks {
		fn(result)
	}
}

func (s *Sequencer) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
