package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/pixil98/go-hearth/internal/events"
	"github.com/pixil98/go-hearth/internal/player"
)

const (
	DefaultReplicationPrefix = "hearth.replica"
	DefaultQueueSize         = 16
	DefaultWorkers           = 2
	DefaultMaxAttempts       = 5
	DefaultRequestTimeout    = 5 * time.Second

	replyOK = "ok"
)

var (
	ErrReplication = errors.New("replicating snapshot")
	ErrRejected    = errors.New("remote rejected snapshot")
)

// Transport carries replication requests to the remote backend.
type Transport interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Connected() bool
}

// replica is the wire form of a replicated snapshot.
type replica struct {
	Slot      string            `json:"slot"`
	PlayerId  string            `json:"player_id"`
	SentAt    time.Time         `json:"sent_at"`
	Aggregate *player.Aggregate `json:"aggregate"`
}

type job struct {
	slot string
	agg  *player.Aggregate
}

// Replicator copies saved snapshots to a remote backend in the background.
// Local saves never wait on it: the queue is bounded and full queues drop.
type Replicator struct {
	transport Transport
	bus       events.Bus

	prefix         string
	queueSize      int
	workers        int
	maxAttempts    uint
	requestTimeout time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time

	queue   chan job
	started atomic.Bool
	dropped atomic.Int64
}

func NewReplicator(transport Transport, bus events.Bus, opts ...ReplicatorOpt) *Replicator {
	r := &Replicator{
		transport:      transport,
		bus:            bus,
		prefix:         DefaultReplicationPrefix,
		queueSize:      DefaultQueueSize,
		workers:        DefaultWorkers,
		maxAttempts:    DefaultMaxAttempts,
		requestTimeout: DefaultRequestTimeout,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.queue = make(chan job, r.queueSize)
	return r
}

// Subject is the request subject for a player's slot.
func (r *Replicator) Subject(playerId, slot string) string {
	return fmt.Sprintf("%s.%s.%s", r.prefix, playerId, slot)
}

// Enqueue schedules agg for replication. It never blocks; when the queue is
// full the snapshot is dropped with a warning.
func (r *Replicator) Enqueue(slot string, agg *player.Aggregate) {
	if agg == nil {
		return
	}

	select {
	case r.queue <- job{slot: slot, agg: agg}:
	default:
		r.dropped.Add(1)
		slog.Warn("replication queue full, dropping snapshot", "slot", slot, "player", agg.Profile.PlayerId)
	}
}

// Dropped returns how many snapshots were discarded because the queue was full.
func (r *Replicator) Dropped() int64 {
	return r.dropped.Load()
}

// Connected reports whether the worker is running and the transport is up.
func (r *Replicator) Connected() bool {
	return r.started.Load() && r.transport != nil && r.transport.Connected()
}

// Probe is an initialization probe for the cloud step.
func (r *Replicator) Probe(ctx context.Context) (bool, error) {
	return r.Connected(), nil
}

// Start delivers queued snapshots until ctx is done, using at most workers
// concurrent deliveries.
func (r *Replicator) Start(ctx context.Context) error {
	if r.transport == nil {
		return fmt.Errorf("%w: no transport configured", ErrReplication)
	}

	r.started.Store(true)
	defer r.started.Store(false)

	var g errgroup.Group
	g.SetLimit(r.workers)

	for {
		select {
		case <-ctx.Done():
			if n := len(r.queue); n > 0 {
				slog.WarnContext(ctx, "replication stopped with snapshots pending", "pending", n)
			}
			return g.Wait()
		case j := <-r.queue:
			g.Go(func() error {
				r.deliver(ctx, j)
				return nil
			})
		}
	}
}

func (r *Replicator) deliver(ctx context.Context, j job) {
	playerId := j.agg.Profile.PlayerId
	subject := r.Subject(playerId, j.slot)

	err := r.send(ctx, subject, replica{
		Slot:      j.slot,
		PlayerId:  playerId,
		SentAt:    r.now(),
		Aggregate: j.agg,
	})

	ev := events.CloudSave{Slot: j.slot, PlayerId: playerId, At: r.now()}
	if err != nil {
		slog.WarnContext(ctx, "replication failed", "slot", j.slot, "player", playerId, "error", err)
		ev.Error = err.Error()
		r.publish(ctx, events.CloudSaveFailed, ev)
		return
	}

	slog.DebugContext(ctx, "snapshot replicated", "slot", j.slot, "player", playerId)
	r.publish(ctx, events.CloudSaveComplete, ev)
}

func (r *Replicator) send(ctx context.Context, subject string, msg replica) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: marshalling: %w", ErrReplication, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialBackoff
	b.MaxInterval = r.maxBackoff

	attempt := func() (struct{}, error) {
		reqCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
		defer cancel()

		reply, err := r.transport.Request(reqCtx, subject, data)
		if err != nil {
			return struct{}{}, err
		}
		if resp := string(reply); resp != replyOK {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %s", ErrRejected, strings.TrimPrefix(resp, "error: ")))
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.DebugContext(ctx, "retrying replication", "subject", subject, "in", next, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReplication, subject, err)
	}
	return nil
}

func (r *Replicator) publish(ctx context.Context, subject string, ev events.CloudSave) {
	if r.bus == nil {
		return
	}
	if err := events.Emit(r.bus, subject, ev); err != nil {
		slog.WarnContext(ctx, "publishing replication outcome", "subject", subject, "error", err)
	}
}
