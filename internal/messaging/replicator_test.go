package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-hearth/internal/events"
	"github.com/pixil98/go-hearth/internal/player"
	"github.com/pixil98/go-testutil"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeTransport answers requests from a script of replies, then "ok".
type fakeTransport struct {
	mu        sync.Mutex
	replies   []fakeReply
	requests  []string
	payloads  [][]byte
	connected bool
}

type fakeReply struct {
	data string
	err  error
}

func (f *fakeTransport) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, subject)
	f.payloads = append(f.payloads, data)
	if len(f.replies) == 0 {
		return []byte(replyOK), nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return []byte(r.data), r.err
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func outcomes(t *testing.T, bus *events.LocalBus) <-chan string {
	t.Helper()
	ch := make(chan string, 8)
	for _, subject := range []string{events.CloudSaveComplete, events.CloudSaveFailed} {
		_, err := bus.Subscribe(subject, func(data []byte) {
			ev, err := events.Decode[events.CloudSave](data)
			if err != nil {
				t.Errorf("decoding outcome: %v", err)
			}
			if ev.Slot == "" || ev.PlayerId == "" {
				t.Errorf("outcome missing slot or player: %+v", ev)
			}
			ch <- subject
		})
		if err != nil {
			t.Fatalf("subscribing: %v", err)
		}
	}
	return ch
}

func TestReplicator_Deliver(t *testing.T) {
	transient := errors.New("no responders")

	tests := map[string]struct {
		replies     []fakeReply
		maxAttempts uint
		expOutcome  string
		expRequests int
	}{
		"first attempt": {
			expOutcome:  events.CloudSaveComplete,
			expRequests: 1,
		},
		"retried until success": {
			replies:     []fakeReply{{err: transient}, {err: transient}},
			maxAttempts: 5,
			expOutcome:  events.CloudSaveComplete,
			expRequests: 3,
		},
		"attempts exhausted": {
			replies:     []fakeReply{{err: transient}, {err: transient}, {err: transient}},
			maxAttempts: 3,
			expOutcome:  events.CloudSaveFailed,
			expRequests: 3,
		},
		"rejected is not retried": {
			replies:     []fakeReply{{data: "error: bad snapshot"}},
			maxAttempts: 5,
			expOutcome:  events.CloudSaveFailed,
			expRequests: 1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			transport := &fakeTransport{replies: tt.replies, connected: true}
			bus := events.NewLocalBus()
			results := outcomes(t, bus)

			r := NewReplicator(transport, bus,
				WithMaxAttempts(tt.maxAttempts),
				WithBackoff(time.Millisecond, 2*time.Millisecond))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = r.Start(ctx) }()

			agg := player.NewAggregate(epoch)
			r.Enqueue("auto", agg)

			select {
			case got := <-results:
				testutil.AssertEqual(t, "outcome", got, tt.expOutcome)
			case <-time.After(2 * time.Second):
				t.Fatal("no replication outcome published")
			}

			testutil.AssertEqual(t, "requests", transport.requestCount(), tt.expRequests)
			testutil.AssertEqual(t, "subject", transport.requests[0], DefaultReplicationPrefix+"."+agg.Profile.PlayerId+".auto")

			var msg replica
			if err := json.Unmarshal(transport.payloads[0], &msg); err != nil {
				t.Fatalf("decoding payload: %v", err)
			}
			testutil.AssertEqual(t, "payload slot", msg.Slot, "auto")
			testutil.AssertEqual(t, "payload player", msg.Aggregate.Profile.PlayerId, agg.Profile.PlayerId)
		})
	}
}

func TestReplicator_EnqueueNeverBlocks(t *testing.T) {
	r := NewReplicator(&fakeTransport{}, nil, WithQueueSize(2))
	agg := player.NewAggregate(epoch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			r.Enqueue("auto", agg)
		}
		r.Enqueue("auto", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	testutil.AssertEqual(t, "dropped", r.Dropped(), int64(3))
}

func TestReplicator_Connected(t *testing.T) {
	transport := &fakeTransport{connected: true}
	r := NewReplicator(transport, nil)

	ready, _ := r.Probe(context.Background())
	testutil.AssertEqual(t, "before start", ready, false)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !r.Connected() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	testutil.AssertEqual(t, "running", r.Connected(), true)

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "stopped", r.Connected(), false)
}

func TestReplicator_NoTransport(t *testing.T) {
	r := NewReplicator(nil, nil)
	err := r.Start(context.Background())
	if !errors.Is(err, ErrReplication) {
		t.Fatalf("expected ErrReplication, got %v", err)
	}
}

func TestReplicator_Subject(t *testing.T) {
	r := NewReplicator(nil, nil, WithSubjectPrefix("cloud"))
	testutil.AssertEqual(t, "subject", r.Subject("p1", "slot_2"), "cloud.p1.slot_2")
}
