package coordinator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixil98/go-hearth/internal/events"
	"github.com/pixil98/go-hearth/internal/player"
	"github.com/pixil98/go-hearth/internal/sequencer"
	"github.com/pixil98/go-hearth/internal/storage"
	"github.com/pixil98/go-testutil"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type openGate struct{ ch chan struct{} }

func newOpenGate() *openGate {
	g := &openGate{ch: make(chan struct{})}
	close(g.ch)
	return g
}

func (g *openGate) Done() <-chan struct{} { return g.ch }

type fakeApplier struct {
	mu       sync.Mutex
	music    float64
	sfx      float64
	language string
	calls    int
	panics   bool
}

func (a *fakeApplier) SetMusicVolume(v float64) {
	if a.panics {
		panic("mixer unavailable")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.music = v
	a.calls++
}

func (a *fakeApplier) SetSfxVolume(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sfx = v
}

func (a *fakeApplier) SetLanguage(code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.language = code
	return nil
}

// gateCheckingStore records whether the gate was closed when each load happened.
type gateCheckingStore struct {
	storage.SlotStore
	gate       Gate
	loads      atomic.Int32
	earlyLoads atomic.Int32
}

func (s *gateCheckingStore) Load(ctx context.Context, slot string) *player.Aggregate {
	s.loads.Add(1)
	select {
	case <-s.gate.Done():
	default:
		s.earlyLoads.Add(1)
	}
	return s.SlotStore.Load(ctx, slot)
}

type harness struct {
	store   *storage.FileStore
	ring    *storage.AutoSaveRing
	prefs   *storage.FilePreferences
	bus     *events.LocalBus
	applier *fakeApplier
	clock   *fakeClock
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewFileStore(filepath.Join(dir, "saves"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	prefs, err := storage.OpenFilePreferences(filepath.Join(dir, "preferences.json"))
	if err != nil {
		t.Fatalf("opening preferences: %v", err)
	}

	return &harness{
		store:   store,
		ring:    storage.NewAutoSaveRing(store, 3),
		prefs:   prefs,
		bus:     events.NewLocalBus(),
		applier: &fakeApplier{},
		clock:   &fakeClock{now: epoch},
		dir:     dir,
	}
}

func (h *harness) coordinator(opts ...CoordinatorOpt) *Coordinator {
	opts = append([]CoordinatorOpt{WithClock(h.clock.Now), WithAutoSaveInterval(time.Minute)}, opts...)
	return NewCoordinator(newOpenGate(), h.store, h.ring, h.prefs, h.bus, h.applier, opts...)
}

func (h *harness) initialized(t *testing.T, opts ...CoordinatorOpt) *Coordinator {
	t.Helper()
	c := h.coordinator(opts...)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initializing: %v", err)
	}
	return c
}

func TestCoordinator_LoadsOnlyAfterSequenceCompletes(t *testing.T) {
	h := newHarness(t)

	var probes atomic.Int32
	seq := sequencer.New([]sequencer.Step{{
		Name:     "slow",
		Required: true,
		Timeout:  time.Second,
		Probe: func(ctx context.Context) (bool, error) {
			return probes.Add(1) >= 20, nil
		},
	}}, sequencer.WithPollInterval(time.Millisecond))

	store := &gateCheckingStore{SlotStore: h.store, gate: seq}
	c := NewCoordinator(seq, store, h.ring, h.prefs, h.bus, h.applier, WithClock(h.clock.Now))

	initErr := make(chan error, 1)
	go func() { initErr <- c.Initialize(context.Background()) }()

	time.Sleep(5 * time.Millisecond)
	seq.Run(context.Background())

	select {
	case err := <-initErr:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not initialize after the sequence completed")
	}

	if store.loads.Load() == 0 {
		t.Fatal("expected the coordinator to load the default slot")
	}
	testutil.AssertEqual(t, "loads before completion", store.earlyLoads.Load(), int32(0))
}

func TestCoordinator_InitializeCancelledWhileWaiting(t *testing.T) {
	h := newHarness(t)
	gate := &openGate{ch: make(chan struct{})}
	c := NewCoordinator(gate, h.store, h.ring, h.prefs, h.bus, h.applier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Initialize(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	testutil.AssertEqual(t, "initialized", c.Initialized(), false)

	close(gate.ch)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("retrying initialize: %v", err)
	}
	testutil.AssertEqual(t, "initialized", c.Initialized(), true)
}

func TestCoordinator_NewPlayerBootstrap(t *testing.T) {
	h := newHarness(t)
	c := h.initialized(t)

	agg := c.Snapshot()
	if agg == nil {
		t.Fatal("expected an aggregate")
	}
	testutil.AssertEqual(t, "level", agg.Progression.Level, 1)
	testutil.AssertEqual(t, "currency", agg.Progression.Currency, 100)
	testutil.AssertEqual(t, "experience", agg.Progression.Experience, 0)
	testutil.AssertEqual(t, "completed", len(agg.Progression.CompletedUnitIds), 0)
	testutil.AssertEqual(t, "settings", agg.Settings, player.DefaultSettings())

	// A new player is only written at the first save point.
	if h.store.Load(context.Background(), DefaultSlot) != nil {
		t.Error("expected no snapshot before the first save")
	}

	testutil.AssertEqual(t, "music applied", h.applier.music, 0.8)
	testutil.AssertEqual(t, "language applied", h.applier.language, "en")
	testutil.AssertEqual(t, "session", c.Session(), SessionInfo{Number: 1, StartedAt: epoch})
}

func TestCoordinator_LoadsSavedGame(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		slot     string
		autoLoad bool
		seed     map[string]int
		expLevel int
		expMusic float64
		expEvent bool
	}{
		"default slot without auto-load": {
			slot:     "slot1",
			seed:     map[string]int{"slot1": 2300},
			expLevel: 8,
			expMusic: 0.3,
		},
		"default slot resumed": {
			slot:     "slot1",
			autoLoad: true,
			seed:     map[string]int{"slot1": 120},
			expLevel: 2,
			expMusic: 0.3,
			expEvent: true,
		},
		"stale auto slot does not replace default slot": {
			slot:     "slot1",
			autoLoad: true,
			seed:     map[string]int{"slot1": 120, AutoSlot: 500},
			expLevel: 2,
			expMusic: 0.3,
			expEvent: true,
		},
		"auto slot resumed": {
			slot:     AutoSlot,
			autoLoad: true,
			seed:     map[string]int{AutoSlot: 500},
			expLevel: 4,
			expMusic: 0.3,
			expEvent: true,
		},
		"auto-load with nothing saved": {
			slot:     "slot1",
			autoLoad: true,
			seed:     map[string]int{AutoSlot: 500},
			expLevel: 1,
			expMusic: 0.8,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			for slot, exp := range tt.seed {
				agg := player.NewAggregate(epoch)
				if _, err := agg.AddExperience(exp); err != nil {
					t.Fatalf("seeding: %v", err)
				}
				agg.Settings.MusicVolume = 0.3
				if err := h.store.Save(ctx, slot, agg); err != nil {
					t.Fatalf("seeding: %v", err)
				}
			}

			var resumed []events.SessionResume
			_, _ = h.bus.Subscribe(events.SessionResumed, func(data []byte) {
				ev, err := events.Decode[events.SessionResume](data)
				if err != nil {
					t.Errorf("decoding resume: %v", err)
				}
				resumed = append(resumed, ev)
			})

			gate := newOpenGate()
			store := &gateCheckingStore{SlotStore: h.store, gate: gate}
			c := NewCoordinator(gate, store, h.ring, h.prefs, h.bus, h.applier,
				WithClock(h.clock.Now), WithDefaultSlot(tt.slot), WithAutoLoad(tt.autoLoad))
			if err := c.Initialize(ctx); err != nil {
				t.Fatalf("initializing: %v", err)
			}

			testutil.AssertEqual(t, "level", c.Snapshot().Progression.Level, tt.expLevel)
			testutil.AssertEqual(t, "music applied", h.applier.music, tt.expMusic)
			testutil.AssertEqual(t, "settings applied", h.applier.calls, 1)
			testutil.AssertEqual(t, "loads", store.loads.Load(), int32(1))
			expEvents := 0
			if tt.expEvent {
				expEvents = 1
			}
			testutil.AssertEqual(t, "resume events", len(resumed), expEvents)
			if tt.expEvent {
				testutil.AssertEqual(t, "resumed slot", resumed[0].Slot, tt.slot)
			}
		})
	}
}

func TestCoordinator_SessionNumberStoredAtStart(t *testing.T) {
	h := newHarness(t)
	c := h.initialized(t)
	testutil.AssertEqual(t, "session", c.Session().Number, 1)

	// No shutdown: the process is treated as crashed.
	prefs, err := storage.OpenFilePreferences(filepath.Join(h.dir, "preferences.json"))
	if err != nil {
		t.Fatalf("reopening preferences: %v", err)
	}
	var n int
	found, err := prefs.Get(SessionNumberKey, &n)
	if err != nil || !found {
		t.Fatalf("expected stored session number, found=%v err=%v", found, err)
	}
	testutil.AssertEqual(t, "stored", n, 1)

	next := NewCoordinator(newOpenGate(), h.store, h.ring, prefs, events.NewLocalBus(), h.applier, WithClock(h.clock.Now))
	if err := next.Initialize(context.Background()); err != nil {
		t.Fatalf("initializing: %v", err)
	}
	testutil.AssertEqual(t, "next session", next.Session().Number, 2)
}

// installCheckingBus reports whether the session already had an aggregate when
// each handler was registered.
type installCheckingBus struct {
	*events.LocalBus
	coordinator *Coordinator
	empty       atomic.Int32
}

func (b *installCheckingBus) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	if b.coordinator.Snapshot() == nil {
		b.empty.Add(1)
	}
	return b.LocalBus.Subscribe(subject, handler)
}

func TestCoordinator_SubscribesAfterAggregateInstalled(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	bus := &installCheckingBus{LocalBus: h.bus}
	c := NewCoordinator(newOpenGate(), h.store, h.ring, h.prefs, bus, h.applier, WithClock(h.clock.Now))
	bus.coordinator = c

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("initializing: %v", err)
	}
	testutil.AssertEqual(t, "subscriptions without aggregate", bus.empty.Load(), int32(0))

	if err := events.Emit(h.bus, events.UnitCompleted, events.UnitCompletion{UnitId: "harbor", Stars: 2}); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	testutil.AssertEqual(t, "completed", c.Snapshot().Progression.CompletedUnitIds, []string{"harbor"})
}

func TestCoordinator_InitializeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	c := h.initialized(t)
	first := c.Snapshot()

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("second initialize: %v", err)
	}

	testutil.AssertEqual(t, "player", c.Snapshot().Profile.PlayerId, first.Profile.PlayerId)
	testutil.AssertEqual(t, "subscribers", h.bus.Subscribers(events.UnitCompleted), 1)
	testutil.AssertEqual(t, "settings applied", h.applier.calls, 1)
	testutil.AssertEqual(t, "session", c.Session().Number, 1)
}

func TestCoordinator_MissingCollaborators(t *testing.T) {
	h := newHarness(t)
	c := NewCoordinator(newOpenGate(), h.store, nil, nil, nil, nil, WithClock(h.clock.Now))

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initializing: %v", err)
	}
	testutil.AssertEqual(t, "session", c.Session().Number, 1)

	if err := c.AutoSave(context.Background()); err != nil {
		t.Fatalf("auto-save: %v", err)
	}
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestCoordinator_ApplierPanicIsContained(t *testing.T) {
	h := newHarness(t)
	h.applier.panics = true

	c := h.initialized(t)
	testutil.AssertEqual(t, "initialized", c.Initialized(), true)
}

func TestCoordinator_Tick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.coordinator(WithAutoSaveInterval(0))

	// Ticks before initialization do nothing.
	if err := c.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("initializing: %v", err)
	}

	h.clock.Advance(2 * time.Second)
	_ = c.Tick(ctx)
	h.clock.Advance(3 * time.Second)
	_ = c.Tick(ctx)
	testutil.AssertEqual(t, "play time", c.Snapshot().Statistics.TotalPlayTime, 5.0)

	if err := c.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	h.clock.Advance(time.Hour)
	_ = c.Tick(ctx)
	testutil.AssertEqual(t, "paused play time", c.Snapshot().Statistics.TotalPlayTime, 5.0)

	c.Resume(ctx)
	h.clock.Advance(time.Second)
	_ = c.Tick(ctx)
	testutil.AssertEqual(t, "resumed play time", c.Snapshot().Statistics.TotalPlayTime, 6.0)

	// Play time is held in memory until a save point.
	testutil.AssertEqual(t, "saved play time", h.store.Load(ctx, DefaultSlot).Statistics.TotalPlayTime, 5.0)
}

func TestCoordinator_AutoSaveOnTick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.initialized(t, WithAutoSaveInterval(10*time.Second))

	for i := 0; i < 5; i++ {
		h.clock.Advance(4 * time.Second)
		if err := c.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	// 20s elapsed: one save, at 12s.
	slots, err := h.store.ListSlots(ctx)
	if err != nil {
		t.Fatalf("listing slots: %v", err)
	}
	testutil.AssertEqual(t, "slots", slots, []string{DefaultSlot, "auto_1"})
	testutil.AssertEqual(t, "saved play time", h.store.Load(ctx, "auto_1").Statistics.TotalPlayTime, 12.0)

	h.clock.Advance(4 * time.Second)
	_ = c.Tick(ctx)
	testutil.AssertEqual(t, "rotated", h.store.Load(ctx, "auto_2").Statistics.TotalPlayTime, 12.0)
	testutil.AssertEqual(t, "newest", h.store.Load(ctx, "auto_1").Statistics.TotalPlayTime, 24.0)
}

func TestCoordinator_AutoSaveDisabledBySettings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.initialized(t, WithAutoSaveInterval(time.Second))

	err := c.Update(func(a *player.Aggregate) error {
		a.Settings.AutoSaveEnabled = false
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	h.clock.Advance(time.Minute)
	_ = c.Tick(ctx)

	slots, _ := h.store.ListSlots(ctx)
	testutil.AssertEqual(t, "slots", len(slots), 0)
}

func TestCoordinator_AutoSaveRing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.initialized(t)

	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Second)
		if err := c.AutoSave(ctx); err != nil {
			t.Fatalf("auto-save %d: %v", i, err)
		}
	}

	slots, err := h.store.ListSlots(ctx)
	if err != nil {
		t.Fatalf("listing slots: %v", err)
	}
	testutil.AssertEqual(t, "slots", slots, []string{DefaultSlot, "auto_1", "auto_2", "auto_3"})
	testutil.AssertEqual(t, "newest", h.store.Load(ctx, "auto_1").Statistics.TotalPlayTime, 5.0)
	testutil.AssertEqual(t, "oldest", h.store.Load(ctx, "auto_3").Statistics.TotalPlayTime, 3.0)
}

func TestCoordinator_PauseSaves(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.initialized(t)

	if err := c.Update(func(a *player.Aggregate) error { return a.AddCurrency(50) }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}

	testutil.AssertEqual(t, "paused", c.Paused(), true)
	testutil.AssertEqual(t, "saved currency", h.store.Load(ctx, DefaultSlot).Progression.Currency, 150)

	// The subscriptions survive a pause.
	testutil.AssertEqual(t, "subscribers", h.bus.Subscribers(events.StateChanged), 1)
}

func TestCoordinator_Shutdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.initialized(t)

	h.clock.Advance(7 * time.Second)
	_ = c.Tick(ctx)

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	for _, subject := range []string{
		events.StateChanged,
		events.UnitCompleted,
		events.PointOfInterestVisits,
		events.CloudSaveComplete,
		events.CloudSaveFailed,
		events.LanguageChanged,
	} {
		testutil.AssertEqual(t, subject+" subscribers", h.bus.Subscribers(subject), 0)
	}

	var n int
	found, err := h.prefs.Get(SessionNumberKey, &n)
	if err != nil || !found {
		t.Fatalf("expected persisted session number, found=%v err=%v", found, err)
	}
	testutil.AssertEqual(t, "session number", n, 1)
	testutil.AssertEqual(t, "saved play time", h.store.Load(ctx, DefaultSlot).Statistics.TotalPlayTime, 7.0)

	// A second shutdown is a no-op.
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}

	next := h.initialized(t)
	testutil.AssertEqual(t, "next session", next.Session().Number, 2)
}

func TestCoordinator_CompleteUnit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.initialized(t)

	added, err := c.CompleteUnit(ctx, "harbor", 42.5, 5)
	if err != nil {
		t.Fatalf("completing: %v", err)
	}
	testutil.AssertEqual(t, "first completion", added, true)

	added, err = c.CompleteUnit(ctx, "harbor", 10, 1)
	if err != nil {
		t.Fatalf("completing again: %v", err)
	}
	testutil.AssertEqual(t, "second completion", added, false)

	saved := h.store.Load(ctx, DefaultSlot)
	testutil.AssertEqual(t, "completed ids", saved.Progression.CompletedUnitIds, []string{"harbor"})
	testutil.AssertEqual(t, "completions", len(saved.Statistics.CompletedUnits), 1)
	testutil.AssertEqual(t, "stars", saved.Statistics.CompletedUnits[0].StarsEarned, 3)
}

func TestCoordinator_Events(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		subject string
		payload any
		check   func(t *testing.T, h *harness, c *Coordinator)
	}{
		"unit completed saves": {
			subject: events.UnitCompleted,
			payload: events.UnitCompletion{UnitId: "lighthouse", Stars: 2, Elapsed: 30},
			check: func(t *testing.T, h *harness, c *Coordinator) {
				saved := h.store.Load(ctx, DefaultSlot)
				if saved == nil {
					t.Fatal("expected a save")
				}
				testutil.AssertEqual(t, "completed", saved.Progression.CompletedUnitIds, []string{"lighthouse"})
			},
		},
		"point of interest": {
			subject: events.PointOfInterestVisits,
			payload: events.PointOfInterestVisit{Count: 4},
			check: func(t *testing.T, h *harness, c *Coordinator) {
				testutil.AssertEqual(t, "visited", c.Snapshot().Statistics.PointsOfInterestVisited, 4)
			},
		},
		"paused": {
			subject: events.StateChanged,
			payload: events.StateChange{From: events.StatePlaying, To: events.StatePaused},
			check: func(t *testing.T, h *harness, c *Coordinator) {
				testutil.AssertEqual(t, "paused", c.Paused(), true)
				if h.store.Load(ctx, DefaultSlot) == nil {
					t.Error("expected pause to save")
				}
			},
		},
		"language changed": {
			subject: events.LanguageChanged,
			payload: events.LanguageChange{Language: "fr"},
			check: func(t *testing.T, h *harness, c *Coordinator) {
				testutil.AssertEqual(t, "language", c.Snapshot().Settings.Language, "fr")
			},
		},
		"cloud save complete": {
			subject: events.CloudSaveComplete,
			payload: events.CloudSave{Slot: DefaultSlot, At: epoch.Add(time.Hour)},
			check: func(t *testing.T, h *harness, c *Coordinator) {
				synced := c.Snapshot().Statistics.LastCloudSyncAt
				if synced == nil {
					t.Fatal("expected cloud sync time")
				}
				testutil.AssertEqual(t, "synced", synced.Equal(epoch.Add(time.Hour)), true)
			},
		},
		"cloud save for another player": {
			subject: events.CloudSaveComplete,
			payload: events.CloudSave{Slot: DefaultSlot, PlayerId: "someone-else", At: epoch},
			check: func(t *testing.T, h *harness, c *Coordinator) {
				testutil.AssertEqual(t, "synced", c.Snapshot().Statistics.LastCloudSyncAt == nil, true)
			},
		},
		"malformed payload": {
			subject: events.UnitCompleted,
			payload: "not an object",
			check: func(t *testing.T, h *harness, c *Coordinator) {
				testutil.AssertEqual(t, "completed", len(c.Snapshot().Progression.CompletedUnitIds), 0)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			c := h.initialized(t)

			if err := events.Emit(h.bus, tt.subject, tt.payload); err != nil {
				t.Fatalf("publishing: %v", err)
			}
			tt.check(t, h, c)
		})
	}
}

func TestCoordinator_Update(t *testing.T) {
	h := newHarness(t)
	c := h.initialized(t)

	err := c.Update(func(a *player.Aggregate) error {
		a.Progression.Level = 0
		return nil
	})
	testutil.AssertErrorContains(t, err, "rejecting update")
	testutil.AssertEqual(t, "level", c.Snapshot().Progression.Level, 1)

	err = c.Update(func(a *player.Aggregate) error {
		a.Settings.GraphicsQuality = "ultra"
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "graphics", c.Snapshot().Settings.GraphicsQuality, "ultra")

	err = c.Update(func(a *player.Aggregate) error {
		_ = a.AddCurrency(10)
		return a.SpendCurrency(1000)
	})
	if !errors.Is(err, player.ErrInsufficientCurrency) {
		t.Fatalf("expected ErrInsufficientCurrency, got %v", err)
	}
	testutil.AssertEqual(t, "currency", c.Snapshot().Progression.Currency, 100)
}

func TestCoordinator_NotInitialized(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.coordinator()

	testutil.AssertEqual(t, "snapshot", c.Snapshot() == nil, true)
	if err := c.SaveNow(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SaveNow: expected ErrNotInitialized, got %v", err)
	}
	if err := c.Pause(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Pause: expected ErrNotInitialized, got %v", err)
	}
	if err := c.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: unexpected error %v", err)
	}
}

func TestCoordinator_LoadSlotAndNewGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.initialized(t)
	original := c.Snapshot().Profile.PlayerId

	err := c.LoadSlot(ctx, "missing")
	if !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
	err = c.LoadSlot(ctx, "../escape")
	if !errors.Is(err, storage.ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}

	other := player.NewAggregate(epoch)
	other.Settings.Language = "de"
	if err := h.store.Save(ctx, "other", other); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if err := c.LoadSlot(ctx, "other"); err != nil {
		t.Fatalf("loading: %v", err)
	}
	testutil.AssertEqual(t, "player", c.Snapshot().Profile.PlayerId, other.Profile.PlayerId)
	testutil.AssertEqual(t, "language applied", h.applier.language, "de")

	if err := c.NewGame(ctx); err != nil {
		t.Fatalf("new game: %v", err)
	}
	fresh := c.Snapshot().Profile.PlayerId
	if fresh == original || fresh == other.Profile.PlayerId {
		t.Error("expected a new player id")
	}
	testutil.AssertEqual(t, "saved", h.store.Load(ctx, DefaultSlot).Profile.PlayerId, fresh)
}

func TestCoordinator_OnInitialized(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator()

	var calls []int
	c.OnInitialized(func(s SessionInfo) { calls = append(calls, s.Number) })

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initializing: %v", err)
	}
	c.OnInitialized(func(s SessionInfo) { calls = append(calls, s.Number*10) })

	testutil.AssertEqual(t, "calls", calls, []int{1, 10})

	select {
	case <-c.Ready():
	default:
		t.Error("expected Ready to be closed")
	}
}

func TestCoordinator_Start(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	<-c.Ready()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}

	if h.store.Load(context.Background(), DefaultSlot) == nil {
		t.Error("expected shutdown to save")
	}
	testutil.AssertEqual(t, "subscribers", h.bus.Subscribers(events.StateChanged), 0)
}
