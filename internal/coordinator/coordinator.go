package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/go-hearth/internal/events"
	"github.com/pixil98/go-hearth/internal/player"
	"github.com/pixil98/go-hearth/internal/storage"
)

const (
	// AutoSlot is the conventional default slot. With auto-load enabled the
	// default slot is resumed at startup.
	AutoSlot    = "auto"
	DefaultSlot = AutoSlot

	DefaultAutoSaveInterval = 5 * time.Minute
	DefaultShutdownTimeout  = 10 * time.Second

	SessionNumberKey = "session_number"
)

var (
	ErrNotInitialized = errors.New("session not initialized")
	ErrSlotNotFound   = errors.New("slot not found")
)

// Gate is closed once every initialization step has finished.
type Gate interface {
	Done() <-chan struct{}
}

// SettingsApplier pushes player settings into the running subsystems.
type SettingsApplier interface {
	SetMusicVolume(v float64)
	SetSfxVolume(v float64)
	SetLanguage(code string) error
}

type SessionInfo struct {
	Number    int
	StartedAt time.Time
}

// Coordinator owns the in-memory player aggregate for the lifetime of the
// process. Every read and write of the aggregate happens under mu.
type Coordinator struct {
	gate     Gate
	store    storage.SlotStore
	ring     *storage.AutoSaveRing
	prefs    storage.Preferences
	bus      events.Bus
	settings SettingsApplier

	defaultSlot      string
	autoLoad         bool
	autoSaveInterval time.Duration
	shutdownTimeout  time.Duration
	now              func() time.Time

	handlerCtx context.Context

	mu           sync.Mutex
	agg          *player.Aggregate
	session      SessionInfo
	started      bool
	initialized  bool
	paused       bool
	closed       bool
	lastTick     time.Time
	lastAutoSave time.Time
	unsubs       []func()
	onInit       []func(SessionInfo)
	ready        chan struct{}
}

func NewCoordinator(gate Gate, store storage.SlotStore, ring *storage.AutoSaveRing, prefs storage.Preferences, bus events.Bus, settings SettingsApplier, opts ...CoordinatorOpt) *Coordinator {
	c := &Coordinator{
		gate:             gate,
		store:            store,
		ring:             ring,
		prefs:            prefs,
		bus:              bus,
		settings:         settings,
		defaultSlot:      DefaultSlot,
		autoLoad:         true,
		autoSaveInterval: DefaultAutoSaveInterval,
		shutdownTimeout:  DefaultShutdownTimeout,
		now:              time.Now,
		handlerCtx:       context.Background(),
		ready:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start initializes the session, waits for ctx to end, then shuts the session
// down with a fresh bounded context.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.shutdownTimeout)
	defer cancel()

	if err := c.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down session: %w", err)
	}
	return nil
}

// Initialize waits for the gate, loads or creates the aggregate, applies its
// settings, subscribes to session events and starts the session. Calling it
// again is a logged no-op.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		slog.WarnContext(ctx, "session already initialized")
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if c.gate != nil {
		select {
		case <-c.gate.Done():
		case <-ctx.Done():
			c.mu.Lock()
			c.started = false
			c.mu.Unlock()
			return fmt.Errorf("waiting for initialization: %w", ctx.Err())
		}
	}

	c.handlerCtx = context.WithoutCancel(ctx)

	agg, found := c.loadOrCreate(ctx)
	c.applySettings(ctx, agg.Settings)
	number := c.nextSessionNumber(ctx)
	now := c.now()

	playerId := agg.Profile.PlayerId
	resume := events.SessionResume{Slot: c.defaultSlot, CurrentUnitId: agg.Progression.CurrentUnitId}

	c.mu.Lock()
	c.agg = agg
	c.session = SessionInfo{Number: number, StartedAt: now}
	c.lastTick = now
	c.lastAutoSave = now
	c.mu.Unlock()

	// Handlers may fire as soon as they are registered, so the aggregate must
	// already be in place.
	unsubs := c.subscribe(ctx)

	c.mu.Lock()
	c.unsubs = unsubs
	c.initialized = true
	info := c.session
	callbacks := c.onInit
	c.onInit = nil
	close(c.ready)
	c.mu.Unlock()

	if found && c.autoLoad {
		c.publish(ctx, events.SessionResumed, resume)
		slog.InfoContext(ctx, "resumed saved game", "slot", resume.Slot, "unit", resume.CurrentUnitId)
	}

	slog.InfoContext(ctx, "session started",
		"session", info.Number,
		"slot", c.defaultSlot,
		"player", playerId)

	for _, fn := range callbacks {
		fn(info)
	}

	return nil
}

// loadOrCreate reads the default slot once. found is false when a new player
// was created instead.
func (c *Coordinator) loadOrCreate(ctx context.Context) (*player.Aggregate, bool) {
	if agg := c.store.Load(ctx, c.defaultSlot); agg != nil {
		slog.InfoContext(ctx, "loaded saved game", "slot", c.defaultSlot, "level", agg.Progression.Level)
		return agg, true
	}

	// Nothing is written until the first save point.
	agg := player.NewAggregate(c.now())
	slog.InfoContext(ctx, "no saved game found, creating new player", "slot", c.defaultSlot, "player", agg.Profile.PlayerId)
	return agg, false
}

// applySettings must not be called with mu held; appliers may publish events
// that are handled synchronously.
func (c *Coordinator) applySettings(ctx context.Context, s player.Settings) {
	if c.settings == nil {
		slog.ErrorContext(ctx, "no settings applier configured, settings not applied")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "applying settings panicked", "panic", r)
		}
	}()

	c.settings.SetMusicVolume(s.MusicVolume)
	c.settings.SetSfxVolume(s.SfxVolume)
	if err := c.settings.SetLanguage(s.Language); err != nil {
		slog.WarnContext(ctx, "applying language", "language", s.Language, "error", err)
	}
}

// nextSessionNumber reads, increments and stores the session counter so a
// crashed session still consumes its number.
func (c *Coordinator) nextSessionNumber(ctx context.Context) int {
	if c.prefs == nil {
		slog.ErrorContext(ctx, "no preferences configured, session numbers will not persist")
		return 1
	}

	var n int
	if _, err := c.prefs.Get(SessionNumberKey, &n); err != nil {
		slog.WarnContext(ctx, "reading session number", "error", err)
		n = 0
	}
	n++

	if err := c.prefs.Set(SessionNumberKey, n); err != nil {
		slog.WarnContext(ctx, "persisting session number", "session", n, "error", err)
	}
	return n
}

// Tick accumulates play time since the previous tick and runs the auto-save
// when it is due.
func (c *Coordinator) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized || c.closed {
		return nil
	}

	now := c.now()
	if c.paused {
		c.lastTick = now
		return nil
	}

	c.accumulateLocked(now)

	if c.agg.Settings.AutoSaveEnabled && c.autoSaveInterval > 0 && now.Sub(c.lastAutoSave) >= c.autoSaveInterval {
		return c.autoSaveLocked(ctx, now)
	}
	return nil
}

// AutoSave rotates the auto-save ring and writes the default slot.
func (c *Coordinator) AutoSave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agg == nil {
		return ErrNotInitialized
	}

	now := c.now()
	if !c.paused {
		c.accumulateLocked(now)
	}
	return c.autoSaveLocked(ctx, now)
}

func (c *Coordinator) autoSaveLocked(ctx context.Context, now time.Time) error {
	c.lastAutoSave = now
	c.agg.Touch(now)

	var ringErr error
	if c.ring != nil {
		if err := c.ring.Save(ctx, c.agg); err != nil {
			ringErr = fmt.Errorf("rotating auto-saves: %w", err)
		}
	}

	if err := errors.Join(ringErr, c.saveLocked(ctx)); err != nil {
		return err
	}
	slog.DebugContext(ctx, "auto-saved", "slot", c.defaultSlot, "play_time", c.agg.Statistics.TotalPlayTime)
	return nil
}

// SaveNow writes the aggregate to the default slot.
func (c *Coordinator) SaveNow(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agg == nil {
		return ErrNotInitialized
	}
	if !c.paused {
		c.accumulateLocked(c.now())
	}
	return c.saveLocked(ctx)
}

func (c *Coordinator) saveLocked(ctx context.Context) error {
	c.agg.Touch(c.now())
	if err := c.store.Save(ctx, c.defaultSlot, c.agg); err != nil {
		return fmt.Errorf("saving slot %q: %w", c.defaultSlot, err)
	}
	return nil
}

func (c *Coordinator) accumulateLocked(now time.Time) {
	if !c.lastTick.IsZero() {
		c.agg.AddPlayTime(now.Sub(c.lastTick).Seconds())
	}
	c.lastTick = now
}

// LoadSlot replaces the in-memory aggregate with the snapshot in slot and
// resumes play from it.
func (c *Coordinator) LoadSlot(ctx context.Context, slot string) error {
	if err := storage.ValidateSlot(slot); err != nil {
		return err
	}

	agg := c.store.Load(ctx, slot)
	if agg == nil {
		return fmt.Errorf("%w: %q", ErrSlotNotFound, slot)
	}

	c.mu.Lock()
	c.agg = agg
	c.lastTick = c.now()
	c.paused = false
	settings := agg.Settings
	resume := events.SessionResume{Slot: slot, CurrentUnitId: agg.Progression.CurrentUnitId}
	c.mu.Unlock()

	c.applySettings(ctx, settings)
	c.publish(ctx, events.SessionResumed, resume)

	slog.InfoContext(ctx, "resumed saved game", "slot", slot, "unit", resume.CurrentUnitId)
	return nil
}

// NewGame discards the in-memory aggregate and starts over with a new player.
func (c *Coordinator) NewGame(ctx context.Context) error {
	agg := player.NewAggregate(c.now())

	c.mu.Lock()
	c.agg = agg
	c.lastTick = c.now()
	c.paused = false
	err := c.saveLocked(ctx)
	c.mu.Unlock()

	c.applySettings(ctx, agg.Settings)

	slog.InfoContext(ctx, "started new game", "player", agg.Profile.PlayerId)
	return err
}

// Pause saves synchronously and stops play time from accumulating.
func (c *Coordinator) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agg == nil {
		return ErrNotInitialized
	}
	if c.paused {
		return nil
	}

	c.accumulateLocked(c.now())
	c.paused = true

	slog.InfoContext(ctx, "session paused", "play_time", c.agg.Statistics.TotalPlayTime)
	return c.saveLocked(ctx)
}

func (c *Coordinator) Resume(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return
	}
	c.paused = false
	c.lastTick = c.now()

	slog.InfoContext(ctx, "session resumed")
}

func (c *Coordinator) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Shutdown saves synchronously, removes every event subscription and persists
// the session number for the next run. Later calls do nothing.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.initialized || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	if !c.paused {
		c.accumulateLocked(c.now())
	}
	saveErr := c.saveLocked(ctx)

	unsubs := c.unsubs
	c.unsubs = nil
	number := c.session.Number
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	var prefsErr error
	if c.prefs != nil {
		if err := c.prefs.Set(SessionNumberKey, number); err != nil {
			prefsErr = fmt.Errorf("persisting session number: %w", err)
		}
	}

	slog.InfoContext(ctx, "session ended", "session", number)
	return errors.Join(saveErr, prefsErr)
}

// Snapshot returns a deep copy of the aggregate, or nil before initialization.
func (c *Coordinator) Snapshot() *player.Aggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agg.Clone()
}

// Update applies fn to a copy of the aggregate and keeps the result only if fn
// succeeds and the aggregate is still valid.
func (c *Coordinator) Update(fn func(*player.Aggregate) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agg == nil {
		return ErrNotInitialized
	}

	next := c.agg.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("rejecting update: %w", err)
	}

	c.agg = next
	return nil
}

// CompleteUnit records a unit completion and saves immediately. Completing a
// unit twice returns false and does not save.
func (c *Coordinator) CompleteUnit(ctx context.Context, unitId string, completionTime float64, stars int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agg == nil {
		return false, ErrNotInitialized
	}
	if !c.agg.CompleteUnit(unitId, completionTime, stars, c.now()) {
		return false, nil
	}

	slog.InfoContext(ctx, "unit completed", "unit", unitId, "stars", stars)
	return true, c.saveLocked(ctx)
}

func (c *Coordinator) Session() SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Coordinator) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Ready is closed once Initialize has finished.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// OnInitialized registers fn to run once the session starts. If it already has,
// fn runs immediately.
func (c *Coordinator) OnInitialized(fn func(SessionInfo)) {
	c.mu.Lock()
	if !c.initialized {
		c.onInit = append(c.onInit, fn)
		c.mu.Unlock()
		return
	}
	info := c.session
	c.mu.Unlock()

	fn(info)
}

func (c *Coordinator) publish(ctx context.Context, subject string, v any) {
	if c.bus == nil {
		return
	}
	if err := events.Emit(c.bus, subject, v); err != nil {
		slog.WarnContext(ctx, "publishing event", "subject", subject, "error", err)
	}
}

func (c *Coordinator) Name() string {
	return "coordinator"
}
