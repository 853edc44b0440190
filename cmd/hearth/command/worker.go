package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pixil98/go-service"

	"github.com/pixil98/go-hearth/internal/coordinator"
	"github.com/pixil98/go-hearth/internal/driver"
	"github.com/pixil98/go-hearth/internal/events"
	"github.com/pixil98/go-hearth/internal/sequencer"
	"github.com/pixil98/go-hearth/internal/storage"
	"github.com/pixil98/go-hearth/internal/subsystems"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	cfg.configureLogging()

	sys, err := cfg.build()
	if err != nil {
		return nil, err
	}
	return sys.workers, nil
}

// system is everything build wired together. Only the workers reach the
// service; the rest is kept for inspection.
type system struct {
	workers     service.WorkerList
	steps       []sequencer.Step
	bus         events.Bus
	store       storage.SlotStore
	closer      io.Closer
	coordinator *coordinator.Coordinator
}

func (c *Config) build() (sys *system, err error) {
	sys = &system{workers: service.WorkerList{}}
	probes := map[string]sequencer.Probe{}

	// Persistence
	local, closer, err := c.Storage.BuildSlotStore()
	if err != nil {
		return nil, err
	}
	sys.closer = closer
	defer func() {
		if err != nil && closer != nil {
			_ = closer.Close()
		}
	}()

	prefs, err := c.Storage.BuildPreferences()
	if err != nil {
		return nil, fmt.Errorf("opening preferences: %w", err)
	}
	labeler, err := c.Storage.BuildLabeler()
	if err != nil {
		return nil, err
	}
	ring := c.Storage.BuildAutoSaveRing(local)
	probes[StepStorage] = storageProbe(local)
	probes[StepPreferences] = preferencesProbe(prefs)

	// Messaging
	sys.store = local
	if c.Nats.Disabled {
		sys.bus = events.NewLocalBus()
	} else {
		natsServer, err := c.Nats.buildNatsServer()
		if err != nil {
			return nil, fmt.Errorf("creating nats server: %w", err)
		}
		sys.workers["nats"] = natsServer
		probes[StepMessaging] = natsServer.Probe
		sys.bus = natsServer

		if c.Replication.Enabled {
			replicator := c.Replication.BuildReplicator(natsServer)
			sys.workers["replicator"] = replicator
			probes[StepCloud] = replicator.Probe
			sys.store = storage.NewReplicatingStore(local, replicator)
		}
		if c.Replication.Mirror.Enabled {
			sys.workers["mirror"] = c.Replication.BuildMirror(natsServer)
		}
	}

	// Subsystems
	mixer := subsystems.NewMixer()
	localizer, err := c.Settings.BuildLocalizer(sys.bus)
	if err != nil {
		return nil, fmt.Errorf("creating localizer: %w", err)
	}
	sys.workers["mixer"] = mixer
	probes[StepAudio] = mixer.Probe
	probes[StepLocalization] = localizer.Probe

	// Startup sequence and session
	sys.steps = c.Sequencer.BuildSteps(probes)
	seq := c.Sequencer.BuildSequencer(sys.steps)

	sys.coordinator = coordinator.NewCoordinator(seq, sys.store, ring, prefs, sys.bus,
		&subsystems.Applier{Mixer: mixer, Localizer: localizer},
		c.Session.coordinatorOpts()...)
	sys.coordinator.OnInitialized(func(info coordinator.SessionInfo) {
		logSlots(context.Background(), local, labeler)
	})

	tick, err := c.tickInterval()
	if err != nil {
		return nil, err
	}

	sys.workers["sequencer"] = seq
	sys.workers["session"] = &sessionWorker{coordinator: sys.coordinator, closer: closer}
	sys.workers["driver"] = driver.NewDriver([]driver.Handler{sys.coordinator}, driver.WithTickLength(tick))
	sys.workers["signals"] = NewSignalListener(sys.coordinator)

	return sys, nil
}

// sessionWorker runs the coordinator and closes the slot store only after the
// final shutdown save.
type sessionWorker struct {
	coordinator *coordinator.Coordinator
	closer      io.Closer
}

func (w *sessionWorker) Start(ctx context.Context) error {
	err := w.coordinator.Start(ctx)
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil {
			slog.WarnContext(ctx, "closing slot store", "error", cerr)
		}
	}
	return err
}

func logSlots(ctx context.Context, store storage.SlotStore, labeler *storage.Labeler) {
	slots, err := store.ListSlots(ctx)
	if err != nil {
		slog.WarnContext(ctx, "listing save slots", "error", err)
		return
	}

	for _, slot := range slots {
		summary := store.Summary(ctx, slot)
		if summary == nil {
			continue
		}
		label, err := labeler.Label(summary)
		if err != nil {
			slog.WarnContext(ctx, "labelling save slot", "slot", slot, "error", err)
			continue
		}
		slog.InfoContext(ctx, "save slot", "slot", slot, "label", label)
	}
}
