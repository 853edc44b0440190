package coordinator

import (
	"context"
	"log/slog"

	"github.com/pixil98/go-hearth/internal/events"
	"github.com/pixil98/go-hearth/internal/player"
)

type subscription struct {
	subject string
	handler func(data []byte)
}

func (c *Coordinator) subscriptions() []subscription {
	return []subscription{
		{events.StateChanged, c.handleStateChanged},
		{events.UnitCompleted, c.handleUnitCompleted},
		{events.PointOfInterestVisits, c.handlePointOfInterestVisit},
		{events.CloudSaveComplete, c.handleCloudSaveComplete},
		{events.CloudSaveFailed, c.handleCloudSaveFailed},
		{events.LanguageChanged, c.handleLanguageChanged},
	}
}

// subscribe registers every session handler on the bus and returns the
// functions that remove them. Subjects that fail to subscribe are skipped.
func (c *Coordinator) subscribe(ctx context.Context) []func() {
	if c.bus == nil {
		slog.ErrorContext(ctx, "no event bus configured, session events disabled")
		return nil
	}

	var unsubs []func()
	for _, s := range c.subscriptions() {
		unsub, err := c.bus.Subscribe(s.subject, s.handler)
		if err != nil {
			slog.ErrorContext(ctx, "subscribing to session event", "subject", s.subject, "error", err)
			continue
		}
		unsubs = append(unsubs, unsub)
	}

	slog.DebugContext(ctx, "subscribed to session events", "count", len(unsubs))
	return unsubs
}

func decode[T any](ctx context.Context, subject string, data []byte) (T, bool) {
	v, err := events.Decode[T](data)
	if err != nil {
		slog.WarnContext(ctx, "ignoring malformed event", "subject", subject, "error", err)
		return v, false
	}
	return v, true
}

func (c *Coordinator) handleStateChanged(data []byte) {
	ctx := c.handlerCtx
	ev, ok := decode[events.StateChange](ctx, events.StateChanged, data)
	if !ok {
		return
	}

	slog.DebugContext(ctx, "game state changed", "from", ev.From, "to", ev.To)

	switch ev.To {
	case events.StatePaused:
		if err := c.Pause(ctx); err != nil {
			slog.ErrorContext(ctx, "saving on pause", "error", err)
		}
	case events.StatePlaying:
		c.Resume(ctx)
	}
}

func (c *Coordinator) handleUnitCompleted(data []byte) {
	ctx := c.handlerCtx
	ev, ok := decode[events.UnitCompletion](ctx, events.UnitCompleted, data)
	if !ok {
		return
	}
	if ev.UnitId == "" {
		slog.WarnContext(ctx, "ignoring unit completion without a unit id")
		return
	}

	if _, err := c.CompleteUnit(ctx, ev.UnitId, ev.Elapsed, ev.Stars); err != nil {
		slog.ErrorContext(ctx, "saving unit completion", "unit", ev.UnitId, "error", err)
	}
}

func (c *Coordinator) handlePointOfInterestVisit(data []byte) {
	ctx := c.handlerCtx
	ev, ok := decode[events.PointOfInterestVisit](ctx, events.PointOfInterestVisits, data)
	if !ok {
		return
	}

	err := c.Update(func(a *player.Aggregate) error {
		a.VisitPointOfInterest(ev.Count)
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "recording point of interest visit", "error", err)
	}
}

func (c *Coordinator) handleCloudSaveComplete(data []byte) {
	ctx := c.handlerCtx
	ev, ok := decode[events.CloudSave](ctx, events.CloudSaveComplete, data)
	if !ok {
		return
	}

	at := ev.At
	if at.IsZero() {
		at = c.now()
	}

	err := c.Update(func(a *player.Aggregate) error {
		if ev.PlayerId != "" && ev.PlayerId != a.Profile.PlayerId {
			return nil
		}
		a.RecordCloudSync(at)
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "recording cloud sync", "error", err)
	}
}

func (c *Coordinator) handleCloudSaveFailed(data []byte) {
	ctx := c.handlerCtx
	ev, ok := decode[events.CloudSave](ctx, events.CloudSaveFailed, data)
	if !ok {
		return
	}
	slog.WarnContext(ctx, "cloud save failed", "slot", ev.Slot, "error", ev.Error)
}

func (c *Coordinator) handleLanguageChanged(data []byte) {
	ctx := c.handlerCtx
	ev, ok := decode[events.LanguageChange](ctx, events.LanguageChanged, data)
	if !ok {
		return
	}

	err := c.Update(func(a *player.Aggregate) error {
		if a.Settings.Language == ev.Language {
			return nil
		}
		return a.Settings.SetLanguage(ev.Language)
	})
	if err != nil {
		slog.WarnContext(ctx, "recording language change", "language", ev.Language, "error", err)
	}
}
