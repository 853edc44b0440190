package driver

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultTickLength = time.Second
)

// Handler is called once per tick.
type Handler interface {
	Tick(context.Context) error
}

// Driver calls every handler in order on a fixed tick, all on one goroutine.
type Driver struct {
	tickLength time.Duration
	handlers   []Handler
}

func NewDriver(handlers []Handler, opts ...DriverOpt) *Driver {
	d := &Driver{
		tickLength: DefaultTickLength,
		handlers:   handlers,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Driver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one round. A failing handler is logged and the round continues.
func (d *Driver) Tick(ctx context.Context) {
	for _, h := range d.handlers {
		if err := h.Tick(ctx); err != nil {
			slog.ErrorContext(ctx, "tick handler failed", "handler", handlerName(h), "error", err)
		}
	}
}

func handlerName(h Handler) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unnamed"
}
