package command

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type pauser interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context)
}

// SignalListener pauses the session on SIGUSR1 and resumes it on SIGUSR2.
// Termination signals are handled by the process context.
type SignalListener struct {
	session pauser
	signals chan os.Signal
}

func NewSignalListener(session pauser) *SignalListener {
	return &SignalListener{session: session, signals: make(chan os.Signal, 1)}
}

func (l *SignalListener) Start(ctx context.Context) error {
	signal.Notify(l.signals, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(l.signals)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-l.signals:
			l.handle(ctx, sig)
		}
	}
}

func (l *SignalListener) handle(ctx context.Context, sig os.Signal) {
	switch sig {
	case syscall.SIGUSR1:
		if err := l.session.Pause(ctx); err != nil {
			slog.ErrorContext(ctx, "pausing session", "error", err)
		}
	case syscall.SIGUSR2:
		l.session.Resume(ctx)
	default:
		slog.DebugContext(ctx, "ignoring signal", "signal", sig)
	}
}
