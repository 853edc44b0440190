package subsystems

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/language"

	"github.com/pixil98/go-hearth/internal/events"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Localizer tracks the active language, restricted to a supported set.
// Changes are announced on the bus.
type Localizer struct {
	supported []language.Tag
	matcher   language.Matcher
	bus       events.Bus

	mu      sync.RWMutex
	current language.Tag
}

// NewLocalizer builds a localizer for the given BCP 47 codes. The first code is
// the initial language. An empty list supports English only.
func NewLocalizer(supported []string, bus events.Bus) (*Localizer, error) {
	if len(supported) == 0 {
		supported = []string{"en"}
	}

	tags := make([]language.Tag, 0, len(supported))
	for _, code := range supported {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("parsing supported language %q: %w", code, err)
		}
		tags = append(tags, tag)
	}

	return &Localizer{
		supported: tags,
		matcher:   language.NewMatcher(tags),
		bus:       bus,
		current:   tags[0],
	}, nil
}

// SetLanguage switches to the closest supported language to code.
func (l *Localizer) SetLanguage(code string) error {
	tag, err := language.Parse(code)
	if err != nil {
		return fmt.Errorf("parsing language %q: %w", code, err)
	}

	_, index, confidence := l.matcher.Match(tag)
	if confidence == language.No {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	matched := l.supported[index]

	l.mu.Lock()
	changed := l.current != matched
	l.current = matched
	l.mu.Unlock()

	if !changed {
		return nil
	}

	slog.Info("language changed", "requested", code, "language", matched.String())
	if l.bus != nil {
		if err := events.Emit(l.bus, events.LanguageChanged, events.LanguageChange{Language: matched.String()}); err != nil {
			slog.Warn("announcing language change", "error", err)
		}
	}
	return nil
}

func (l *Localizer) Language() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.String()
}

// Supported returns the supported language codes in preference order.
func (l *Localizer) Supported() []string {
	codes := make([]string, len(l.supported))
	for i, t := range l.supported {
		codes[i] = t.String()
	}
	return codes
}

func (l *Localizer) Probe(ctx context.Context) (bool, error) {
	return len(l.supported) > 0, nil
}
