package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"golang.org/x/text/language"

	"github.com/pixil98/go-hearth/internal/events"
	"github.com/pixil98/go-hearth/internal/subsystems"
)

type SettingsConfig struct {
	SupportedLanguages []string `json:"supported_languages" env:"SUPPORTED_LANGUAGES" envSeparator:","`
}

func (c *SettingsConfig) validate() error {
	el := errors.NewErrorList()

	for _, code := range c.SupportedLanguages {
		if _, err := language.Parse(code); err != nil {
			el.Add(fmt.Errorf("supported_languages: %q: %w", code, err))
		}
	}

	return el.Err()
}

func (c *SettingsConfig) BuildLocalizer(bus events.Bus) (*subsystems.Localizer, error) {
	return subsystems.NewLocalizer(c.SupportedLanguages, bus)
}
