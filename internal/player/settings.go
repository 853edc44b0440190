package player

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"golang.org/x/text/language"
)

const (
	GraphicsLow    = "low"
	GraphicsMedium = "medium"
	GraphicsHigh   = "high"
)

// Settings are the player's preferences applied to external subsystems on load.
type Settings struct {
	Language        string  `json:"language"`
	MusicVolume     float64 `json:"music_volume"`
	SfxVolume       float64 `json:"sfx_volume"`
	VoiceVolume     float64 `json:"voice_volume"`
	ShowSubtitles   bool    `json:"show_subtitles"`
	AutoSaveEnabled bool    `json:"auto_save_enabled"`
	GraphicsQuality string  `json:"graphics_quality"`
}

func DefaultSettings() Settings {
	return Settings{
		Language:        language.English.String(),
		MusicVolume:     0.8,
		SfxVolume:       1.0,
		VoiceVolume:     1.0,
		ShowSubtitles:   true,
		AutoSaveEnabled: true,
		GraphicsQuality: GraphicsMedium,
	}
}

// SetLanguage validates and stores a BCP 47 language tag in canonical form.
func (s *Settings) SetLanguage(code string) error {
	tag, err := language.Parse(code)
	if err != nil {
		return fmt.Errorf("parsing language %q: %w", code, err)
	}
	s.Language = tag.String()
	return nil
}

// Validate checks the volume ranges. Language and graphics quality are free form.
func (s *Settings) Validate() error {
	el := errors.NewErrorList()

	el.Add(validateVolume("music_volume", s.MusicVolume))
	el.Add(validateVolume("sfx_volume", s.SfxVolume))
	el.Add(validateVolume("voice_volume", s.VoiceVolume))

	return el.Err()
}

func validateVolume(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1", name)
	}
	return nil
}
