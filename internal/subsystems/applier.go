package subsystems

import (
	"log/slog"
)

// Applier routes player settings to the mixer and localizer. Either may be nil,
// in which case its settings are skipped.
type Applier struct {
	Mixer     *Mixer
	Localizer *Localizer
}

func (a *Applier) SetMusicVolume(v float64) {
	if a.Mixer == nil {
		slog.Debug("no mixer, skipping music volume")
		return
	}
	a.Mixer.SetMusicVolume(v)
}

func (a *Applier) SetSfxVolume(v float64) {
	if a.Mixer == nil {
		slog.Debug("no mixer, skipping sfx volume")
		return
	}
	a.Mixer.SetSfxVolume(v)
}

func (a *Applier) SetLanguage(code string) error {
	if a.Localizer == nil {
		slog.Debug("no localizer, skipping language")
		return nil
	}
	return a.Localizer.SetLanguage(code)
}
