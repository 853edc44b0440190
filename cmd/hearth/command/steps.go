package command

import (
	"context"
	"time"

	"github.com/pixil98/go-hearth/internal/coordinator"
	"github.com/pixil98/go-hearth/internal/sequencer"
	"github.com/pixil98/go-hearth/internal/storage"
)

const (
	StepStorage      = "storage"
	StepPreferences  = "preferences"
	StepMessaging    = "messaging"
	StepAudio        = "audio"
	StepLocalization = "localization"
	StepCloud        = "cloud"
)

type stepDefault struct {
	required bool
	timeout  time.Duration
}

// stepDefaults lists every startup step in the order it runs. Persistence comes
// first because the session cannot load without it; cloud is last and optional.
var stepDefaults = map[string]stepDefault{
	StepStorage:      {required: true, timeout: 10 * time.Second},
	StepPreferences:  {required: true, timeout: 5 * time.Second},
	StepMessaging:    {required: true, timeout: 10 * time.Second},
	StepAudio:        {required: false, timeout: 5 * time.Second},
	StepLocalization: {required: false, timeout: 5 * time.Second},
	StepCloud:        {required: false, timeout: 15 * time.Second},
}

var stepOrder = []string{
	StepStorage,
	StepPreferences,
	StepMessaging,
	StepAudio,
	StepLocalization,
	StepCloud,
}

// BuildSteps assembles the ordered startup steps. A nil probe drops its step.
func (c *SequencerConfig) BuildSteps(probes map[string]sequencer.Probe) []sequencer.Step {
	var steps []sequencer.Step
	for _, name := range stepOrder {
		probe, ok := probes[name]
		if !ok || probe == nil {
			continue
		}
		steps = append(steps, sequencer.Step{
			Name:     name,
			Required: stepDefaults[name].required,
			Timeout:  c.stepTimeout(name),
			Probe:    probe,
		})
	}
	return steps
}

func storageProbe(store storage.SlotStore) sequencer.Probe {
	return func(ctx context.Context) (bool, error) {
		if err := store.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
}

func preferencesProbe(prefs storage.Preferences) sequencer.Probe {
	return func(ctx context.Context) (bool, error) {
		var n int
		if _, err := prefs.Get(coordinator.SessionNumberKey, &n); err != nil {
			return false, err
		}
		return true, nil
	}
}
