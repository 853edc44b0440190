// Package events defines the subjects and payloads exchanged between the
// coordinator and the external subsystems.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	StateChanged          = "game.state.changed"
	UnitCompleted         = "game.unit.completed"
	PointOfInterestVisits = "game.poi.visited"
	SessionResumed        = "game.session.resumed"
	CloudSaveComplete     = "cloud.save.complete"
	CloudSaveFailed       = "cloud.save.failed"
	LanguageChanged       = "settings.language.changed"
)

// Bus delivers raw payloads by subject. Subscribe returns a function that removes
// the subscription.
type Bus interface {
	Subscribe(subject string, handler func(data []byte)) (func(), error)
	Publish(subject string, data []byte) error
}

// Game states carried by StateChange that the coordinator acts on.
const (
	StatePlaying = "playing"
	StatePaused  = "paused"
)

type StateChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type UnitCompletion struct {
	UnitId  string  `json:"unit_id"`
	Stars   int     `json:"stars"`
	Elapsed float64 `json:"elapsed"`
}

type PointOfInterestVisit struct {
	Count int `json:"count"`
}

type SessionResume struct {
	Slot          string `json:"slot"`
	CurrentUnitId string `json:"current_unit_id"`
}

type CloudSave struct {
	Slot     string    `json:"slot"`
	PlayerId string    `json:"player_id"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}

type LanguageChange struct {
	Language string `json:"language"`
}

// Emit marshals v and publishes it on subject.
func Emit(bus Bus, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", subject, err)
	}
	if err := bus.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s event: %w", subject, err)
	}
	return nil
}

// Decode unmarshals a payload into a T.
func Decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decoding %T: %w", v, err)
	}
	return v, nil
}
