package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/pixil98/go-hearth/internal/player"
)

var slotPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var (
	ErrInvalidSlot = errors.New("invalid slot name")
	ErrWrite       = errors.New("writing snapshot")
	ErrDecode      = errors.New("decoding snapshot")
)

// SlotStore is durable slot to snapshot storage. Load and Summary normalise
// both missing and unreadable slots to nil.
type SlotStore interface {
	Save(ctx context.Context, slot string, agg *player.Aggregate) error
	Load(ctx context.Context, slot string) *player.Aggregate
	Delete(ctx context.Context, slot string) error
	ListSlots(ctx context.Context) ([]string, error)
	Summary(ctx context.Context, slot string) *SlotSummary
	Ping(ctx context.Context) error
}

// SlotSummary is derived from a stored snapshot when read; it is never stored.
type SlotSummary struct {
	SlotName      string    `json:"slot_name"`
	PlayerLevel   int       `json:"player_level"`
	CurrentUnitId string    `json:"current_unit_id"`
	LastPlayedAt  time.Time `json:"last_played_at"`
	TotalPlayTime float64   `json:"total_play_time"`
}

// ValidateSlot rejects names that could escape the storage root or are otherwise
// unusable as a storage key.
func ValidateSlot(slot string) error {
	if !slotPattern.MatchString(slot) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return nil
}

func summarize(slot string, agg *player.Aggregate) *SlotSummary {
	if agg == nil {
		return nil
	}
	return &SlotSummary{
		SlotName:      slot,
		PlayerLevel:   agg.Progression.Level,
		CurrentUnitId: agg.Progression.CurrentUnitId,
		LastPlayedAt:  agg.Profile.LastPlayedAt,
		TotalPlayTime: agg.Statistics.TotalPlayTime,
	}
}
