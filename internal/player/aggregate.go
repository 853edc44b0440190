package player

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-errors"
)

const (
	StartingLevel    = 1
	StartingCurrency = 100
)

// Aggregate is the single persisted root record holding all player-owned state.
// It is always saved and loaded as a whole.
type Aggregate struct {
	Profile     Profile     `json:"profile"`
	Progression Progression `json:"progression"`
	Inventory   Inventory   `json:"inventory"`
	Settings    Settings    `json:"settings"`
	Statistics  Statistics  `json:"statistics"`
}

// Profile identifies the player. PlayerId is assigned once at creation.
type Profile struct {
	PlayerId     string    `json:"player_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastPlayedAt time.Time `json:"last_played_at"`
}

// NewAggregate creates the aggregate for a brand new game.
func NewAggregate(now time.Time) *Aggregate {
	return &Aggregate{
		Profile: Profile{
			PlayerId:     uuid.New().String(),
			CreatedAt:    now,
			LastPlayedAt: now,
		},
		Progression: Progression{
			Level:            StartingLevel,
			Currency:         StartingCurrency,
			CompletedUnitIds: []string{},
		},
		Inventory: Inventory{
			UnlockedCosmeticIds: []string{},
			Items:               []Item{},
		},
		Settings: DefaultSettings(),
		Statistics: Statistics{
			CompletedUnits:       []CompletedUnit{},
			UnlockedAchievements: []Achievement{},
		},
	}
}

// CompleteUnit records the completion of a unit. Completing a unit that is
// already complete is a no-op and returns false.
func (a *Aggregate) CompleteUnit(unitId string, completionTime float64, stars int, now time.Time) bool {
	if unitId == "" {
		return false
	}
	if a.Progression.HasCompleted(unitId) || a.Statistics.hasCompleted(unitId) {
		slog.Debug("unit already completed", "unit", unitId)
		return false
	}

	a.Progression.CompletedUnitIds = append(a.Progression.CompletedUnitIds, unitId)
	a.Statistics.CompletedUnits = append(a.Statistics.CompletedUnits, CompletedUnit{
		UnitId:         unitId,
		CompletionTime: completionTime,
		StarsEarned:    clampStars(stars),
		CompletedAt:    now,
	})
	a.Profile.LastPlayedAt = now

	return true
}

// Touch updates the last played timestamp.
func (a *Aggregate) Touch(now time.Time) {
	a.Profile.LastPlayedAt = now
}

// Clone returns a deep copy of the aggregate.
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}

	c := *a
	c.Progression.CompletedUnitIds = cloneSlice(a.Progression.CompletedUnitIds)
	c.Inventory.UnlockedCosmeticIds = cloneSlice(a.Inventory.UnlockedCosmeticIds)
	c.Inventory.Items = cloneSlice(a.Inventory.Items)
	c.Statistics.CompletedUnits = cloneSlice(a.Statistics.CompletedUnits)
	c.Statistics.UnlockedAchievements = cloneSlice(a.Statistics.UnlockedAchievements)
	if a.Inventory.EquippedCosmeticId != nil {
		id := *a.Inventory.EquippedCosmeticId
		c.Inventory.EquippedCosmeticId = &id
	}
	if a.Statistics.LastCloudSyncAt != nil {
		ts := *a.Statistics.LastCloudSyncAt
		c.Statistics.LastCloudSyncAt = &ts
	}

	return &c
}

// Validate checks the aggregate invariants.
func (a *Aggregate) Validate() error {
	el := errors.NewErrorList()

	if a.Profile.PlayerId == "" {
		el.Add(fmt.Errorf("player_id must be set"))
	} else if _, err := uuid.Parse(a.Profile.PlayerId); err != nil {
		el.Add(fmt.Errorf("player_id: %w", err))
	}

	el.Add(a.Progression.validate())
	el.Add(a.Inventory.validate())
	el.Add(a.Settings.Validate())
	el.Add(a.Statistics.validate())

	return el.Err()
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func duplicateOf(ids []string) (string, bool) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id, true
		}
		seen[id] = true
	}
	return "", false
}
