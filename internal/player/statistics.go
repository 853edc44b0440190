package player

import (
	"fmt"
	"math"
	"time"

	"github.com/pixil98/go-errors"
)

const MaxStars = 3

// Statistics accumulate over the lifetime of the aggregate.
type Statistics struct {
	// TotalPlayTime is in seconds and never decreases within a session.
	TotalPlayTime           float64         `json:"total_play_time"`
	CompletedUnits          []CompletedUnit `json:"completed_units"`
	UnlockedAchievements    []Achievement   `json:"unlocked_achievements"`
	PointsOfInterestVisited int             `json:"points_of_interest_visited"`
	LastCloudSyncAt         *time.Time      `json:"last_cloud_sync_at,omitempty"`
}

type CompletedUnit struct {
	UnitId         string    `json:"unit_id"`
	CompletionTime float64   `json:"completion_time"`
	StarsEarned    int       `json:"stars_earned"`
	CompletedAt    time.Time `json:"completed_at"`
}

type Achievement struct {
	AchievementId string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// AddPlayTime accumulates elapsed seconds. Negative or non-finite deltas are ignored.
func (a *Aggregate) AddPlayTime(seconds float64) {
	if seconds <= 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return
	}
	a.Statistics.TotalPlayTime += seconds
}

// UnlockAchievement records an achievement once. Returns false if it was
// already unlocked.
func (a *Aggregate) UnlockAchievement(achievementId string, now time.Time) bool {
	if achievementId == "" {
		return false
	}
	for _, ach := range a.Statistics.UnlockedAchievements {
		if ach.AchievementId == achievementId {
			return false
		}
	}
	a.Statistics.UnlockedAchievements = append(a.Statistics.UnlockedAchievements, Achievement{
		AchievementId: achievementId,
		UnlockedAt:    now,
	})
	return true
}

// VisitPointOfInterest raises the visited count. The count only moves forward.
func (a *Aggregate) VisitPointOfInterest(count int) {
	if count > a.Statistics.PointsOfInterestVisited {
		a.Statistics.PointsOfInterestVisited = count
	}
}

// RecordCloudSync stores the time of the last successful remote replication.
func (a *Aggregate) RecordCloudSync(at time.Time) {
	a.Statistics.LastCloudSyncAt = &at
}

// CompletedUnit returns the completion record for a unit, or nil.
func (s *Statistics) CompletedUnit(unitId string) *CompletedUnit {
	for i := range s.CompletedUnits {
		if s.CompletedUnits[i].UnitId == unitId {
			return &s.CompletedUnits[i]
		}
	}
	return nil
}

func (s *Statistics) hasCompleted(unitId string) bool {
	return s.CompletedUnit(unitId) != nil
}

func (s *Statistics) validate() error {
	el := errors.NewErrorList()

	if s.TotalPlayTime < 0 || math.IsNaN(s.TotalPlayTime) || math.IsInf(s.TotalPlayTime, 0) {
		el.Add(fmt.Errorf("total_play_time must be a non-negative number"))
	}

	ids := make([]string, 0, len(s.CompletedUnits))
	for _, cu := range s.CompletedUnits {
		if cu.StarsEarned < 0 || cu.StarsEarned > MaxStars {
			el.Add(fmt.Errorf("unit %q: stars_earned must be between 0 and %d", cu.UnitId, MaxStars))
		}
		ids = append(ids, cu.UnitId)
	}
	if id, ok := duplicateOf(ids); ok {
		el.Add(fmt.Errorf("completed unit %q recorded more than once", id))
	}

	return el.Err()
}

func clampStars(stars int) int {
	return min(max(stars, 0), MaxStars)
}
