package player

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/pixil98/go-errors"
)

// MaxLevel is the highest level reachable through experience.
const MaxLevel = 10

// levelTable holds the cumulative experience required to reach each level.
// Index 0 = level 1.
var levelTable = [MaxLevel]int{
	0,    // Level 1
	100,  // Level 2
	250,  // Level 3
	450,  // Level 4
	700,  // Level 5
	1000, // Level 6
	1400, // Level 7
	1900, // Level 8
	2500, // Level 9
	3200, // Level 10
}

// Progression tracks how far the player has advanced.
type Progression struct {
	Level            int      `json:"level"`
	Experience       int      `json:"experience"`
	Currency         int      `json:"currency"`
	CurrentUnitId    string   `json:"current_unit_id"`
	CompletedUnitIds []string `json:"completed_unit_ids"`
}

// ExpForLevel returns the cumulative experience required to reach the given level.
func ExpForLevel(level int) int {
	if level < 1 {
		return 0
	}
	if level > MaxLevel {
		return levelTable[MaxLevel-1]
	}
	return levelTable[level-1]
}

// LevelForExp returns the level reached with the given cumulative experience.
func LevelForExp(exp int) int {
	level := 1
	for i, req := range levelTable {
		if exp >= req {
			level = i + 1
		}
	}
	return level
}

// HasCompleted reports whether the unit is in the completed set.
func (p *Progression) HasCompleted(unitId string) bool {
	return slices.Contains(p.CompletedUnitIds, unitId)
}

// AddExperience grants experience and returns true if the player levelled up.
func (a *Aggregate) AddExperience(amount int) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("%w: experience %d", ErrNegativeAmount, amount)
	}

	before := a.Progression.Level
	a.Progression.Experience += amount
	a.Progression.Level = max(before, LevelForExp(a.Progression.Experience))

	slog.Info("experience added",
		"player", a.Profile.PlayerId,
		"amount", amount,
		"experience", a.Progression.Experience,
		"level", a.Progression.Level)

	return a.Progression.Level > before, nil
}

// AddCurrency credits the player's wallet.
func (a *Aggregate) AddCurrency(amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: currency %d", ErrNegativeAmount, amount)
	}

	a.Progression.Currency += amount
	slog.Info("currency added", "player", a.Profile.PlayerId, "amount", amount, "balance", a.Progression.Currency)
	return nil
}

// SpendCurrency debits the player's wallet. The balance never drops below zero.
func (a *Aggregate) SpendCurrency(amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: currency %d", ErrNegativeAmount, amount)
	}
	if amount > a.Progression.Currency {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientCurrency, amount, a.Progression.Currency)
	}

	a.Progression.Currency -= amount
	slog.Info("currency spent", "player", a.Profile.PlayerId, "amount", amount, "balance", a.Progression.Currency)
	return nil
}

// SetCurrentUnit records the unit the player is currently in.
func (a *Aggregate) SetCurrentUnit(unitId string) {
	a.Progression.CurrentUnitId = unitId
}

func (p *Progression) validate() error {
	el := errors.NewErrorList()

	if p.Level < 1 {
		el.Add(fmt.Errorf("level must be at least 1"))
	}
	if p.Experience < 0 {
		el.Add(fmt.Errorf("experience must not be negative"))
	}
	if p.Currency < 0 {
		el.Add(fmt.Errorf("currency must not be negative"))
	}
	if id, ok := duplicateOf(p.CompletedUnitIds); ok {
		el.Add(fmt.Errorf("completed unit %q listed more than once", id))
	}

	return el.Err()
}
