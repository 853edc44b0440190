package player

import (
	"fmt"
	"slices"
	"time"

	"github.com/pixil98/go-errors"
)

// Inventory holds the cosmetics and items a player owns.
type Inventory struct {
	UnlockedCosmeticIds []string `json:"unlocked_cosmetic_ids"`
	EquippedCosmeticId  *string  `json:"equipped_cosmetic_id,omitempty"`
	Items               []Item   `json:"items"`
}

// Item is a single acquired item, kept in acquisition order.
type Item struct {
	ItemId     string    `json:"item_id"`
	ItemType   string    `json:"item_type"`
	AcquiredAt time.Time `json:"acquired_at"`
	IsNew      bool      `json:"is_new"`
}

// UnlockCosmetic adds a cosmetic to the unlocked set. Returns false if it was
// already unlocked.
func (a *Aggregate) UnlockCosmetic(cosmeticId string) bool {
	if cosmeticId == "" || slices.Contains(a.Inventory.UnlockedCosmeticIds, cosmeticId) {
		return false
	}
	a.Inventory.UnlockedCosmeticIds = append(a.Inventory.UnlockedCosmeticIds, cosmeticId)
	return true
}

// EquipCosmetic equips an unlocked cosmetic. An empty id unequips.
func (a *Aggregate) EquipCosmetic(cosmeticId string) error {
	if cosmeticId == "" {
		a.Inventory.EquippedCosmeticId = nil
		return nil
	}
	if !slices.Contains(a.Inventory.UnlockedCosmeticIds, cosmeticId) {
		return fmt.Errorf("%w: %s", ErrCosmeticLocked, cosmeticId)
	}
	a.Inventory.EquippedCosmeticId = &cosmeticId
	return nil
}

// AddItem appends a newly acquired item.
func (a *Aggregate) AddItem(itemId, itemType string, now time.Time) {
	a.Inventory.Items = append(a.Inventory.Items, Item{
		ItemId:     itemId,
		ItemType:   itemType,
		AcquiredAt: now,
		IsNew:      true,
	})
}

// MarkItemsSeen clears the new flag on every item.
func (a *Aggregate) MarkItemsSeen() {
	for i := range a.Inventory.Items {
		a.Inventory.Items[i].IsNew = false
	}
}

func (inv *Inventory) validate() error {
	el := errors.NewErrorList()

	if id, ok := duplicateOf(inv.UnlockedCosmeticIds); ok {
		el.Add(fmt.Errorf("cosmetic %q unlocked more than once", id))
	}
	if inv.EquippedCosmeticId != nil && !slices.Contains(inv.UnlockedCosmeticIds, *inv.EquippedCosmeticId) {
		el.Add(fmt.Errorf("equipped cosmetic %q is not unlocked", *inv.EquippedCosmeticId))
	}
	for i, it := range inv.Items {
		if it.ItemId == "" {
			el.Add(fmt.Errorf("item %d: item_id must be set", i))
		}
	}

	return el.Err()
}
