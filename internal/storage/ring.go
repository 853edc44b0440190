package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pixil98/go-hearth/internal/player"
)

const (
	DefaultAutoSavePrefix = "auto"
	DefaultAutoSaveSlots  = 3
)

// AutoSaveRing retains the N most recent automatic saves as prefix_1..prefix_N,
// with prefix_1 always the newest.
type AutoSaveRing struct {
	store  SlotStore
	size   int
	prefix string
}

func NewAutoSaveRing(store SlotStore, size int) *AutoSaveRing {
	if size < 1 {
		size = DefaultAutoSaveSlots
	}
	return &AutoSaveRing{
		store:  store,
		size:   size,
		prefix: DefaultAutoSavePrefix,
	}
}

func (r *AutoSaveRing) Size() int {
	return r.size
}

func (r *AutoSaveRing) SlotName(i int) string {
	return fmt.Sprintf("%s_%d", r.prefix, i)
}

// Slots returns the ring's slot names from newest to oldest.
func (r *AutoSaveRing) Slots() []string {
	names := make([]string, r.size)
	for i := range names {
		names[i] = r.SlotName(i + 1)
	}
	return names
}

// Save shifts every retained snapshot one position older, dropping the oldest,
// then writes agg as the newest.
func (r *AutoSaveRing) Save(ctx context.Context, agg *player.Aggregate) error {
	if agg == nil {
		slog.WarnContext(ctx, "ignoring auto-save of nil aggregate")
		return nil
	}

	for i := r.size - 1; i >= 1; i-- {
		src, dst := r.SlotName(i), r.SlotName(i+1)

		snap := r.store.Load(ctx, src)
		if snap == nil {
			// Keep positions aligned with age when a slot is missing or unreadable.
			if err := r.store.Delete(ctx, dst); err != nil {
				return fmt.Errorf("clearing %s: %w", dst, err)
			}
			continue
		}
		if err := r.store.Save(ctx, dst, snap); err != nil {
			return fmt.Errorf("rotating %s to %s: %w", src, dst, err)
		}
	}

	if err := r.store.Save(ctx, r.SlotName(1), agg); err != nil {
		return fmt.Errorf("writing %s: %w", r.SlotName(1), err)
	}

	r.prune(ctx)
	return nil
}

// Latest returns the newest auto-save, or nil.
func (r *AutoSaveRing) Latest(ctx context.Context) *player.Aggregate {
	return r.store.Load(ctx, r.SlotName(1))
}

// prune removes ring slots beyond the configured size, left behind when the
// ring was larger on a previous run.
func (r *AutoSaveRing) prune(ctx context.Context) {
	slots, err := r.store.ListSlots(ctx)
	if err != nil {
		slog.WarnContext(ctx, "listing slots for auto-save pruning", "error", err)
		return
	}

	for _, slot := range slots {
		n, ok := r.position(slot)
		if !ok || n <= r.size {
			continue
		}
		if err := r.store.Delete(ctx, slot); err != nil {
			slog.WarnContext(ctx, "pruning auto-save slot", "slot", slot, "error", err)
		}
	}
}

func (r *AutoSaveRing) position(slot string) (int, bool) {
	rest, ok := strings.CutPrefix(slot, r.prefix+"_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
