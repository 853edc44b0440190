package storage

import (
	"context"

	"github.com/pixil98/go-hearth/internal/player"
)

// Replicator mirrors saved snapshots to a remote backend. Enqueue must not block
// and must not report failures to the caller.
type Replicator interface {
	Enqueue(slot string, agg *player.Aggregate)
}

// ReplicatingStore hands every successful local save to a Replicator.
type ReplicatingStore struct {
	SlotStore
	replicator Replicator
}

func NewReplicatingStore(local SlotStore, r Replicator) *ReplicatingStore {
	return &ReplicatingStore{SlotStore: local, replicator: r}
}

func (s *ReplicatingStore) Save(ctx context.Context, slot string, agg *player.Aggregate) error {
	if err := s.SlotStore.Save(ctx, slot, agg); err != nil {
		return err
	}
	if agg != nil && s.replicator != nil {
		s.replicator.Enqueue(slot, agg.Clone())
	}
	return nil
}
