package storage

import (
	"context"
	"testing"

	"github.com/pixil98/go-hearth/internal/player"
	"github.com/pixil98/go-testutil"
)

type recordingReplicator struct {
	slots []string
	aggs  []*player.Aggregate
}

func (r *recordingReplicator) Enqueue(slot string, agg *player.Aggregate) {
	r.slots = append(r.slots, slot)
	r.aggs = append(r.aggs, agg)
}

func TestReplicatingStore_Save(t *testing.T) {
	tests := map[string]struct {
		slot     string
		agg      *player.Aggregate
		expErr   bool
		expSlots []string
	}{
		"successful save replicates": {
			slot:     "auto",
			agg:      sampleAggregate(),
			expSlots: []string{"auto"},
		},
		"failed save does not replicate": {
			slot:   "../bad",
			agg:    sampleAggregate(),
			expErr: true,
		},
		"nil aggregate does not replicate": {
			slot: "auto",
			agg:  nil,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			local, err := NewFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			rep := &recordingReplicator{}
			s := NewReplicatingStore(local, rep)

			err = s.Save(context.Background(), tt.slot, tt.agg)
			if tt.expErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.expErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "replicated slots", len(rep.slots), len(tt.expSlots))
			for i, slot := range tt.expSlots {
				testutil.AssertEqual(t, "slot", rep.slots[i], slot)
			}
		})
	}
}

func TestReplicatingStore_ReplicatesCopy(t *testing.T) {
	local, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rep := &recordingReplicator{}
	s := NewReplicatingStore(local, rep)

	a := sampleAggregate()
	if err := s.Save(context.Background(), "auto", a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a.AddPlayTime(100)
	testutil.AssertEqual(t, "replicated play time", rep.aggs[0].Statistics.TotalPlayTime, 1234.5)
}
