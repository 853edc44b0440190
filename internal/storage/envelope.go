package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-hearth/internal/player"
	"golang.org/x/crypto/blake2b"
)

const snapshotVersion = 1

// Envelope wraps a serialized aggregate with enough metadata to detect a
// truncated or tampered snapshot.
type Envelope struct {
	Version  uint            `json:"version"`
	Slot     string          `json:"slot"`
	Checksum string          `json:"checksum"`
	SavedAt  time.Time       `json:"saved_at"`
	Payload  json.RawMessage `json:"payload"`
}

func (e *Envelope) Validate() error {
	el := errors.NewErrorList()

	if e.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	} else if e.Version > snapshotVersion {
		el.Add(fmt.Errorf("unsupported version %d", e.Version))
	}

	if e.Slot == "" {
		el.Add(fmt.Errorf("slot must be set"))
	}

	if len(e.Payload) == 0 {
		el.Add(fmt.Errorf("payload must be set"))
	} else if e.Checksum != checksum(e.Payload) {
		el.Add(fmt.Errorf("checksum mismatch"))
	}

	return el.Err()
}

func encodeSnapshot(slot string, agg *player.Aggregate, now time.Time) ([]byte, error) {
	if err := agg.Validate(); err != nil {
		return nil, fmt.Errorf("validating aggregate: %w", err)
	}

	payload, err := json.Marshal(agg)
	if err != nil {
		return nil, fmt.Errorf("marshalling aggregate: %w", err)
	}

	env := &Envelope{
		Version:  snapshotVersion,
		Slot:     slot,
		Checksum: checksum(payload),
		SavedAt:  now.UTC(),
		Payload:  payload,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshalling envelope: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*player.Aggregate, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: unmarshalling envelope: %w", ErrDecode, err)
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var agg player.Aggregate
	if err := json.Unmarshal(env.Payload, &agg); err != nil {
		return nil, fmt.Errorf("%w: unmarshalling aggregate: %w", ErrDecode, err)
	}
	if err := agg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: validating aggregate: %w", ErrDecode, err)
	}

	return &agg, nil
}

func checksum(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
