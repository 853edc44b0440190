package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pixil98/go-hearth/internal/storage"
)

// Responder serves request/reply subjects.
type Responder interface {
	Ready() <-chan struct{}
	Respond(subject string, handler func(subject string, data []byte) []byte) (func(), error)
}

// Mirror is the receiving end of replication. It keeps one FileStore per
// player under root, laid out as {root}/{playerId}/{slot}.json.
type Mirror struct {
	responder Responder
	root      string
	prefix    string

	mu     sync.Mutex
	stores map[string]*storage.FileStore
}

func NewMirror(responder Responder, root, prefix string) *Mirror {
	if prefix == "" {
		prefix = DefaultReplicationPrefix
	}
	return &Mirror{
		responder: responder,
		root:      root,
		prefix:    prefix,
		stores:    map[string]*storage.FileStore{},
	}
}

func (m *Mirror) Start(ctx context.Context) error {
	select {
	case <-m.responder.Ready():
	case <-ctx.Done():
		return nil
	}

	unsub, err := m.responder.Respond(m.prefix+".>", m.Handle)
	if err != nil {
		return fmt.Errorf("starting mirror: %w", err)
	}
	defer unsub()

	slog.InfoContext(ctx, "replication mirror listening", "subject", m.prefix+".>", "root", m.root)

	<-ctx.Done()
	return nil
}

// Handle stores one replicated snapshot and returns the reply to send.
func (m *Mirror) Handle(subject string, data []byte) []byte {
	ctx := context.Background()

	if err := m.store(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "rejecting replicated snapshot", "subject", subject, "error", err)
		return []byte("error: " + err.Error())
	}
	return []byte(replyOK)
}

// Store returns the mirrored slots for a player.
func (m *Mirror) Store(playerId string) (*storage.FileStore, error) {
	if _, err := uuid.Parse(playerId); err != nil {
		return nil, fmt.Errorf("invalid player id %q: %w", playerId, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[playerId]; ok {
		return s, nil
	}

	s, err := storage.NewFileStore(filepath.Join(m.root, playerId))
	if err != nil {
		return nil, err
	}
	m.stores[playerId] = s
	return s, nil
}

func (m *Mirror) store(ctx context.Context, subject string, data []byte) error {
	playerId, slot, err := m.parseSubject(subject)
	if err != nil {
		return err
	}

	var msg replica
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	if msg.Aggregate == nil {
		return fmt.Errorf("snapshot has no aggregate")
	}
	if msg.Slot != slot || msg.PlayerId != playerId || msg.Aggregate.Profile.PlayerId != playerId {
		return fmt.Errorf("snapshot does not match subject %q", subject)
	}

	s, err := m.Store(playerId)
	if err != nil {
		return err
	}
	return s.Save(ctx, slot, msg.Aggregate)
}

func (m *Mirror) parseSubject(subject string) (string, string, error) {
	rest, ok := strings.CutPrefix(subject, m.prefix+".")
	if !ok {
		return "", "", fmt.Errorf("unexpected subject %q", subject)
	}

	playerId, slot, ok := strings.Cut(rest, ".")
	if !ok || playerId == "" || strings.Contains(slot, ".") {
		return "", "", fmt.Errorf("unexpected subject %q", subject)
	}
	if err := storage.ValidateSlot(slot); err != nil {
		return "", "", err
	}
	return playerId, slot, nil
}
