package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pixil98/go-hearth/internal/player"
)

const slotExt = ".json"

// FileStore keeps one {slot}.json file per slot under a root directory.
type FileStore struct {
	root string
	now  func() time.Time

	mu sync.RWMutex
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating storage root %q: %w", root, err)
	}

	return &FileStore{
		root: root,
		now:  time.Now,
	}, nil
}

// Save replaces the slot's snapshot. A nil aggregate is ignored. On failure the
// previous snapshot is left in place.
func (s *FileStore) Save(ctx context.Context, slot string, agg *player.Aggregate) error {
	if agg == nil {
		slog.WarnContext(ctx, "ignoring save of nil aggregate", "slot", slot)
		return nil
	}
	if err := ValidateSlot(slot); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	data, err := encodeSnapshot(slot, agg, s.now())
	if err != nil {
		return fmt.Errorf("%w: slot %q: %w", ErrWrite, slot, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := atomicWrite(s.filePath(slot), data, 0644); err != nil {
		return fmt.Errorf("%w: slot %q: %w", ErrWrite, slot, err)
	}

	slog.DebugContext(ctx, "saved slot", "slot", slot, "bytes", len(data))
	return nil
}

// atomicWrite writes data to a temp file in the target directory then renames
// it over the target path, so readers never observe a partial snapshot.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		if removeErr := os.Remove(tmpName); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			slog.Warn("failed to remove temp file", "path", tmpName, "error", removeErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, slot string) *player.Aggregate {
	if err := ValidateSlot(slot); err != nil {
		slog.WarnContext(ctx, "refusing to load slot", "slot", slot, "error", err)
		return nil
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.filePath(slot))
	s.mu.RUnlock()

	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		slog.WarnContext(ctx, "reading slot", "slot", slot, "error", err)
		return nil
	}

	agg, err := decodeSnapshot(data)
	if err != nil {
		slog.WarnContext(ctx, "discarding unreadable slot", "slot", slot, "error", err)
		return nil
	}

	return agg
}

// Delete removes the slot. Deleting a missing slot is not an error.
func (s *FileStore) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.filePath(slot))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting slot %q: %w", slot, err)
	}
	return nil
}

func (s *FileStore) ListSlots(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	entries, err := os.ReadDir(s.root)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("reading storage root: %w", err)
	}

	var slots []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != slotExt {
			continue
		}
		slot := strings.TrimSuffix(e.Name(), slotExt)
		if ValidateSlot(slot) != nil {
			continue
		}
		slots = append(slots, slot)
	}
	slices.Sort(slots)

	return slots, nil
}

func (s *FileStore) Summary(ctx context.Context, slot string) *SlotSummary {
	return summarize(slot, s.Load(ctx, slot))
}

// Ping checks that the storage root is a usable directory.
func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("checking storage root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %q is not a directory", s.root)
	}
	return nil
}

// InSlotNamespace reports whether path is a file a FileStore rooted at root
// would treat as a slot.
func InSlotNamespace(root, path string) bool {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(root) || filepath.Ext(path) != slotExt {
		return false
	}
	return ValidateSlot(strings.TrimSuffix(filepath.Base(path), slotExt)) == nil
}

func (s *FileStore) filePath(slot string) string {
	return filepath.Join(s.root, slot+slotExt)
}
