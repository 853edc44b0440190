package command

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-hearth/internal/storage"
)

const (
	DefaultPreferencesDir  = ".hearth"
	DefaultPreferencesFile = "preferences.json"
)

type StorageBackend int

const (
	StorageBackendFile StorageBackend = iota
	StorageBackendSQLite
)

func (b *StorageBackend) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "file":
		*b = StorageBackendFile
	case "sqlite":
		*b = StorageBackendSQLite
	default:
		return fmt.Errorf("unknown storage backend: %s", text)
	}
	return nil
}

func (b StorageBackend) String() string {
	switch b {
	case StorageBackendFile:
		return "file"
	case StorageBackendSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

type StorageConfig struct {
	Backend         StorageBackend `json:"backend" env:"BACKEND"`
	Path            string         `json:"path" env:"PATH"`
	PreferencesPath string         `json:"preferences_path" env:"PREFERENCES_PATH"`
	AutoSaveSlots   int            `json:"auto_save_slots" env:"AUTO_SAVE_SLOTS"`
	LabelTemplate   string         `json:"label_template" env:"LABEL_TEMPLATE"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	if c.Path == "" {
		el.Add(fmt.Errorf("storage: path is required"))
	}
	if c.Backend == StorageBackendFile && c.PreferencesPath != "" && storage.InSlotNamespace(c.Path, c.PreferencesPath) {
		el.Add(fmt.Errorf("storage: preferences_path %q would be listed as a save slot", c.PreferencesPath))
	}
	if c.AutoSaveSlots < 0 {
		el.Add(fmt.Errorf("storage: auto_save_slots must not be negative"))
	}
	if c.LabelTemplate != "" {
		if _, err := storage.NewLabeler(c.LabelTemplate); err != nil {
			el.Add(fmt.Errorf("storage: %w", err))
		}
	}

	return el.Err()
}

// BuildSlotStore opens the configured backend. The returned closer, if any, must
// be closed after the last save.
func (c *StorageConfig) BuildSlotStore() (storage.SlotStore, io.Closer, error) {
	switch c.Backend {
	case StorageBackendFile:
		s, err := storage.NewFileStore(c.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("creating file store: %w", err)
		}
		return s, nil, nil
	case StorageBackendSQLite:
		s, err := storage.OpenSQLiteStore(filepath.Join(c.Path, "saves.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %v", c.Backend)
	}
}

func (c *StorageConfig) BuildPreferences() (*storage.FilePreferences, error) {
	return storage.OpenFilePreferences(c.preferencesPath())
}

// preferencesPath defaults to a hidden directory under the storage root, which
// no slot name can reach.
func (c *StorageConfig) preferencesPath() string {
	if c.PreferencesPath != "" {
		return c.PreferencesPath
	}
	return filepath.Join(c.Path, DefaultPreferencesDir, DefaultPreferencesFile)
}

func (c *StorageConfig) BuildAutoSaveRing(store storage.SlotStore) *storage.AutoSaveRing {
	return storage.NewAutoSaveRing(store, c.AutoSaveSlots)
}

func (c *StorageConfig) BuildLabeler() (*storage.Labeler, error) {
	tmpl := c.LabelTemplate
	if tmpl == "" {
		tmpl = storage.DefaultLabelTemplate
	}
	return storage.NewLabeler(tmpl)
}
