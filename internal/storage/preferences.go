package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Preferences is a small key/value document for state that outlives a single
// aggregate, such as the session counter.
type Preferences interface {
	Get(key string, out any) (bool, error)
	Set(key string, v any) error
}

// Values maps keys to raw JSON values.
type Values map[string]json.RawMessage

// Set stores v under key after marshalling it to JSON.
func (v *Values) Set(k string, val any) error {
	if *v == nil {
		*v = Values{}
	}

	b, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshal preference %q: %w", k, err)
	}

	(*v)[k] = json.RawMessage(b)
	return nil
}

// Get unmarshals the value at key into out.
// Returns (found=false, nil) if not present.
func (v Values) Get(key string, out any) (bool, error) {
	if v == nil {
		return false, nil
	}

	raw, ok := v[key]
	if !ok || len(raw) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("unmarshal preference %q: %w", key, err)
	}
	return true, nil
}

// Delete removes the key, if present.
func (v Values) Delete(key string) {
	if v == nil {
		return
	}
	delete(v, key)
}

// FilePreferences persists Values as a single JSON document. Every Set rewrites
// the document atomically.
type FilePreferences struct {
	path   string
	values Values

	mu sync.Mutex
}

// OpenFilePreferences loads the document at path. A missing file starts empty;
// an unreadable one is logged and replaced on the next Set.
func OpenFilePreferences(path string) (*FilePreferences, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating preferences directory: %w", err)
	}

	p := &FilePreferences{path: path, values: Values{}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("reading preferences %q: %w", path, err)
	}

	if err := json.Unmarshal(data, &p.values); err != nil {
		slog.Warn("discarding unreadable preferences", "path", path, "error", err)
		p.values = Values{}
	}

	return p, nil
}

func (p *FilePreferences) Get(key string, out any) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.values.Get(key, out)
}

func (p *FilePreferences) Set(key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.values.Set(key, v); err != nil {
		return err
	}

	data, err := json.Marshal(p.values)
	if err != nil {
		return fmt.Errorf("marshalling preferences: %w", err)
	}

	return atomicWrite(p.path, data, 0644)
}
