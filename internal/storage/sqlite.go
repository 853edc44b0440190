package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-hearth/internal/player"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS slots (
	name     TEXT PRIMARY KEY,
	payload  BLOB NOT NULL,
	saved_at TEXT NOT NULL
)`

// SQLiteStore keeps every slot as a row in a single database file. Each save is
// a single upsert, so a failed write leaves the previous row intact.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}
	// The sqlite driver serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database %q: %w", path, err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, slot string, agg *player.Aggregate) error {
	if agg == nil {
		slog.WarnContext(ctx, "ignoring save of nil aggregate", "slot", slot)
		return nil
	}
	if err := ValidateSlot(slot); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	now := s.now()
	data, err := encodeSnapshot(slot, agg, now)
	if err != nil {
		return fmt.Errorf("%w: slot %q: %w", ErrWrite, slot, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO slots (name, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		slot, data, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: slot %q: %w", ErrWrite, slot, err)
	}

	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, slot string) *player.Aggregate {
	if err := ValidateSlot(slot); err != nil {
		slog.WarnContext(ctx, "refusing to load slot", "slot", slot, "error", err)
		return nil
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM slots WHERE name = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteStore) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, slot); err != nil {
		return fmt.Errorf("deleting slot %q: %w", slot, err)
	}
	return nil
}

func (s *SQLiteStore) ListSlots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM slots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var slots []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning slot name: %w", err)
		}
		slots = append(slots, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}

	return slots, nil
}

func (s *SQLiteStore) Summary(ctx context.Context, slot string) *SlotSummary {
	return summarize(slot, s.Load(ctx, slot))
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
