package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KeyLastActivityStart holds the newest start_date seen by sync
const KeyLastActivityStart = "last_activity_start"

// GetSyncState retrieves a sync state value by key
// Returns empty string if key doesn't exist
func (s *Store) GetSyncState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM sync_state WHERE key = ?
	`, key).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSyncState sets a sync state value
func (s *Store) SetSyncState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// GetCursor returns the sync cursor, or the zero time on a first sync
func (s *Store) GetCursor(ctx context.Context) (time.Time, error) {
	v, err := s.GetSyncState(ctx, KeyLastActivityStart)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	t, err := parseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing cursor %q: %w", v, err)
	}
	return t, nil
}

// SetCursor stores the sync cursor with second precision
func (s *Store) SetCursor(ctx context.Context, t time.Time) error {
	return s.SetSyncState(ctx, KeyLastActivityStart, formatTime(t))
}
