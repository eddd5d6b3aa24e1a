package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetHRZones returns the stored zones, or ErrNoZones
func (s *Store) GetHRZones(ctx context.Context) (*HRZones, error) {
	var z HRZones
	var confirmed int
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT lt1, lt2, max_hr, source, confirmed, updated_at
		FROM hr_zones
		WHERE id = 1
	`).Scan(&z.LT1, &z.LT2, &z.MaxHR, &z.Source, &confirmed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoZones
	}
	if err != nil {
		return nil, fmt.Errorf("reading hr zones: %w", err)
	}

	if z.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at %q: %w", updatedAt, err)
	}
	z.Confirmed = confirmed == 1
	return &z, nil
}

// SaveHRZones replaces the zone record
func (s *Store) SaveHRZones(ctx context.Context, z *HRZones) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hr_zones (id, lt1, lt2, max_hr, source, confirmed, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lt1 = excluded.lt1,
			lt2 = excluded.lt2,
			max_hr = excluded.max_hr,
			source = excluded.source,
			confirmed = excluded.confirmed,
			updated_at = excluded.updated_at
	`, z.LT1, z.LT2, z.MaxHR, z.Source, boolToInt(z.Confirmed), formatTime(z.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving hr zones: %w", err)
	}
	return nil
}
