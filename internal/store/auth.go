package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// The auth table holds a single row for the connected athlete
const authRowID = 1

// GetAuth returns the connected athlete's tokens, ErrNoAuth before login
func (s *Store) GetAuth(ctx context.Context) (*Auth, error) {
	var a Auth
	var expiry int64
	err := s.db.QueryRowContext(ctx,
		`SELECT athlete_id, access_token, refresh_token, expires_at FROM auth WHERE id = ?`,
		authRowID,
	).Scan(&a.AthleteID, &a.AccessToken, &a.RefreshToken, &expiry)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNoAuth
	case err != nil:
		return nil, fmt.Errorf("reading auth: %w", err)
	}

	a.ExpiresAt = time.Unix(expiry, 0)
	return &a, nil
}

// SaveAuth replaces the stored login, possibly for another athlete
func (s *Store) SaveAuth(ctx context.Context, a *Auth) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth (id, athlete_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, authRowID, a.AthleteID, a.AccessToken, a.RefreshToken, a.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("saving auth for athlete %d: %w", a.AthleteID, err)
	}
	return nil
}

// UpdateTokens persists a refreshed token pair. It fails with ErrNoAuth
// when nobody has logged in, since a refresh implies a prior login.
func (s *Store) UpdateTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE auth SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		accessToken, refreshToken, expiresAt.Unix(), authRowID,
	)
	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNoAuth
	}
	return nil
}
