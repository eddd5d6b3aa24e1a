package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoSyncRuns is returned when sync never ran
var ErrNoSyncRuns = errors.New("no sync runs recorded")

// CreateSyncRun records the start of a sync
func (s *Store) CreateSyncRun(ctx context.Context, r *SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, mode, started_at, outcome)
		VALUES (?, ?, ?, ?)
	`, r.ID, r.Mode, formatTime(r.StartedAt), r.Outcome)
	if err != nil {
		return fmt.Errorf("creating sync run: %w", err)
	}
	return nil
}

// FinishSyncRun stores the outcome and counters of a sync
func (s *Store) FinishSyncRun(ctx context.Context, r *SyncRun) error {
	var finished *string
	if r.FinishedAt != nil {
		f := formatTime(*r.FinishedAt)
		finished = &f
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET
			finished_at = ?, outcome = ?, activities_seen = ?, new_activities = ?,
			details_fetched = ?, efforts_computed = ?, classified = ?,
			stream_misses = ?, error = ?
		WHERE id = ?
	`, finished, r.Outcome, r.ActivitiesSeen, r.NewActivities,
		r.DetailsFetched, r.EffortsComputed, r.Classified,
		r.StreamMisses, r.Error, r.ID)
	if err != nil {
		return fmt.Errorf("finishing sync run %s: %w", r.ID, err)
	}
	return nil
}

// LastSyncRun returns the most recently started sync
func (s *Store) LastSyncRun(ctx context.Context) (*SyncRun, error) {
	var r SyncRun
	var startedAt string
	var finishedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mode, started_at, finished_at, outcome, activities_seen,
			new_activities, details_fetched, efforts_computed, classified,
			stream_misses, error
		FROM sync_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&r.ID, &r.Mode, &startedAt, &finishedAt, &r.Outcome, &r.ActivitiesSeen,
		&r.NewActivities, &r.DetailsFetched, &r.EffortsComputed, &r.Classified,
		&r.StreamMisses, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSyncRuns
	}
	if err != nil {
		return nil, fmt.Errorf("reading last sync run: %w", err)
	}

	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at %q: %w", finishedAt.String, err)
		}
		r.FinishedAt = &t
	}
	return &r, nil
}
