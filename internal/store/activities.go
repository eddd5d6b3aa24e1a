package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const activityColumns = `
	id, athlete_id, name, type, sport_type, start_date, start_date_local, timezone,
	distance, moving_time, elapsed_time, total_elevation_gain,
	average_speed, max_speed, average_heartrate, max_heartrate, average_cadence,
	trainer, manual, workout_type,
	detail_fetched, run_type, run_type_detail, run_type_confidence, classified_at`

// outdoorRun filters activities to device-recorded outdoor runs
const outdoorRun = `type = 'Run' AND trainer = 0 AND manual = 0`

// UpsertActivity inserts or updates an activity's provider fields. The local
// detail and classification columns are left untouched on conflict.
// Returns true when the activity did not exist before.
func (s *Store) UpsertActivity(ctx context.Context, a *Activity) (bool, error) {
	exists, err := s.ActivityExists(ctx, a.ID)
	if err != nil {
		return false, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activities (
			id, athlete_id, name, type, sport_type, start_date, start_date_local, timezone,
			distance, moving_time, elapsed_time, total_elevation_gain,
			average_speed, max_speed, average_heartrate, max_heartrate, average_cadence,
			trainer, manual, workout_type, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			type = excluded.type,
			sport_type = excluded.sport_type,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			timezone = excluded.timezone,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			total_elevation_gain = excluded.total_elevation_gain,
			average_speed = excluded.average_speed,
			max_speed = excluded.max_speed,
			average_heartrate = excluded.average_heartrate,
			max_heartrate = excluded.max_heartrate,
			average_cadence = excluded.average_cadence,
			trainer = excluded.trainer,
			manual = excluded.manual,
			workout_type = excluded.workout_type,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.AthleteID, a.Name, a.Type, a.SportType,
		formatTime(a.StartDate), formatTime(a.StartDateLocal), a.Timezone,
		a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain,
		a.AverageSpeed, a.MaxSpeed, a.AverageHeartrate, a.MaxHeartrate, a.AverageCadence,
		boolToInt(a.Trainer), boolToInt(a.Manual), a.WorkoutType,
	)
	if err != nil {
		return false, fmt.Errorf("upserting activity %d: %w", a.ID, err)
	}
	return !exists, nil
}

// ActivityExists reports whether an activity with id is stored
func (s *Store) ActivityExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking activity %d: %w", id, err)
	}
	return n > 0, nil
}

// GetActivity retrieves an activity by ID
func (s *Store) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	return a, err
}

// ListRuns returns outdoor runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Activity, error) {
	return s.queryActivities(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE `+outdoorRun+`
		ORDER BY start_date DESC
		LIMIT ?
	`, limit)
}

// ActivitiesMissingDetail returns outdoor runs whose detail was never
// fetched, oldest first.
func (s *Store) ActivitiesMissingDetail(ctx context.Context, limit int) ([]Activity, error) {
	return s.queryActivities(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE `+outdoorRun+` AND detail_fetched = 0
		ORDER BY start_date ASC, id ASC
		LIMIT ?
	`, limit)
}

// ActivitiesNeedingClassification returns detailed outdoor runs without a
// run type, newest first. When racesOnly is set only race-flagged runs are
// returned.
func (s *Store) ActivitiesNeedingClassification(ctx context.Context, limit int, racesOnly bool) ([]Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE ` + outdoorRun + ` AND detail_fetched = 1 AND run_type IS NULL`
	if racesOnly {
		query += fmt.Sprintf(` AND workout_type = %d`, WorkoutTypeRace)
	}
	query += `
		ORDER BY start_date DESC, id DESC
		LIMIT ?`
	return s.queryActivities(ctx, query, limit)
}

// RecentRunsForEasyPace returns the most recent outdoor runs between
// minDistance and maxDistance meters.
func (s *Store) RecentRunsForEasyPace(ctx context.Context, minDistance, maxDistance float64, limit int) ([]Activity, error) {
	return s.queryActivities(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE `+outdoorRun+` AND distance >= ? AND distance <= ? AND moving_time > 0
		ORDER BY start_date DESC
		LIMIT ?
	`, minDistance, maxDistance, limit)
}

// RunMaxHeartrates returns every recorded max heart rate of outdoor runs
func (s *Store) RunMaxHeartrates(ctx context.Context) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT max_heartrate FROM activities
		WHERE `+outdoorRun+` AND max_heartrate IS NOT NULL AND max_heartrate > 0
	`)
	if err != nil {
		return nil, fmt.Errorf("querying max heart rates: %w", err)
	}
	defer rows.Close()

	var hrs []float64
	for rows.Next() {
		var hr float64
		if err := rows.Scan(&hr); err != nil {
			return nil, err
		}
		hrs = append(hrs, hr)
	}
	return hrs, rows.Err()
}

// MarkDetailFetched marks an activity's laps and best efforts as stored
func (s *Store) MarkDetailFetched(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE activities
		SET detail_fetched = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("marking detail fetched for %d: %w", id, err)
	}
	return requireRow(result)
}

// SetClassification stores the classifier result on an activity
func (s *Store) SetClassification(ctx context.Context, id int64, c Classification, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE activities
		SET run_type = ?, run_type_detail = ?, run_type_confidence = ?,
			classified_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, c.RunType, c.Detail, c.Confidence, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("classifying activity %d: %w", id, err)
	}
	return requireRow(result)
}

// ClearClassifications drops every stored run type so the next pass
// reclassifies. Returns the number of activities cleared.
func (s *Store) ClearClassifications(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE activities
		SET run_type = NULL, run_type_detail = NULL, run_type_confidence = NULL,
			classified_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE run_type IS NOT NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("clearing classifications: %w", err)
	}
	return result.RowsAffected()
}

// GetStats returns row counts for the status command
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN `+outdoorRun+` THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(detail_fetched), 0),
			COALESCE(SUM(CASE WHEN run_type IS NOT NULL THEN 1 ELSE 0 END), 0),
			(SELECT COUNT(*) FROM best_efforts)
		FROM activities
	`).Scan(&st.Activities, &st.Runs, &st.Detailed, &st.Classified, &st.BestEfforts)
	if err != nil {
		return nil, fmt.Errorf("counting activities: %w", err)
	}
	return &st, nil
}

func (s *Store) queryActivities(ctx context.Context, query string, args ...any) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanActivity scans one row selected with activityColumns
func scanActivity(row scanner) (*Activity, error) {
	var a Activity
	var startDate, startDateLocal string
	var trainer, manual, detailFetched int
	var classifiedAt sql.NullString

	err := row.Scan(
		&a.ID, &a.AthleteID, &a.Name, &a.Type, &a.SportType, &startDate, &startDateLocal, &a.Timezone,
		&a.Distance, &a.MovingTime, &a.ElapsedTime, &a.TotalElevationGain,
		&a.AverageSpeed, &a.MaxSpeed, &a.AverageHeartrate, &a.MaxHeartrate, &a.AverageCadence,
		&trainer, &manual, &a.WorkoutType,
		&detailFetched, &a.RunType, &a.RunTypeDetail, &a.RunTypeConfidence, &classifiedAt,
	)
	if err != nil {
		return nil, err
	}

	if a.StartDate, err = parseTime(startDate); err != nil {
		return nil, fmt.Errorf("parsing start_date %q: %w", startDate, err)
	}
	if a.StartDateLocal, err = parseTime(startDateLocal); err != nil {
		return nil, fmt.Errorf("parsing start_date_local %q: %w", startDateLocal, err)
	}
	if classifiedAt.Valid {
		t, err := parseTime(classifiedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing classified_at %q: %w", classifiedAt.String, err)
		}
		a.ClassifiedAt = &t
	}
	a.Trainer = trainer == 1
	a.Manual = manual == 1
	a.DetailFetched = detailFetched == 1

	return &a, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrActivityNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
