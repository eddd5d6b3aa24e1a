package store

import (
	"context"
	"fmt"
)

// ReplaceLaps replaces every lap of an activity in one transaction
func (s *Store) ReplaceLaps(ctx context.Context, activityID int64, laps []Lap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM laps WHERE activity_id = ?", activityID); err != nil {
		return fmt.Errorf("deleting existing laps: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO laps (
			activity_id, lap_index, distance, elapsed_time, moving_time,
			average_speed, max_speed, average_heartrate, max_heartrate,
			start_index, end_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range laps {
		_, err := stmt.ExecContext(ctx,
			activityID, l.LapIndex, l.Distance, l.ElapsedTime, l.MovingTime,
			l.AverageSpeed, l.MaxSpeed, l.AverageHeartrate, l.MaxHeartrate,
			l.StartIndex, l.EndIndex,
		)
		if err != nil {
			return fmt.Errorf("inserting lap %d: %w", l.LapIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetLaps returns an activity's laps in order
func (s *Store) GetLaps(ctx context.Context, activityID int64) ([]Lap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT activity_id, lap_index, distance, elapsed_time, moving_time,
			average_speed, max_speed, average_heartrate, max_heartrate,
			start_index, end_index
		FROM laps
		WHERE activity_id = ?
		ORDER BY lap_index
	`, activityID)
	if err != nil {
		return nil, fmt.Errorf("querying laps: %w", err)
	}
	defer rows.Close()

	var laps []Lap
	for rows.Next() {
		var l Lap
		if err := rows.Scan(
			&l.ActivityID, &l.LapIndex, &l.Distance, &l.ElapsedTime, &l.MovingTime,
			&l.AverageSpeed, &l.MaxSpeed, &l.AverageHeartrate, &l.MaxHeartrate,
			&l.StartIndex, &l.EndIndex,
		); err != nil {
			return nil, err
		}
		laps = append(laps, l)
	}
	return laps, rows.Err()
}
