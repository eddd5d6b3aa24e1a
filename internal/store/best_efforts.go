package store

import (
	"context"
	"fmt"
)

const bestEffortColumns = `
	activity_id, name, source, distance, elapsed_time, moving_time,
	start_date, pr_rank, start_index, end_index`

// UpsertBestEffort stores a best effort keyed by activity, name and source
func (s *Store) UpsertBestEffort(ctx context.Context, e *BestEffort) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO best_efforts (`+bestEffortColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(activity_id, name, source) DO UPDATE SET
			distance = excluded.distance,
			elapsed_time = excluded.elapsed_time,
			moving_time = excluded.moving_time,
			start_date = excluded.start_date,
			pr_rank = excluded.pr_rank,
			start_index = excluded.start_index,
			end_index = excluded.end_index,
			updated_at = CURRENT_TIMESTAMP
	`,
		e.ActivityID, e.Name, e.Source, e.Distance, e.ElapsedTime, e.MovingTime,
		formatTime(e.StartDate), e.PRRank, e.StartIndex, e.EndIndex,
	)
	if err != nil {
		return fmt.Errorf("upserting %s best effort %q for activity %d: %w", e.Source, e.Name, e.ActivityID, err)
	}
	return nil
}

// BestEffortsByName returns every record of one distance from one source,
// fastest first.
func (s *Store) BestEffortsByName(ctx context.Context, name, source string) ([]BestEffort, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bestEffortColumns+`
		FROM best_efforts
		WHERE name = ? AND source = ?
		ORDER BY elapsed_time ASC, start_date ASC, activity_id ASC
	`, name, source)
	if err != nil {
		return nil, fmt.Errorf("querying best efforts: %w", err)
	}
	defer rows.Close()

	var efforts []BestEffort
	for rows.Next() {
		var e BestEffort
		var startDate string
		if err := rows.Scan(
			&e.ActivityID, &e.Name, &e.Source, &e.Distance, &e.ElapsedTime, &e.MovingTime,
			&startDate, &e.PRRank, &e.StartIndex, &e.EndIndex,
		); err != nil {
			return nil, err
		}
		if e.StartDate, err = parseTime(startDate); err != nil {
			return nil, fmt.Errorf("parsing start_date %q: %w", startDate, err)
		}
		efforts = append(efforts, e)
	}
	return efforts, rows.Err()
}

// BestEffortNames returns the distance names an activity already has from
// the given source.
func (s *Store) BestEffortNames(ctx context.Context, activityID int64, source string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM best_efforts WHERE activity_id = ? AND source = ?
	`, activityID, source)
	if err != nil {
		return nil, fmt.Errorf("querying best effort names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}
