package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trainlog/internal/analysis"
	"trainlog/internal/store"
)

// KeyRateLimit is the sync_state key holding the last known API headroom
// as "short,daily,RFC3339".
const KeyRateLimit = "rate_limit_remaining"

// QueryService provides read-only queries for the CLI
type QueryService struct {
	store Store
}

// NewQueryService creates a new query service
func NewQueryService(st Store) *QueryService {
	return &QueryService{store: st}
}

// RankedEffort is one merged best effort with its activity
type RankedEffort struct {
	Rank int
	analysis.EffortRecord
	Distance     analysis.EffortDistance
	ActivityName string
	Pace         float64 // seconds per km
}

// BestEfforts returns the merged ranking for one distance, fastest first.
// limit <= 0 returns every record.
func (q *QueryService) BestEfforts(ctx context.Context, name string, limit int) ([]RankedEffort, error) {
	d, err := analysis.LookupDistance(name)
	if err != nil {
		return nil, err
	}

	native, err := q.store.BestEffortsByName(ctx, name, store.SourceStrava)
	if err != nil {
		return nil, err
	}
	computed, err := q.store.BestEffortsByName(ctx, name, store.SourceComputed)
	if err != nil {
		return nil, err
	}

	merged := analysis.MergeBestEfforts(toEffortRecords(native), toEffortRecords(computed), limit)

	names := make(map[int64]string)
	ranked := make([]RankedEffort, len(merged))
	for i, r := range merged {
		activityName, ok := names[r.ActivityID]
		if !ok {
			a, err := q.store.GetActivity(ctx, r.ActivityID)
			if err != nil && !errors.Is(err, store.ErrActivityNotFound) {
				return nil, err
			}
			if a != nil {
				activityName = a.Name
			}
			names[r.ActivityID] = activityName
		}
		ranked[i] = RankedEffort{
			Rank:         i + 1,
			EffortRecord: r,
			Distance:     d,
			ActivityName: activityName,
			Pace:         analysis.CalculatePacePerKm(d.Meters, float64(r.ElapsedTime)),
		}
	}
	return ranked, nil
}

// AllTimeBests returns the fastest record of every distance that has one
func (q *QueryService) AllTimeBests(ctx context.Context) ([]RankedEffort, error) {
	var bests []RankedEffort
	for _, d := range analysis.EffortDistances {
		top, err := q.BestEfforts(ctx, d.Name, 1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		bests = append(bests, top...)
	}
	return bests, nil
}

// Runs returns recent outdoor runs, newest first
func (q *QueryService) Runs(ctx context.Context, limit int) ([]store.Activity, error) {
	return q.store.ListRuns(ctx, limit)
}

// RateLimitSnapshot is the API headroom recorded by the last sync
type RateLimitSnapshot struct {
	ShortRemaining int
	DailyRemaining int
	At             time.Time
}

// Status summarizes the local database
type Status struct {
	Stats     store.Stats
	Cursor    time.Time
	LastRun   *store.SyncRun
	Zones     *store.HRZones
	RateLimit *RateLimitSnapshot
}

// Status returns counts, the sync cursor, the last sync run, the zones and
// the last known rate limit headroom. Missing pieces are left nil.
func (q *QueryService) Status(ctx context.Context) (*Status, error) {
	stats, err := q.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Stats: *stats}

	if st.Cursor, err = q.store.GetCursor(ctx); err != nil {
		return nil, err
	}

	st.LastRun, err = q.store.LastSyncRun(ctx)
	if err != nil && !errors.Is(err, store.ErrNoSyncRuns) {
		return nil, err
	}

	st.Zones, err = q.store.GetHRZones(ctx)
	if err != nil && !errors.Is(err, store.ErrNoZones) {
		return nil, err
	}

	v, err := q.store.GetSyncState(ctx, KeyRateLimit)
	if err != nil {
		return nil, err
	}
	st.RateLimit = parseRateLimit(v)

	return st, nil
}

func parseRateLimit(v string) *RateLimitSnapshot {
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return nil
	}
	short, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil
	}
	daily, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil
	}
	at, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return nil
	}
	return &RateLimitSnapshot{ShortRemaining: short, DailyRemaining: daily, At: at}
}
