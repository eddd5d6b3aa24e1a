package analysis

import (
	"sort"
	"time"
)

// Best effort sources
const (
	SourceStrava   = "strava"
	SourceComputed = "computed"
)

// EffortRecord is one stored best effort as seen by the merge
type EffortRecord struct {
	ActivityID  int64
	Name        string
	ElapsedTime int
	MovingTime  int
	StartDate   time.Time
	Source      string
}

// MergeBestEfforts reconciles native and computed records for one distance.
// A computed record is dropped when the same activity has a native record.
// The rest are ordered by elapsed time, start date and activity id, and
// truncated to limit (limit <= 0 keeps everything).
func MergeBestEfforts(native, computed []EffortRecord, limit int) []EffortRecord {
	covered := make(map[int64]bool, len(native))
	for _, r := range native {
		covered[r.ActivityID] = true
	}

	merged := make([]EffortRecord, 0, len(native)+len(computed))
	merged = append(merged, native...)
	for _, r := range computed {
		if covered[r.ActivityID] {
			continue
		}
		merged = append(merged, r)
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.ElapsedTime != b.ElapsedTime {
			return a.ElapsedTime < b.ElapsedTime
		}
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if a.ActivityID != b.ActivityID {
			return a.ActivityID < b.ActivityID
		}
		return a.Source > b.Source // strava before computed
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
