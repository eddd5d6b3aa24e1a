// Package fitfile decodes device FIT activity files into classifier and
// segment search input using github.com/tormoder/fit.
package fitfile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/tormoder/fit"

	"trainlog/internal/analysis"
)

var (
	// ErrNotActivity is returned for FIT files of another file type
	ErrNotActivity = errors.New("fit file is not an activity")
	// ErrNoRecords is returned when no record carries a time and distance
	ErrNoRecords = errors.New("fit file has no distance records")
)

// Activity is one decoded FIT activity
type Activity struct {
	Sport     string
	StartTime time.Time

	Summary      analysis.RunSummary
	MaxHeartrate float64 // 0 when no heart rate was recorded
	Laps         []analysis.LapSplit
	Stream       analysis.Stream
}

// IsRun reports whether the first session is a running session
func (a *Activity) IsRun() bool {
	return a.Sport == fit.SportRunning.String()
}

// ReadFile decodes the FIT activity at path
func ReadFile(path string) (*Activity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a FIT activity. Session totals are preferred; the record
// stream fills in whatever the session leaves unset.
func Decode(r io.Reader) (*Activity, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}

	af, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotActivity, err)
	}

	stream, start := buildStream(af.Records)
	if stream.Len() < 2 {
		return nil, ErrNoRecords
	}

	a := &Activity{
		StartTime: start,
		Stream:    stream,
		Laps:      convertLaps(af.Laps),
	}

	last := stream.Len() - 1
	a.Summary.Distance = stream.Distance[last]
	a.Summary.ElapsedTime = stream.Time[last]
	a.Summary.MovingTime = a.Summary.ElapsedTime

	if len(af.Sessions) > 0 && af.Sessions[0] != nil {
		applySession(a, af.Sessions[0])
	}
	return a, nil
}

func applySession(a *Activity, s *fit.SessionMsg) {
	a.Sport = s.Sport.String()
	if t := validTime(s.StartTime); !t.IsZero() {
		a.StartTime = t
	}
	if d := positive(s.GetTotalDistanceScaled()); d > 0 {
		a.Summary.Distance = d
	}
	if secs := positive(s.GetTotalElapsedTimeScaled()); secs > 0 {
		a.Summary.ElapsedTime = int(math.Round(secs))
	}
	if secs := positive(s.GetTotalTimerTimeScaled()); secs > 0 {
		a.Summary.MovingTime = int(math.Round(secs))
	}
	if hr, ok := heartRate(s.AvgHeartRate); ok {
		a.Summary.AverageHeartrate = &hr
	}
	if hr, ok := heartRate(s.MaxHeartRate); ok {
		a.MaxHeartrate = hr
	}
}

// buildStream turns records into cumulative time and distance arrays.
// Records without a timestamp or distance are dropped, and distance never
// goes backwards.
func buildStream(records []*fit.RecordMsg) (analysis.Stream, time.Time) {
	type sample struct {
		ts   time.Time
		dist float64
	}

	samples := make([]sample, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		ts := validTime(rec.Timestamp)
		d := rec.GetDistanceScaled()
		if ts.IsZero() || math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		samples = append(samples, sample{ts: ts, dist: d})
	}
	if len(samples) == 0 {
		return analysis.Stream{}, time.Time{}
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].ts.Before(samples[j].ts)
	})

	start := samples[0].ts
	s := analysis.Stream{
		Time:     make([]int, len(samples)),
		Distance: make([]float64, len(samples)),
	}
	maxDist := 0.0
	for i, smp := range samples {
		maxDist = math.Max(maxDist, smp.dist)
		s.Time[i] = int(smp.ts.Sub(start) / time.Second)
		s.Distance[i] = maxDist
	}
	return s, start
}

func convertLaps(laps []*fit.LapMsg) []analysis.LapSplit {
	out := make([]analysis.LapSplit, 0, len(laps))
	for _, lap := range laps {
		if lap == nil {
			continue
		}
		out = append(out, analysis.LapSplit{
			Distance:    positive(lap.GetTotalDistanceScaled()),
			MovingTime:  int(math.Round(positive(lap.GetTotalTimerTimeScaled()))),
			ElapsedTime: int(math.Round(positive(lap.GetTotalElapsedTimeScaled()))),
		})
	}
	return out
}

func validTime(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

// positive maps NaN, infinities and negatives to 0
func positive(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func heartRate(v uint8) (float64, bool) {
	if v == 0 || v == math.MaxUint8 {
		return 0, false
	}
	return float64(v), true
}
