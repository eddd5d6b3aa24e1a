package analysis

import (
	"errors"
	"fmt"
	"math"
)

// SegmentTolerance is how far (meters) a window may miss its target distance
// in either direction and still be scored.
const SegmentTolerance = 50

// ErrMalformedStream is returned when time/distance arrays cannot be searched.
var ErrMalformedStream = errors.New("malformed stream")

// Stream holds the parallel cumulative arrays of one activity.
// Time is in seconds from start, Distance in meters from start.
type Stream struct {
	Time     []int
	Distance []float64
}

// Len returns the number of samples
func (s Stream) Len() int {
	return len(s.Time)
}

// Validate checks the arrays have equal length, at least two samples and
// never go backwards.
func (s Stream) Validate() error {
	if len(s.Time) != len(s.Distance) {
		return fmt.Errorf("%w: %d time samples vs %d distance samples", ErrMalformedStream, len(s.Time), len(s.Distance))
	}
	if len(s.Time) < 2 {
		return fmt.Errorf("%w: %d samples", ErrMalformedStream, len(s.Time))
	}
	for i := range s.Distance {
		if math.IsNaN(s.Distance[i]) {
			return fmt.Errorf("%w: sample %d is NaN", ErrMalformedStream, i)
		}
		if i > 0 && (s.Time[i] < s.Time[i-1] || s.Distance[i] < s.Distance[i-1]) {
			return fmt.Errorf("%w: sample %d goes backwards", ErrMalformedStream, i)
		}
	}
	return nil
}

// Segment is the fastest window found for one target distance
type Segment struct {
	StartIndex     int
	EndIndex       int
	Distance       float64 // window distance in meters
	ElapsedTime    int     // raw window time in seconds
	NormalizedTime float64 // window time scaled to exactly the target distance
}

// Pace returns the normalized pace in seconds per km for the given target.
func (s Segment) Pace(target float64) float64 {
	return CalculatePacePerKm(target, s.NormalizedTime)
}

// FindFastestSegment finds the window covering target meters with the lowest
// normalized time. The left edge trails the right edge so that no window is
// longer than target+SegmentTolerance; every start inside the tolerance band
// is scored for each end sample.
// Returns ok=false when the activity never reaches target meters.
func FindFastestSegment(s Stream, target float64) (Segment, bool, error) {
	if err := s.Validate(); err != nil {
		return Segment{}, false, err
	}
	if target <= 0 {
		return Segment{}, false, fmt.Errorf("target distance must be positive, got %v", target)
	}

	n := s.Len()
	if s.Distance[n-1] < target {
		return Segment{}, false, nil
	}

	var best Segment
	found := false
	lo := 0

	for right := 1; right < n; right++ {
		for lo < right && s.Distance[right]-s.Distance[lo] > target+SegmentTolerance {
			lo++
		}

		for left := lo; left < right; left++ {
			windowDist := s.Distance[right] - s.Distance[left]
			if windowDist < target-SegmentTolerance {
				break
			}
			windowTime := s.Time[right] - s.Time[left]
			if windowTime <= 0 {
				continue
			}

			normalized := float64(windowTime) / windowDist * target
			if !found || normalized < best.NormalizedTime {
				best = Segment{
					StartIndex:     left,
					EndIndex:       right,
					Distance:       windowDist,
					ElapsedTime:    windowTime,
					NormalizedTime: normalized,
				}
				found = true
			}
		}
	}

	return best, found, nil
}

// IsRealistic reports whether a segment's pace is no faster than the floor for
// its distance. Faster segments come from GPS jumps, not running.
func IsRealistic(d EffortDistance, seg Segment) bool {
	return seg.Pace(d.Meters) >= d.MinPace
}

// ComputedEffort is a best effort derived from a raw stream
type ComputedEffort struct {
	Distance EffortDistance
	Segment  Segment
}

// ElapsedSeconds returns the normalized time rounded to whole seconds.
func (e ComputedEffort) ElapsedSeconds() int {
	return int(math.Round(e.Segment.NormalizedTime))
}

// ComputeBestEfforts searches the stream for every standard distance that fits
// in the activity, skipping names present in skip. Unrealistic results are
// dropped without error.
func ComputeBestEfforts(s Stream, activityDistance float64, skip map[string]bool) ([]ComputedEffort, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var efforts []ComputedEffort
	for _, d := range EffortTargets(activityDistance) {
		if skip[d.Name] {
			continue
		}
		seg, ok, err := FindFastestSegment(s, d.Meters)
		if err != nil {
			return nil, err
		}
		if !ok || !IsRealistic(d, seg) {
			continue
		}
		efforts = append(efforts, ComputedEffort{Distance: d, Segment: seg})
	}
	return efforts, nil
}
