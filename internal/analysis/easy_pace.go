package analysis

import (
	"math"
	"sort"
)

// Easy pace selection
const (
	EasyPaceMinDistance = 5000
	EasyPaceMaxDistance = 15000
	EasyPaceRecentRuns  = 100
	EasyPaceSlowShare   = 0.6
	EasyPaceMinRuns     = 3
)

// RunPace is the minimum a run needs to contribute to the easy pace reference
type RunPace struct {
	Distance   float64 // meters
	MovingTime int     // seconds
}

// EasyPace returns the athlete's typical easy pace in seconds per km: the
// median pace of the slower 60% of the given moderate-distance runs.
// ok is false when fewer than EasyPaceMinRuns runs qualify.
func EasyPace(runs []RunPace) (pace float64, ok bool) {
	paces := make([]float64, 0, len(runs))
	for _, r := range runs {
		if r.Distance < EasyPaceMinDistance || r.Distance > EasyPaceMaxDistance {
			continue
		}
		if p := CalculatePacePerKm(r.Distance, float64(r.MovingTime)); p > 0 {
			paces = append(paces, p)
		}
	}
	if len(paces) < EasyPaceMinRuns {
		return 0, false
	}

	// Slowest first
	sort.Sort(sort.Reverse(sort.Float64Slice(paces)))
	n := int(math.Ceil(float64(len(paces)) * EasyPaceSlowShare))
	if n < 1 {
		n = 1
	}
	return median(paces[:n]), true
}

// median returns the median without modifying values
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
