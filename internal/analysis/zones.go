package analysis

import (
	"math"
	"sort"
)

// Zone sources
const (
	ZoneSourceLactateTest = "lactate_test"
	ZoneSourceEstimated   = "estimated"
	ZoneSourceManual      = "manual"
)

// Defaults used when no heart rate history exists
const (
	DefaultLT1   = 145
	DefaultLT2   = 165
	DefaultMaxHR = 185

	// MinMaxHRSamples is how many runs with a max HR are needed before
	// the percentile estimate is trusted over the defaults.
	MinMaxHRSamples = 5

	estimateLT1Ratio = 0.80
	estimateLT2Ratio = 0.89
)

// HRZones represents athlete's heart rate thresholds
type HRZones struct {
	LT1       float64
	LT2       float64
	MaxHR     float64
	Source    string
	Confirmed bool
}

// DefaultZones returns the fixed unconfirmed fallback
func DefaultZones() HRZones {
	return HRZones{
		LT1:    DefaultLT1,
		LT2:    DefaultLT2,
		MaxHR:  DefaultMaxHR,
		Source: ZoneSourceEstimated,
	}
}

// ZoneFor classifies a heart rate into zones 1-5.
// Callers must check Confirmed first; unconfirmed thresholds still answer.
func (z HRZones) ZoneFor(hr float64) int {
	switch {
	case hr < z.LT1*0.88:
		return 1
	case hr < z.LT1:
		return 2
	case hr < z.LT2:
		return 3
	case hr < z.MaxHR*0.97:
		return 4
	default:
		return 5
	}
}

// EstimateZones derives unconfirmed zones from the max heart rates of stored
// runs using their 95th percentile.
func EstimateZones(maxHRs []float64) HRZones {
	valid := make([]float64, 0, len(maxHRs))
	for _, hr := range maxHRs {
		if hr > 0 {
			valid = append(valid, hr)
		}
	}
	if len(valid) < MinMaxHRSamples {
		return DefaultZones()
	}

	maxHR := math.Round(percentile(valid, 0.95))
	return HRZones{
		LT1:    math.Round(maxHR * estimateLT1Ratio),
		LT2:    math.Round(maxHR * estimateLT2Ratio),
		MaxHR:  maxHR,
		Source: ZoneSourceEstimated,
	}
}

// percentile returns the nearest-rank percentile of values. values is sorted
// in place.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	rank := int(math.Ceil(p*float64(len(values)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return values[rank]
}
