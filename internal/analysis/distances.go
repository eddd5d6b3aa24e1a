package analysis

import "fmt"

// Standard effort distances in meters
const (
	Distance400m         = 400
	DistanceHalfMile     = 804.67
	Distance1K           = 1000
	Distance1Mile        = 1609.34
	Distance2Mile        = 3218.69
	Distance5K           = 5000
	Distance10K          = 10000
	Distance15K          = 15000
	Distance10Mile       = 16093.4
	Distance20K          = 20000
	DistanceHalfMarathon = 21097.5
	Distance30K          = 30000
	DistanceMarathon     = 42195
)

// EffortDistance is a named race distance searched for best efforts.
// Name matches the label Strava uses for its native best efforts.
type EffortDistance struct {
	Name   string
	Meters float64
	// MinPace is the fastest believable pace for this distance in seconds per km.
	MinPace float64
}

// EffortDistances lists the standard distances in ascending order.
var EffortDistances = []EffortDistance{
	{Name: "400m", Meters: Distance400m, MinPace: 138},
	{Name: "1/2 mile", Meters: DistanceHalfMile, MinPace: 138},
	{Name: "1k", Meters: Distance1K, MinPace: 150},
	{Name: "1 mile", Meters: Distance1Mile, MinPace: 162},
	{Name: "2 mile", Meters: Distance2Mile, MinPace: 162},
	{Name: "5k", Meters: Distance5K, MinPace: 180},
	{Name: "10k", Meters: Distance10K, MinPace: 180},
	{Name: "15k", Meters: Distance15K, MinPace: 180},
	{Name: "10 mile", Meters: Distance10Mile, MinPace: 180},
	{Name: "20k", Meters: Distance20K, MinPace: 180},
	{Name: "Half-Marathon", Meters: DistanceHalfMarathon, MinPace: 180},
	{Name: "30k", Meters: Distance30K, MinPace: 180},
	{Name: "Marathon", Meters: DistanceMarathon, MinPace: 180},
}

// TargetCoverage is the share of an activity's distance a target may occupy.
// A marathon-length segment is never searched inside a 10k run.
const TargetCoverage = 0.95

// LookupDistance returns the effort distance with the given name.
func LookupDistance(name string) (EffortDistance, error) {
	for _, d := range EffortDistances {
		if d.Name == name {
			return d, nil
		}
	}
	return EffortDistance{}, fmt.Errorf("unknown effort distance %q", name)
}

// EffortTargets returns the standard distances worth searching in an activity
// of the given length.
func EffortTargets(activityDistance float64) []EffortDistance {
	limit := activityDistance * TargetCoverage
	var targets []EffortDistance
	for _, d := range EffortDistances {
		if d.Meters <= limit {
			targets = append(targets, d)
		}
	}
	return targets
}

// CalculatePacePerKm calculates pace in seconds per kilometer
func CalculatePacePerKm(distanceMeters float64, durationSeconds float64) float64 {
	if distanceMeters <= 0 || durationSeconds <= 0 {
		return 0
	}
	return durationSeconds / (distanceMeters / 1000)
}

// FormatPace formats seconds per km as "M:SS".
func FormatPace(secondsPerKm float64) string {
	total := int(secondsPerKm + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatDuration formats seconds as "H:MM:SS" or "M:SS"
func FormatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
