package strava

import "time"

// SummaryActivity is an activity as listed by /athlete/activities
type SummaryActivity struct {
	ID                 int64     `json:"id"`
	Athlete            Athlete   `json:"athlete"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Timezone           string    `json:"timezone"`
	Distance           float64   `json:"distance"`             // meters
	MovingTime         int       `json:"moving_time"`          // seconds
	ElapsedTime        int       `json:"elapsed_time"`         // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"` // meters
	AverageSpeed       float64   `json:"average_speed"`        // m/s
	MaxSpeed           float64   `json:"max_speed"`            // m/s
	AverageHeartrate   float64   `json:"average_heartrate"`    // bpm, 0 without HR
	MaxHeartrate       float64   `json:"max_heartrate"`        // bpm, 0 without HR
	AverageCadence     float64   `json:"average_cadence"`      // single-leg spm
	HasHeartrate       bool      `json:"has_heartrate"`
	Trainer            bool      `json:"trainer"`
	Manual             bool      `json:"manual"`
	WorkoutType        *int      `json:"workout_type"` // 1 = race for runs
}

// DetailedActivity is /activities/{id}, which adds laps and best efforts
type DetailedActivity struct {
	SummaryActivity
	Laps        []Lap        `json:"laps"`
	BestEfforts []BestEffort `json:"best_efforts"`
}

// Athlete represents a Strava athlete (minimal info in activity response)
type Athlete struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// Lap is one lap of a detailed activity
type Lap struct {
	ID               int64   `json:"id"`
	LapIndex         int     `json:"lap_index"` // 1-based
	Distance         float64 `json:"distance"`
	ElapsedTime      int     `json:"elapsed_time"`
	MovingTime       int     `json:"moving_time"`
	AverageSpeed     float64 `json:"average_speed"`
	MaxSpeed         float64 `json:"max_speed"`
	AverageHeartrate float64 `json:"average_heartrate"`
	MaxHeartrate     float64 `json:"max_heartrate"`
	StartIndex       int     `json:"start_index"`
	EndIndex         int     `json:"end_index"`
}

// BestEffort is one of Strava's native best efforts for a run
type BestEffort struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Distance    float64   `json:"distance"`
	ElapsedTime int       `json:"elapsed_time"`
	MovingTime  int       `json:"moving_time"`
	StartDate   time.Time `json:"start_date"`
	PRRank      *int      `json:"pr_rank"`
	StartIndex  int       `json:"start_index"`
	EndIndex    int       `json:"end_index"`
}

// Streams represents activity stream data from the API
// Strava returns streams keyed by type when key_by_type=true
type Streams struct {
	Time      *StreamData[int]     `json:"time"`
	Distance  *StreamData[float64] `json:"distance"`
	Heartrate *StreamData[int]     `json:"heartrate"`
}

// StreamData represents a single stream type
type StreamData[T any] struct {
	Data         []T    `json:"data"`
	SeriesType   string `json:"series_type"`
	OriginalSize int    `json:"original_size"`
	Resolution   string `json:"resolution"`
}

// Len returns the length of the stream, or 0 if nil
func (s *Streams) Len() int {
	if s == nil || s.Time == nil {
		return 0
	}
	return len(s.Time.Data)
}
