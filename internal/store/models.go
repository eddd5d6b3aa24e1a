package store

import "time"

// Best effort sources
const (
	SourceStrava   = "strava"
	SourceComputed = "computed"
)

// WorkoutTypeRace is Strava's workout_type for a race run
const WorkoutTypeRace = 1

// Auth represents OAuth tokens for Strava API access
type Auth struct {
	AthleteID    int64     `db:"athlete_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Activity represents a Strava activity summary plus the locally owned
// detail and classification fields.
type Activity struct {
	ID                 int64     `db:"id"`
	AthleteID          int64     `db:"athlete_id"`
	Name               string    `db:"name"`
	Type               string    `db:"type"`
	SportType          string    `db:"sport_type"`
	StartDate          time.Time `db:"start_date"`
	StartDateLocal     time.Time `db:"start_date_local"`
	Timezone           string    `db:"timezone"`
	Distance           float64   `db:"distance"`     // meters
	MovingTime         int       `db:"moving_time"`  // seconds
	ElapsedTime        int       `db:"elapsed_time"` // seconds
	TotalElevationGain float64   `db:"total_elevation_gain"`
	AverageSpeed       float64   `db:"average_speed"`     // m/s
	MaxSpeed           float64   `db:"max_speed"`         // m/s
	AverageHeartrate   *float64  `db:"average_heartrate"` // nullable
	MaxHeartrate       *float64  `db:"max_heartrate"`     // nullable
	AverageCadence     *float64  `db:"average_cadence"`   // nullable
	Trainer            bool      `db:"trainer"`
	Manual             bool      `db:"manual"`
	WorkoutType        *int      `db:"workout_type"` // nullable, 1 = race

	// Local fields, never written by UpsertActivity
	DetailFetched     bool       `db:"detail_fetched"`
	RunType           *string    `db:"run_type"`
	RunTypeDetail     *string    `db:"run_type_detail"`
	RunTypeConfidence *string    `db:"run_type_confidence"`
	ClassifiedAt      *time.Time `db:"classified_at"`
}

// IsOutdoorRun reports whether the activity is a run recorded outside on a
// device, the only kind that gets detail, best efforts and a run type.
func (a *Activity) IsOutdoorRun() bool {
	return a.Type == "Run" && !a.Trainer && !a.Manual
}

// IsRace reports whether Strava marks the activity as a race
func (a *Activity) IsRace() bool {
	return a.WorkoutType != nil && *a.WorkoutType == WorkoutTypeRace
}

// Lap is one lap split of an activity
type Lap struct {
	ActivityID       int64    `db:"activity_id"`
	LapIndex         int      `db:"lap_index"`
	Distance         float64  `db:"distance"`     // meters
	ElapsedTime      int      `db:"elapsed_time"` // seconds
	MovingTime       int      `db:"moving_time"`  // seconds
	AverageSpeed     float64  `db:"average_speed"`
	MaxSpeed         float64  `db:"max_speed"`
	AverageHeartrate *float64 `db:"average_heartrate"`
	MaxHeartrate     *float64 `db:"max_heartrate"`
	StartIndex       int      `db:"start_index"`
	EndIndex         int      `db:"end_index"`
}

// BestEffort is the fastest segment of a standard distance in one activity
type BestEffort struct {
	ActivityID  int64     `db:"activity_id"`
	Name        string    `db:"name"` // "400m", "1k", "5k", "Half-Marathon", ...
	Source      string    `db:"source"`
	Distance    float64   `db:"distance"`
	ElapsedTime int       `db:"elapsed_time"`
	MovingTime  int       `db:"moving_time"`
	StartDate   time.Time `db:"start_date"`
	PRRank      *int      `db:"pr_rank"`
	StartIndex  int       `db:"start_index"`
	EndIndex    int       `db:"end_index"`
}

// HRZones is the single stored heart rate zone record
type HRZones struct {
	LT1       float64   `db:"lt1"`
	LT2       float64   `db:"lt2"`
	MaxHR     float64   `db:"max_hr"`
	Source    string    `db:"source"`
	Confirmed bool      `db:"confirmed"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Classification is the classifier output persisted on an activity
type Classification struct {
	RunType    string
	Detail     *string
	Confidence string
}

// SyncRun is the audit record of one sync invocation
type SyncRun struct {
	ID              string     `db:"id"`
	Mode            string     `db:"mode"`
	StartedAt       time.Time  `db:"started_at"`
	FinishedAt      *time.Time `db:"finished_at"`
	Outcome         string     `db:"outcome"`
	ActivitiesSeen  int        `db:"activities_seen"`
	NewActivities   int        `db:"new_activities"`
	DetailsFetched  int        `db:"details_fetched"`
	EffortsComputed int        `db:"efforts_computed"`
	Classified      int        `db:"classified"`
	StreamMisses    int        `db:"stream_misses"`
	Error           string     `db:"error"`
}

// Stats are the row counts shown by the status command
type Stats struct {
	Activities  int
	Runs        int
	Detailed    int
	Classified  int
	BestEfforts int
}
