package analysis

// RunType is the semantic label of one run
type RunType string

const (
	RunTypeEasy        RunType = "easy"
	RunTypeRecovery    RunType = "recovery"
	RunTypeLongRun     RunType = "long_run"
	RunTypeTempo       RunType = "tempo"
	RunTypeThreshold   RunType = "threshold"
	RunTypeIntervals   RunType = "intervals"
	RunTypeFartlek     RunType = "fartlek"
	RunTypeProgression RunType = "progression"
	RunTypeRace        RunType = "race"
	RunTypeUnknown     RunType = "unknown"
)

// Confidence of a classification
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RunSummary holds the activity-level fields the classifier reads
type RunSummary struct {
	Distance         float64  // meters
	MovingTime       int      // seconds
	ElapsedTime      int      // seconds
	AverageHeartrate *float64 // nil when no HR was recorded
	IsRace           bool     // provider race marker
}

// Pace returns the overall pace in seconds per km
func (r RunSummary) Pace() float64 {
	t := r.MovingTime
	if t <= 0 {
		t = r.ElapsedTime
	}
	return CalculatePacePerKm(r.Distance, float64(t))
}

// LapSplit is one lap as seen by the classifier
type LapSplit struct {
	Distance    float64 // meters
	MovingTime  int     // seconds
	ElapsedTime int     // seconds
}

// Seconds returns the lap duration, preferring moving time
func (l LapSplit) Seconds() int {
	if l.MovingTime > 0 {
		return l.MovingTime
	}
	return l.ElapsedTime
}

// Pace returns the lap pace in seconds per km
func (l LapSplit) Pace() float64 {
	return CalculatePacePerKm(l.Distance, float64(l.Seconds()))
}

// ClassifyInput is everything Classify looks at
type ClassifyInput struct {
	Activity RunSummary
	Laps     []LapSplit
	Zones    HRZones
	// EasyPace is the easy pace reference in seconds per km, 0 when unknown.
	EasyPace float64
}

// Classification is the classifier output for one activity
type Classification struct {
	RunType    RunType
	Detail     *string
	Confidence Confidence
}

// DetailString returns the detail or "" when there is none
func (c Classification) DetailString() string {
	if c.Detail == nil {
		return ""
	}
	return *c.Detail
}

// Classify labels one run. It evaluates classifierRules in order and falls
// back to pace and heart rate when no lap rule decides.
func Classify(in ClassifyInput) Classification {
	ctx := newLapContext(in)
	for _, r := range classifierRules {
		result, v := r.eval(ctx)
		switch v {
		case decide:
			return result
		case fallBack:
			return paceFallback(in)
		}
	}
	return paceFallback(in)
}

// RuleNames lists the ordered lap rules, for diagnostics.
func RuleNames() []string {
	names := make([]string, 0, len(classifierRules)+1)
	for _, r := range classifierRules {
		names = append(names, r.name)
	}
	return append(names, "pace_fallback")
}

func result(t RunType, detail string, c Confidence) Classification {
	out := Classification{RunType: t, Confidence: c}
	if detail != "" {
		out.Detail = &detail
	}
	return out
}
