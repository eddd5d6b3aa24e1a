package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lap builds a split of dist meters run at pace seconds per km
func lap(dist, pace float64) LapSplit {
	secs := int(math.Round(dist * pace / 1000))
	return LapSplit{Distance: dist, MovingTime: secs, ElapsedTime: secs}
}

func summaryOf(laps []LapSplit) RunSummary {
	var s RunSummary
	for _, l := range laps {
		s.Distance += l.Distance
		s.MovingTime += l.MovingTime
		s.ElapsedTime += l.ElapsedTime
	}
	return s
}

func confirmedZones() HRZones {
	return HRZones{LT1: 150, LT2: 170, MaxHR: 190, Source: ZoneSourceLactateTest, Confirmed: true}
}

func floatPtr(v float64) *float64 {
	return &v
}

// sixByOneKm is warmup, six 1 km reps with 400 m jogs, cooldown
func sixByOneKm() []LapSplit {
	laps := []LapSplit{lap(1500, 330)}
	for i := 0; i < 6; i++ {
		if i > 0 {
			laps = append(laps, lap(400, 360))
		}
		laps = append(laps, lap(1000, 240))
	}
	return append(laps, lap(1500, 330))
}

// irregularReps has the same shape as sixByOneKm with uneven work distances
func irregularReps() []LapSplit {
	laps := []LapSplit{lap(1500, 330)}
	for i, d := range []float64{600, 1400, 800, 1500, 700, 1200} {
		if i > 0 {
			laps = append(laps, lap(400, 360))
		}
		laps = append(laps, lap(d, 240))
	}
	return append(laps, lap(1500, 330))
}

func classifyLaps(laps []LapSplit, easyPace float64) Classification {
	return Classify(ClassifyInput{
		Activity: summaryOf(laps),
		Laps:     laps,
		Zones:    confirmedZones(),
		EasyPace: easyPace,
	})
}

func TestClassify_RaceOverride(t *testing.T) {
	laps := sixByOneKm()
	summary := summaryOf(laps)
	summary.IsRace = true

	got := Classify(ClassifyInput{Activity: summary, Laps: laps, Zones: confirmedZones(), EasyPace: 320})

	assert.Equal(t, RunTypeRace, got.RunType)
	assert.Nil(t, got.Detail)
	assert.Equal(t, ConfidenceHigh, got.Confidence)
}

func TestClassify_RaceOverrideIgnoresZones(t *testing.T) {
	got := Classify(ClassifyInput{
		Activity: RunSummary{Distance: 5000, MovingTime: 1100, IsRace: true},
		Zones:    DefaultZones(),
	})
	assert.Equal(t, RunTypeRace, got.RunType)
}

func TestClassify_Intervals(t *testing.T) {
	got := classifyLaps(sixByOneKm(), 320)

	assert.Equal(t, RunTypeIntervals, got.RunType)
	require.NotNil(t, got.Detail)
	assert.Equal(t, "6x1km", *got.Detail)
	assert.Equal(t, ConfidenceHigh, got.Confidence)
}

func TestClassify_Fartlek(t *testing.T) {
	got := classifyLaps(irregularReps(), 320)

	assert.Equal(t, RunTypeFartlek, got.RunType)
	assert.Equal(t, "6x4/2min", got.DetailString())
	assert.Equal(t, ConfidenceHigh, got.Confidence)
}

func TestClassify_FartlekShortReps(t *testing.T) {
	laps := []LapSplit{
		lap(1500, 330),
		lap(150, 180), lap(200, 360),
		lap(300, 180), lap(200, 360),
		lap(200, 180), lap(200, 360),
		lap(350, 180),
		lap(1500, 330),
	}

	got := classifyLaps(laps, 320)

	assert.Equal(t, RunTypeFartlek, got.RunType)
	assert.Equal(t, "4x45/72s", got.DetailString())
}

func TestClassify_WarmupRepsCooldown(t *testing.T) {
	// 2 km warmup, six 1 km reps getting faster then steady, 300 m jogs
	laps := []LapSplit{lap(2000, 270)}
	for i, pace := range []float64{200, 195, 190, 190, 190, 190} {
		if i > 0 {
			laps = append(laps, lap(300, 300))
		}
		laps = append(laps, lap(1000, pace))
	}
	laps = append(laps, lap(1500, 300))

	got := classifyLaps(laps, 320)

	assert.Equal(t, RunTypeIntervals, got.RunType)
	assert.Equal(t, "6x1km", got.DetailString())
	assert.Equal(t, ConfidenceHigh, got.Confidence)
}

func TestClassify_Progression(t *testing.T) {
	tests := []struct {
		name  string
		paces []float64
	}{
		{"five core laps", []float64{330, 300, 290, 280, 270, 260, 320}},
		{"large deltas", []float64{330, 320, 280, 240, 200, 170, 330}},
		{"short run", []float64{300, 290, 280, 270, 260}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var laps []LapSplit
			for _, p := range tt.paces {
				laps = append(laps, lap(2000, p))
			}
			got := classifyLaps(laps, 320)
			assert.Equal(t, RunTypeProgression, got.RunType)
			assert.Nil(t, got.Detail)
			assert.Equal(t, ConfidenceHigh, got.Confidence)
		})
	}
}

func TestClassify_TempoBlock(t *testing.T) {
	laps := []LapSplit{
		lap(2000, 330),
		lap(2000, 270),
		lap(2000, 270),
		lap(2000, 270),
		lap(2000, 330),
	}

	got := classifyLaps(laps, 320)

	assert.Equal(t, RunTypeTempo, got.RunType)
	assert.Equal(t, "6.0km @ 4:30/km", got.DetailString())
	assert.Equal(t, ConfidenceHigh, got.Confidence)
}

func TestClassify_TempoBlockNeedsEasyPace(t *testing.T) {
	laps := []LapSplit{
		lap(2000, 330),
		lap(2000, 270),
		lap(2000, 270),
		lap(2000, 270),
		lap(2000, 330),
	}

	got := classifyLaps(laps, 0)

	assert.NotEqual(t, RunTypeTempo, got.RunType)
	assert.Nil(t, got.Detail)
}

func TestClassify_NonAlternatingFallsBack(t *testing.T) {
	laps := []LapSplit{
		lap(2000, 330),
		lap(2000, 240),
		lap(2000, 240),
		lap(2000, 240),
		lap(2000, 330),
		lap(2000, 330),
		lap(2000, 330),
	}

	got := classifyLaps(laps, 300)

	assert.NotEqual(t, RunTypeIntervals, got.RunType)
	assert.NotEqual(t, RunTypeFartlek, got.RunType)
	assert.Nil(t, got.Detail)
}

func TestClassify_AutoLaps(t *testing.T) {
	tests := []struct {
		name string
		laps []LapSplit
	}{
		{
			name: "kilometer splits with alternating pace",
			laps: []LapSplit{
				lap(1000, 240), lap(1050, 360), lap(900, 240),
				lap(1000, 360), lap(1100, 240), lap(1000, 360),
				lap(400, 300),
			},
		},
		{
			name: "mile splits",
			laps: []LapSplit{
				lap(1609, 250), lap(1609, 350), lap(1700, 250), lap(1500, 350), lap(800, 300),
			},
		},
		{
			name: "two laps",
			laps: []LapSplit{lap(3000, 240), lap(3000, 360)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsAutoLaps(tt.laps))
			got := classifyLaps(tt.laps, 300)
			assert.NotEqual(t, RunTypeIntervals, got.RunType)
			assert.NotEqual(t, RunTypeFartlek, got.RunType)
			assert.Nil(t, got.Detail)
		})
	}
}

func TestIsAutoLaps_StructuredLaps(t *testing.T) {
	assert.False(t, IsAutoLaps(sixByOneKm()))
	assert.False(t, IsAutoLaps(irregularReps()))
}

func TestClassify_Fallback(t *testing.T) {
	zones := confirmedZones()
	run := func(dist, pace float64, hr *float64) RunSummary {
		return RunSummary{
			Distance:         dist,
			MovingTime:       int(math.Round(dist * pace / 1000)),
			ElapsedTime:      int(math.Round(dist * pace / 1000)),
			AverageHeartrate: hr,
		}
	}

	tests := []struct {
		name       string
		activity   RunSummary
		easyPace   float64
		wantType   RunType
		wantConfid Confidence
	}{
		{"slow in zone 1", run(8000, 340, floatPtr(125)), 300, RunTypeRecovery, ConfidenceMedium},
		{"slow in zone 2", run(8000, 340, floatPtr(145)), 300, RunTypeRecovery, ConfidenceMedium},
		{"slow in zone 3", run(8000, 340, floatPtr(160)), 300, RunTypeEasy, ConfidenceLow},
		{"slow without hr", run(8000, 340, nil), 300, RunTypeEasy, ConfidenceLow},
		{"at reference long", run(16000, 305, floatPtr(145)), 300, RunTypeLongRun, ConfidenceMedium},
		{"at reference short", run(8000, 295, floatPtr(145)), 300, RunTypeEasy, ConfidenceMedium},
		{"fast in zone 4", run(8000, 260, floatPtr(175)), 300, RunTypeThreshold, ConfidenceMedium},
		{"fast in zone 5", run(5000, 240, floatPtr(188)), 300, RunTypeThreshold, ConfidenceMedium},
		{"fast in zone 3", run(8000, 260, floatPtr(160)), 300, RunTypeTempo, ConfidenceMedium},
		{"fast long without hr", run(16000, 260, nil), 300, RunTypeLongRun, ConfidenceLow},
		{"fast short without hr", run(8000, 260, nil), 300, RunTypeUnknown, ConfidenceLow},
		{"fast in zone 2", run(8000, 260, floatPtr(140)), 300, RunTypeUnknown, ConfidenceLow},
		{"no reference", run(8000, 260, floatPtr(175)), 0, RunTypeEasy, ConfidenceMedium},
		{"no distance", RunSummary{MovingTime: 600}, 300, RunTypeUnknown, ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(ClassifyInput{Activity: tt.activity, Zones: zones, EasyPace: tt.easyPace})
			assert.Equal(t, tt.wantType, got.RunType)
			assert.Equal(t, tt.wantConfid, got.Confidence)
			assert.Nil(t, got.Detail)
		})
	}
}

func TestClassify_IgnoresEmptyLaps(t *testing.T) {
	laps := append([]LapSplit{{Distance: 0, MovingTime: 5}}, sixByOneKm()...)
	laps = append(laps, LapSplit{Distance: 12})

	got := classifyLaps(laps, 320)

	assert.Equal(t, RunTypeIntervals, got.RunType)
	assert.Equal(t, "6x1km", got.DetailString())
}

func TestClassify_Deterministic(t *testing.T) {
	in := ClassifyInput{Activity: summaryOf(irregularReps()), Laps: irregularReps(), Zones: confirmedZones(), EasyPace: 320}
	first := Classify(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(in))
	}
}

func TestRepLabel(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{1000, "1km"},
		{1080, "1km"},
		{800, "800m"},
		{750, "800m"},
		{400, "400m"},
		{1609, "1mi"},
		{2100, "2km"},
		{1250, "1200m"},
		{350, "350m"},
		{520, "500m"},
		{3000, "3000m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, repLabel(tt.meters), "repLabel(%v)", tt.meters)
	}
}

func TestRuleNames(t *testing.T) {
	names := RuleNames()
	require.NotEmpty(t, names)
	assert.Equal(t, "race_override", names[0])
	assert.Equal(t, "pace_fallback", names[len(names)-1])
}
