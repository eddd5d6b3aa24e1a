package fitfile

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"

	"trainlog/internal/analysis"
)

type testLap struct {
	meters  float64
	seconds int
}

// intervalSession is warmup, six 1 km reps at 4:00 with 400 m jogs, cooldown
func intervalSession() []testLap {
	laps := []testLap{{1500, 495}}
	for i := 0; i < 6; i++ {
		if i > 0 {
			laps = append(laps, testLap{400, 144})
		}
		laps = append(laps, testLap{1000, 240})
	}
	return append(laps, testLap{1500, 495})
}

var testStart = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

func buildTestFIT(t *testing.T, laps []testLap, withSession bool) []byte {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	require.NoError(t, err)

	activity, err := file.Activity()
	require.NoError(t, err)

	elapsed := 0
	dist := 0.0
	addRecord := func() {
		rec := fit.NewRecordMsg()
		rec.Timestamp = testStart.Add(time.Duration(elapsed) * time.Second)
		rec.Distance = uint32(math.Round(dist * 100))
		rec.HeartRate = 150
		activity.Records = append(activity.Records, rec)
	}

	addRecord()
	for _, l := range laps {
		lapStart := testStart.Add(time.Duration(elapsed) * time.Second)
		speed := l.meters / float64(l.seconds)
		for i := 0; i < l.seconds; i++ {
			elapsed++
			dist += speed
			addRecord()
		}

		lap := fit.NewLapMsg()
		lap.StartTime = lapStart
		lap.Timestamp = testStart.Add(time.Duration(elapsed) * time.Second)
		lap.TotalDistance = uint32(math.Round(l.meters * 100))
		lap.TotalTimerTime = uint32(l.seconds * 1000)
		lap.TotalElapsedTime = uint32(l.seconds * 1000)
		activity.Laps = append(activity.Laps, lap)
	}

	if withSession {
		session := fit.NewSessionMsg()
		session.Sport = fit.SportRunning
		session.StartTime = testStart
		session.Timestamp = testStart.Add(time.Duration(elapsed) * time.Second)
		session.TotalDistance = uint32(math.Round(dist * 100))
		session.TotalTimerTime = uint32(elapsed * 1000)
		session.TotalElapsedTime = uint32(elapsed * 1000)
		session.AvgHeartRate = 152
		session.MaxHeartRate = 176
		activity.Sessions = append(activity.Sessions, session)
	}

	var buf bytes.Buffer
	require.NoError(t, fit.Encode(&buf, file, binary.LittleEndian))
	return buf.Bytes()
}

func TestDecode_IntervalSession(t *testing.T) {
	data := buildTestFIT(t, intervalSession(), true)

	a, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)

	assert.True(t, a.IsRun())
	assert.True(t, a.StartTime.Equal(testStart))
	assert.InDelta(t, 11000, a.Summary.Distance, 0.5)
	assert.Equal(t, 3150, a.Summary.MovingTime)
	require.NotNil(t, a.Summary.AverageHeartrate)
	assert.Equal(t, 152.0, *a.Summary.AverageHeartrate)
	assert.Equal(t, 176.0, a.MaxHeartrate)

	require.Len(t, a.Laps, 13)
	assert.InDelta(t, 1500, a.Laps[0].Distance, 0.01)
	assert.Equal(t, 240, a.Laps[1].MovingTime)

	require.NoError(t, a.Stream.Validate())
	assert.Equal(t, 3151, a.Stream.Len())
	assert.Equal(t, 0, a.Stream.Time[0])
	assert.Equal(t, 3150, a.Stream.Time[a.Stream.Len()-1])

	got := analysis.Classify(analysis.ClassifyInput{
		Activity: a.Summary,
		Laps:     a.Laps,
		Zones:    analysis.DefaultZones(),
	})
	assert.Equal(t, analysis.RunTypeIntervals, got.RunType)
	assert.Equal(t, "6x1km", got.DetailString())

	seg, ok, err := analysis.FindFastestSegment(a.Stream, analysis.Distance1K)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 240, seg.NormalizedTime, 1)
}

func TestDecode_WithoutSession(t *testing.T) {
	data := buildTestFIT(t, []testLap{{1000, 300}, {1000, 300}}, false)

	a, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)

	assert.False(t, a.IsRun())
	assert.True(t, a.StartTime.Equal(testStart))
	assert.InDelta(t, 2000, a.Summary.Distance, 0.5)
	assert.Equal(t, 600, a.Summary.MovingTime)
	assert.Nil(t, a.Summary.AverageHeartrate)
	assert.Zero(t, a.MaxHeartrate)
}

func TestDecode_NoRecords(t *testing.T) {
	data := buildTestFIT(t, nil, true)

	_, err := Decode(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode(strings.NewReader("not a fit file"))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.fit")
	require.NoError(t, os.WriteFile(path, buildTestFIT(t, intervalSession(), true), 0o600))

	a, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, a.Laps, 13)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.fit"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildStream_ClampsDistance(t *testing.T) {
	var records []*fit.RecordMsg
	for i, d := range []float64{0, 10, 8, 20} {
		rec := fit.NewRecordMsg()
		rec.Timestamp = testStart.Add(time.Duration(i) * time.Second)
		rec.Distance = uint32(d * 100)
		records = append(records, rec)
	}
	// No distance, dropped
	nodist := fit.NewRecordMsg()
	nodist.Timestamp = testStart.Add(10 * time.Second)
	records = append(records, nodist)

	s, start := buildStream(records)
	assert.True(t, start.Equal(testStart))
	assert.Equal(t, []int{0, 1, 2, 3}, s.Time)
	assert.Equal(t, []float64{0, 10, 10, 20}, s.Distance)
}
