package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trainlog/internal/analysis"
	"trainlog/internal/logging"
	"trainlog/internal/store"
	"trainlog/internal/strava"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeProvider serves activities from memory. Listing honors Strava's
// strictly-after filter at second precision.
type fakeProvider struct {
	mu sync.Mutex

	activities []strava.SummaryActivity
	details    map[int64]*strava.DetailedActivity
	streams    map[int64]analysis.Stream

	listErr   error
	detailErr error
	// rateLimitAfter allows that many detail calls, 0 means unlimited
	rateLimitAfter int
	onList         func()

	listAfters  []time.Time
	detailCalls []int64
	streamCalls []int64
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		details: make(map[int64]*strava.DetailedActivity),
		streams: make(map[int64]analysis.Stream),
	}
}

func (p *fakeProvider) ListActivities(ctx context.Context, after time.Time, page, perPage int) ([]strava.SummaryActivity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listAfters = append(p.listAfters, after)
	if p.onList != nil {
		p.onList()
	}
	if p.listErr != nil {
		return nil, p.listErr
	}

	var matching []strava.SummaryActivity
	for _, a := range p.activities {
		if after.IsZero() || a.StartDate.Unix() > after.Unix() {
			matching = append(matching, a)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].StartDate.Before(matching[j].StartDate) })

	start := (page - 1) * perPage
	if start >= len(matching) {
		return nil, nil
	}
	end := min(start+perPage, len(matching))
	return matching[start:end], nil
}

func (p *fakeProvider) GetActivityDetail(ctx context.Context, id int64) (*strava.DetailedActivity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.detailErr != nil {
		return nil, p.detailErr
	}
	if p.rateLimitAfter > 0 && len(p.detailCalls) >= p.rateLimitAfter {
		return nil, fmt.Errorf("fetching activity %d: %w", id, strava.ErrRateLimited)
	}
	p.detailCalls = append(p.detailCalls, id)

	if d, ok := p.details[id]; ok {
		return d, nil
	}
	return &strava.DetailedActivity{SummaryActivity: strava.SummaryActivity{ID: id}}, nil
}

func (p *fakeProvider) GetActivityStream(ctx context.Context, id int64) (analysis.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.streamCalls = append(p.streamCalls, id)
	s, ok := p.streams[id]
	if !ok {
		return analysis.Stream{}, fmt.Errorf("activity %d: %w", id, strava.ErrStreamUnavailable)
	}
	return s, nil
}

// addRun registers a run built from laps, with its detail and a stream
// sampled every second.
func (p *fakeProvider) addRun(id int64, start time.Time, laps []strava.Lap) *strava.DetailedActivity {
	summary := strava.SummaryActivity{
		ID:               id,
		Athlete:          strava.Athlete{ID: 5},
		Name:             fmt.Sprintf("Run %d", id),
		Type:             "Run",
		SportType:        "Run",
		StartDate:        start,
		StartDateLocal:   start,
		AverageHeartrate: 150,
		MaxHeartrate:     180,
	}
	for _, l := range laps {
		summary.Distance += l.Distance
		summary.MovingTime += l.MovingTime
		summary.ElapsedTime += l.ElapsedTime
	}

	detail := &strava.DetailedActivity{SummaryActivity: summary, Laps: laps}
	p.activities = append(p.activities, summary)
	p.details[id] = detail
	p.streams[id] = streamFor(laps)
	return detail
}

// stravaLap builds a 1-based lap of dist meters at pace seconds per km
func stravaLap(index int, dist, pace float64) strava.Lap {
	secs := int(math.Round(dist * pace / 1000))
	return strava.Lap{
		LapIndex:     index,
		Distance:     dist,
		MovingTime:   secs,
		ElapsedTime:  secs,
		AverageSpeed: dist / float64(secs),
	}
}

// intervalLaps is warmup, six 1 km reps with 400 m jogs, cooldown
func intervalLaps() []strava.Lap {
	laps := []strava.Lap{stravaLap(1, 1500, 330)}
	for i := 0; i < 6; i++ {
		if i > 0 {
			laps = append(laps, stravaLap(len(laps)+1, 400, 360))
		}
		laps = append(laps, stravaLap(len(laps)+1, 1000, 240))
	}
	return append(laps, stravaLap(len(laps)+1, 1500, 330))
}

// easyLaps is an evenly paced run of n 1 km laps
func easyLaps(n int, pace float64) []strava.Lap {
	laps := make([]strava.Lap, n)
	for i := range laps {
		laps[i] = stravaLap(i+1, 1000, pace)
	}
	return laps
}

func streamFor(laps []strava.Lap) analysis.Stream {
	s := analysis.Stream{Time: []int{0}, Distance: []float64{0}}
	t, d := 0, 0.0
	for _, l := range laps {
		speed := l.Distance / float64(l.MovingTime)
		for i := 0; i < l.MovingTime; i++ {
			t++
			d += speed
			s.Time = append(s.Time, t)
			s.Distance = append(s.Distance, d)
		}
	}
	return s
}

type fakeSummarizer struct {
	calls int
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context) error {
	f.calls++
	return f.err
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func confirmZones(t *testing.T, st *store.Store) {
	t.Helper()
	require.NoError(t, st.SaveHRZones(context.Background(), &store.HRZones{
		LT1: 150, LT2: 170, MaxHR: 190,
		Source:    "lactate_test",
		Confirmed: true,
		UpdatedAt: testNow,
	}))
}

func testSyncConfig() SyncConfig {
	cfg := DefaultSyncConfig()
	cfg.DetailDelay = 0
	return cfg
}

func newTestSyncService(p Provider, st Store, opts ...SyncOption) *SyncService {
	opts = append([]SyncOption{
		WithSyncConfig(testSyncConfig()),
		WithLogger(logging.Discard()),
	}, opts...)
	s := NewSyncService(p, st, opts...)
	s.now = func() time.Time { return testNow }
	return s
}
