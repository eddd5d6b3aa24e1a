package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainlog/internal/analysis"
	"trainlog/internal/metrics"
	"trainlog/internal/store"
	"trainlog/internal/strava"
)

func nativeEfforts(start time.Time) []strava.BestEffort {
	return []strava.BestEffort{
		{Name: "400m", Distance: 400, ElapsedTime: 95, MovingTime: 95, StartDate: start},
		{Name: "1/2 mile", Distance: 804.67, ElapsedTime: 192, MovingTime: 192, StartDate: start},
		{Name: "1k", Distance: 1000, ElapsedTime: 239, MovingTime: 239, StartDate: start},
		{Name: "1 mile", Distance: 1609.34, ElapsedTime: 420, MovingTime: 420, StartDate: start},
		{Name: "Mystery Mile", Distance: 1609.34, ElapsedTime: 300, MovingTime: 300, StartDate: start},
	}
}

func TestSync_EndToEnd(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	confirmZones(t, st)

	p := newFakeProvider()
	start := testNow.Add(-24 * time.Hour)
	detail := p.addRun(1, start, intervalLaps())
	detail.BestEfforts = nativeEfforts(start)

	m := metrics.New()
	svc := newTestSyncService(p, st, WithMetrics(m))

	result, err := svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ActivitiesSeen)
	assert.Equal(t, 1, result.NewActivities)
	assert.Equal(t, BackfillOutcome{Processed: 1}, result.NewDetails)
	assert.Equal(t, 3, result.EffortsComputed, "2 mile, 5k and 10k come from the stream")
	assert.Zero(t, result.StreamMisses)
	assert.Equal(t, 1, result.Classification.Classified)
	assert.Empty(t, result.Errors)
	assert.Equal(t, start, result.Cursor)

	a, err := st.GetActivity(ctx, 1)
	require.NoError(t, err)
	assert.True(t, a.DetailFetched)
	require.NotNil(t, a.RunType)
	assert.Equal(t, string(analysis.RunTypeIntervals), *a.RunType)
	require.NotNil(t, a.RunTypeDetail)
	assert.Equal(t, "6x1km", *a.RunTypeDetail)
	require.NotNil(t, a.RunTypeConfidence)
	assert.Equal(t, string(analysis.ConfidenceHigh), *a.RunTypeConfidence)

	laps, err := st.GetLaps(ctx, 1)
	require.NoError(t, err)
	require.Len(t, laps, 13)
	assert.Equal(t, 0, laps[0].LapIndex)

	native, err := st.BestEffortNames(ctx, 1, store.SourceStrava)
	require.NoError(t, err)
	assert.Len(t, native, 4, "unknown effort names are not stored")

	computed, err := st.BestEffortNames(ctx, 1, store.SourceComputed)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"2 mile": true, "5k": true, "10k": true}, computed)

	bests, err := NewQueryService(st).BestEfforts(ctx, "5k", 10)
	require.NoError(t, err)
	require.Len(t, bests, 1)
	assert.Equal(t, store.SourceComputed, bests[0].Source)
	assert.Equal(t, "Run 1", bests[0].ActivityName)
	assert.False(t, bests[0].StartDate.Before(start))

	run, err := st.LastSyncRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, OutcomeOK, run.Outcome)
	assert.Equal(t, 1, run.DetailsFetched)
	assert.Equal(t, 3, run.EffortsComputed)
	assert.Equal(t, 1, run.Classified)
	assert.NotNil(t, run.FinishedAt)
}

func TestSync_SecondRunIsNoop(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	confirmZones(t, st)

	p := newFakeProvider()
	p.addRun(1, testNow.Add(-72*time.Hour), easyLaps(8, 330))
	p.addRun(2, testNow.Add(-24*time.Hour), intervalLaps())

	svc := newTestSyncService(p, st)
	first, err := svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.NewActivities)
	assert.Equal(t, 2, first.Classification.Classified)

	details, streams := len(p.detailCalls), len(p.streamCalls)

	second, err := svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Zero(t, second.ActivitiesSeen)
	assert.Zero(t, second.NewActivities)
	assert.Zero(t, second.DetailsFetched())
	assert.Zero(t, second.EffortsComputed)
	assert.Zero(t, second.Classification.Classified)
	assert.Len(t, p.detailCalls, details)
	assert.Len(t, p.streamCalls, streams)
	assert.Equal(t, first.Cursor, second.Cursor)
	assert.Equal(t, first.Cursor, p.listAfters[len(p.listAfters)-1])
}

func TestSync_BackfillResumesAfterRateLimit(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	confirmZones(t, st)

	base := testNow.Add(-90 * 24 * time.Hour)
	for id := int64(1); id <= 100; id++ {
		_, err := st.UpsertActivity(ctx, &store.Activity{
			ID:        id,
			Name:      "Old run",
			Type:      "Run",
			StartDate: base.Add(time.Duration(id) * time.Hour),
			Distance:  300,
		})
		require.NoError(t, err)
	}
	require.NoError(t, st.SetCursor(ctx, base.Add(100*time.Hour)))

	p := newFakeProvider()
	p.rateLimitAfter = 40
	svc := newTestSyncService(p, st)

	result, err := svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.True(t, result.RateLimited())
	assert.Equal(t, BackfillOutcome{Processed: 40, StoppedEarly: true}, result.Backfill)
	for i, id := range p.detailCalls {
		assert.Equal(t, int64(i+1), id, "oldest activities are backfilled first")
	}

	run, err := st.LastSyncRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRateLimited, run.Outcome)

	missing, err := st.ActivitiesMissingDetail(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, missing, 60)
	assert.Equal(t, int64(41), missing[0].ID)

	p.rateLimitAfter = 0
	result, err = svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.False(t, result.RateLimited())
	assert.Equal(t, BackfillOutcome{Processed: 60}, result.Backfill)

	missing, err = st.ActivitiesMissingDetail(ctx, 1000)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSync_RateLimitOnNewDetailsSkipsBackfill(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	confirmZones(t, st)

	_, err := st.UpsertActivity(ctx, &store.Activity{
		ID: 99, Type: "Run", Name: "Old run",
		StartDate: testNow.Add(-100 * 24 * time.Hour), Distance: 300,
	})
	require.NoError(t, err)

	p := newFakeProvider()
	for id := int64(1); id <= 3; id++ {
		p.addRun(id, testNow.Add(-time.Duration(10-id)*time.Hour), easyLaps(6, 330))
	}
	p.rateLimitAfter = 1

	result, err := newTestSyncService(p, st).Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, BackfillOutcome{Processed: 1, StoppedEarly: true}, result.NewDetails)
	assert.Equal(t, BackfillOutcome{}, result.Backfill)
	assert.Equal(t, []int64{1}, p.detailCalls)

	// The listing still completed, so the cursor moved
	assert.Equal(t, testNow.Add(-7*time.Hour), result.Cursor)

	missing, err := st.ActivitiesMissingDetail(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, missing, 3)
}

func TestSync_RateLimitWhileListingKeepsCursor(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	cursor := testNow.Add(-48 * time.Hour)
	require.NoError(t, st.SetCursor(ctx, cursor))

	p := newFakeProvider()
	p.listErr = &strava.APIError{StatusCode: 429, Path: "/athlete/activities"}

	result, err := newTestSyncService(p, st).Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.True(t, result.ListingStoppedEarly)
	assert.Empty(t, p.detailCalls)

	got, err := st.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, cursor, got)
}

func TestSync_DefersClassificationUntilZonesConfirmed(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)

	p := newFakeProvider()
	p.addRun(1, testNow.Add(-48*time.Hour), intervalLaps())
	race := p.addRun(2, testNow.Add(-24*time.Hour), easyLaps(10, 250))
	race.WorkoutType = ptr(store.WorkoutTypeRace)
	p.activities[1].WorkoutType = ptr(store.WorkoutTypeRace)

	svc := newTestSyncService(p, st)
	result, err := svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)

	outcome := result.Classification
	assert.True(t, outcome.Deferred)
	require.NotNil(t, outcome.EstimatedZones)
	assert.Equal(t, float64(analysis.DefaultLT1), outcome.EstimatedZones.LT1)
	assert.Equal(t, float64(analysis.DefaultLT2), outcome.EstimatedZones.LT2)
	assert.Equal(t, float64(analysis.DefaultMaxHR), outcome.EstimatedZones.MaxHR)
	assert.Equal(t, 1, outcome.Classified)
	assert.Equal(t, 1, outcome.ByType[analysis.RunTypeRace])

	pending, err := st.ActivitiesNeedingClassification(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].ID)

	zones, err := st.GetHRZones(ctx)
	require.NoError(t, err)
	assert.False(t, zones.Confirmed)

	classifier := NewClassificationService(st, nil, nil)
	cleared, err := classifier.SetZones(ctx, ZoneUpdate{LT1: 150, LT2: 170, MaxHR: 190, Source: analysis.ZoneSourceLactateTest})
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	result, err = svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.False(t, result.Classification.Deferred)
	assert.Equal(t, 2, result.Classification.Classified)
	assert.Equal(t, 1, result.Classification.ByType[analysis.RunTypeIntervals])
	assert.Equal(t, 1, result.Classification.ByType[analysis.RunTypeRace])
}

func TestSync_AuthFailure(t *testing.T) {
	unauthorized := &strava.APIError{StatusCode: 401, Path: "/athlete/activities"}

	tests := []struct {
		name  string
		setup func(p *fakeProvider)
	}{
		{
			name:  "listing",
			setup: func(p *fakeProvider) { p.listErr = unauthorized },
		},
		{
			name: "detail",
			setup: func(p *fakeProvider) {
				p.addRun(1, testNow.Add(-time.Hour), easyLaps(5, 330))
				p.detailErr = unauthorized
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := setupTestStore(t)
			confirmZones(t, st)
			cursor := testNow.Add(-48 * time.Hour)
			require.NoError(t, st.SetCursor(ctx, cursor))

			p := newFakeProvider()
			tt.setup(p)

			_, err := newTestSyncService(p, st).Sync(ctx, SyncOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAuthFailed)
			assert.ErrorIs(t, err, strava.ErrUnauthorized)

			run, err := st.LastSyncRun(ctx)
			require.NoError(t, err)
			assert.Equal(t, OutcomeAuthFailed, run.Outcome)
			assert.NotEmpty(t, run.Error)

			stats, err := st.GetStats(ctx)
			require.NoError(t, err)
			assert.Zero(t, stats.Classified)
		})
	}
}

func TestSync_Window(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	confirmZones(t, st)

	p := newFakeProvider()
	svc := newTestSyncService(p, st)

	_, err := svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(-180*24*time.Hour), p.listAfters[0], "first sync lists the history window")

	start := testNow.Add(-3*time.Hour + 250*time.Millisecond)
	p.addRun(1, start, easyLaps(5, 330))
	result, err := svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, start.Truncate(time.Second), result.Cursor, "cursor is stored to the second")

	_, err = svc.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, start.Truncate(time.Second), p.listAfters[len(p.listAfters)-1])

	_, err = svc.Sync(ctx, SyncOptions{Mode: ModeFull, FullWindow: 30 * 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(-30*24*time.Hour), p.listAfters[len(p.listAfters)-1])

	cursor, err := st.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, start.Truncate(time.Second), cursor, "a full sync never moves the cursor backwards")

	_, err = svc.Sync(ctx, SyncOptions{Mode: "weekly"})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestSync_OnlyOutdoorRunsGetDetail(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	confirmZones(t, st)

	p := newFakeProvider()
	p.addRun(1, testNow.Add(-5*time.Hour), easyLaps(5, 330))
	p.addRun(2, testNow.Add(-4*time.Hour), easyLaps(5, 330))
	p.activities[1].Type, p.activities[1].SportType = "Ride", "Ride"
	p.addRun(3, testNow.Add(-3*time.Hour), easyLaps(5, 330))
	p.activities[2].Trainer = true
	p.addRun(4, testNow.Add(-2*time.Hour), easyLaps(5, 330))
	p.activities[3].Manual = true
	p.activities = append(p.activities, strava.SummaryActivity{ID: 5, Name: "broken", StartDate: testNow.Add(-time.Hour)})

	result, err := newTestSyncService(p, st).Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.ActivitiesSeen)
	assert.Equal(t, 4, result.NewActivities)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []int64{1}, p.detailCalls)
	assert.Equal(t, 1, result.Classification.Classified)
}

func TestSync_StreamMissStillMarksDetail(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	confirmZones(t, st)

	p := newFakeProvider()
	p.addRun(1, testNow.Add(-time.Hour), easyLaps(6, 330))
	delete(p.streams, 1)

	result, err := newTestSyncService(p, st).Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.StreamMisses)
	assert.Zero(t, result.EffortsComputed)
	assert.Empty(t, result.Errors)

	a, err := st.GetActivity(ctx, 1)
	require.NoError(t, err)
	assert.True(t, a.DetailFetched)
}

func TestSync_Summarizer(t *testing.T) {
	ctx := context.Background()

	t.Run("runs after classification", func(t *testing.T) {
		st := setupTestStore(t)
		sum := &fakeSummarizer{}
		result, err := newTestSyncService(newFakeProvider(), st, WithSummarizer(sum)).Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, sum.calls)
		assert.NoError(t, result.SummaryError)
	})

	t.Run("failure is not fatal", func(t *testing.T) {
		st := setupTestStore(t)
		sum := &fakeSummarizer{err: errors.New("disk full")}
		result, err := newTestSyncService(newFakeProvider(), st, WithSummarizer(sum)).Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		assert.EqualError(t, result.SummaryError, "disk full")

		run, err := st.LastSyncRun(ctx)
		require.NoError(t, err)
		assert.Equal(t, OutcomeOK, run.Outcome)
	})
}

func TestSync_CancelledContext(t *testing.T) {
	st := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newFakeProvider()
	p.onList = cancel

	_, err := newTestSyncService(p, st).Sync(ctx, SyncOptions{})
	require.ErrorIs(t, err, context.Canceled)

	run, err := st.LastSyncRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, run.Outcome)
}

func ptr[T any](v T) *T {
	return &v
}
