package service

import (
	"context"
	"time"

	"trainlog/internal/analysis"
	"trainlog/internal/store"
	"trainlog/internal/strava"
)

// Provider is the activity source. *strava.Client implements it.
type Provider interface {
	ListActivities(ctx context.Context, after time.Time, page, perPage int) ([]strava.SummaryActivity, error)
	GetActivityDetail(ctx context.Context, id int64) (*strava.DetailedActivity, error)
	GetActivityStream(ctx context.Context, id int64) (analysis.Stream, error)
}

// Store is the persistence the services need. *store.Store implements it.
type Store interface {
	UpsertActivity(ctx context.Context, a *store.Activity) (bool, error)
	GetActivity(ctx context.Context, id int64) (*store.Activity, error)
	ListRuns(ctx context.Context, limit int) ([]store.Activity, error)
	ActivitiesMissingDetail(ctx context.Context, limit int) ([]store.Activity, error)
	ActivitiesNeedingClassification(ctx context.Context, limit int, racesOnly bool) ([]store.Activity, error)
	RecentRunsForEasyPace(ctx context.Context, minDistance, maxDistance float64, limit int) ([]store.Activity, error)
	RunMaxHeartrates(ctx context.Context) ([]float64, error)
	MarkDetailFetched(ctx context.Context, id int64) error
	SetClassification(ctx context.Context, id int64, c store.Classification, at time.Time) error
	ClearClassifications(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*store.Stats, error)

	ReplaceLaps(ctx context.Context, activityID int64, laps []store.Lap) error
	GetLaps(ctx context.Context, activityID int64) ([]store.Lap, error)

	UpsertBestEffort(ctx context.Context, e *store.BestEffort) error
	BestEffortsByName(ctx context.Context, name, source string) ([]store.BestEffort, error)
	BestEffortNames(ctx context.Context, activityID int64, source string) (map[string]bool, error)

	GetHRZones(ctx context.Context) (*store.HRZones, error)
	SaveHRZones(ctx context.Context, z *store.HRZones) error

	GetSyncState(ctx context.Context, key string) (string, error)
	SetSyncState(ctx context.Context, key, value string) error
	GetCursor(ctx context.Context) (time.Time, error)
	SetCursor(ctx context.Context, t time.Time) error

	CreateSyncRun(ctx context.Context, r *store.SyncRun) error
	FinishSyncRun(ctx context.Context, r *store.SyncRun) error
	LastSyncRun(ctx context.Context) (*store.SyncRun, error)
}

// rateLimitReporter is implemented by providers that track API headroom
type rateLimitReporter interface {
	RateLimitStatus() (shortRemaining, dailyRemaining int)
}

// Summarizer rebuilds derived views after a sync
type Summarizer interface {
	Summarize(ctx context.Context) error
}
