package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trainlog/internal/auth"
	"trainlog/internal/metrics"
	"trainlog/internal/store"
	"trainlog/internal/strava"
)

// SyncMode selects the listing window
type SyncMode string

const (
	ModeIncremental SyncMode = "incremental"
	ModeFull        SyncMode = "full"
)

// Outcomes recorded on the sync run audit row
const (
	OutcomeRunning     = "running"
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeAuthFailed  = "auth_failed"
	OutcomeCancelled   = "cancelled"
	OutcomeFailed      = "failed"
)

// pageSize is the listing page size; a shorter page ends the listing
const pageSize = 100

var (
	// ErrAuthFailed wraps provider or credential failures that need a new login
	ErrAuthFailed = errors.New("strava authorization failed")
	// ErrUnknownMode is returned for a sync mode other than incremental or full
	ErrUnknownMode = errors.New("unknown sync mode")
)

// SyncConfig bounds one sync run
type SyncConfig struct {
	HistoryDays   int           // first-sync window
	BackfillLimit int           // older activities given detail per run
	ClassifyBatch int           // pending activities classified per run
	DetailDelay   time.Duration // gap between detail requests
}

// DefaultSyncConfig returns the standard limits
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		HistoryDays:   180,
		BackfillLimit: 100,
		ClassifyBatch: 200,
		DetailDelay:   time.Second,
	}
}

// SyncOptions selects how much history one sync lists
type SyncOptions struct {
	Mode SyncMode
	// FullWindow is how far back a full sync lists. Zero uses HistoryDays.
	FullWindow time.Duration
}

// BackfillOutcome reports one detail loop. StoppedEarly means the provider
// rate limit ended the loop; the remaining activities are picked up by the
// next sync.
type BackfillOutcome struct {
	Processed    int
	StoppedEarly bool
}

// SyncResult contains the results of a sync operation
type SyncResult struct {
	RunID  string
	Mode   SyncMode
	After  time.Time // listing window start
	Cursor time.Time // cursor after the run

	ActivitiesSeen      int
	NewActivities       int
	Skipped             int  // unparseable listing records
	ListingStoppedEarly bool // rate limited while listing

	NewDetails      BackfillOutcome
	Backfill        BackfillOutcome
	EffortsComputed int
	StreamMisses    int

	Classification ClassificationOutcome
	SummaryError   error

	// Errors holds per-activity failures that did not stop the sync
	Errors []error
}

// RateLimited reports whether any step stopped on the provider rate limit
func (r *SyncResult) RateLimited() bool {
	return r.ListingStoppedEarly || r.NewDetails.StoppedEarly || r.Backfill.StoppedEarly
}

// DetailsFetched is the number of activities given detail this run
func (r *SyncResult) DetailsFetched() int {
	return r.NewDetails.Processed + r.Backfill.Processed
}

// SyncService orchestrates syncing data from Strava
type SyncService struct {
	provider   Provider
	store      Store
	cfg        SyncConfig
	summarizer Summarizer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// SyncOption configures a SyncService
type SyncOption func(*SyncService)

func WithSyncConfig(cfg SyncConfig) SyncOption {
	return func(s *SyncService) { s.cfg = cfg }
}

// WithSummarizer rebuilds derived views at the end of every sync
func WithSummarizer(sum Summarizer) SyncOption {
	return func(s *SyncService) { s.summarizer = sum }
}

func WithMetrics(m *metrics.Metrics) SyncOption {
	return func(s *SyncService) { s.metrics = m }
}

func WithLogger(l *slog.Logger) SyncOption {
	return func(s *SyncService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSyncService creates a new sync service
func NewSyncService(provider Provider, st Store, opts ...SyncOption) *SyncService {
	s := &SyncService{
		provider: provider,
		store:    st,
		cfg:      DefaultSyncConfig(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync lists new activities, fetches their detail, backfills older ones,
// computes missing best efforts and classifies pending runs. Rate limits are
// reported in the result; authorization failures abort with ErrAuthFailed.
func (s *SyncService) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if opts.Mode == "" {
		opts.Mode = ModeIncremental
	}
	if opts.Mode != ModeIncremental && opts.Mode != ModeFull {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}

	started := s.now()
	run := &store.SyncRun{
		ID:        uuid.NewString(),
		Mode:      string(opts.Mode),
		StartedAt: started,
		Outcome:   OutcomeRunning,
	}
	if err := s.store.CreateSyncRun(ctx, run); err != nil {
		return nil, err
	}

	logger := s.logger.With("run_id", run.ID, "mode", string(opts.Mode))
	result := &SyncResult{RunID: run.ID, Mode: opts.Mode}

	err := s.run(ctx, opts, result, logger)

	outcome := syncOutcome(result, err)
	finished := s.now()
	run.FinishedAt = &finished
	run.Outcome = outcome
	run.ActivitiesSeen = result.ActivitiesSeen
	run.NewActivities = result.NewActivities
	run.DetailsFetched = result.DetailsFetched()
	run.EffortsComputed = result.EffortsComputed
	run.Classified = result.Classification.Classified
	run.StreamMisses = result.StreamMisses
	if err != nil {
		run.Error = err.Error()
	}
	// The audit row is written even when ctx was cancelled
	if ferr := s.store.FinishSyncRun(context.WithoutCancel(ctx), run); ferr != nil {
		logger.Warn("recording sync run", "error", ferr)
	}
	s.metrics.ObserveSync(outcome, finished.Sub(started))
	s.recordRateLimit(ctx, finished, logger)

	logger.Info("sync finished",
		"outcome", outcome,
		"activities_seen", result.ActivitiesSeen,
		"new_activities", result.NewActivities,
		"details_fetched", result.DetailsFetched(),
		"efforts_computed", result.EffortsComputed,
		"stream_misses", result.StreamMisses,
		"classified", result.Classification.Classified,
		"errors", len(result.Errors),
	)
	return result, err
}

func (s *SyncService) run(ctx context.Context, opts SyncOptions, result *SyncResult, logger *slog.Logger) error {
	after, cursor, err := s.window(ctx, opts)
	if err != nil {
		return err
	}
	result.After = after
	result.Cursor = cursor

	// Phase 1: list and store activity summaries
	newRuns, err := s.listActivities(ctx, after, cursor, result, logger)
	if err != nil {
		return err
	}

	// Phase 2: detail for newly seen runs
	pacer := newPacer(s.cfg.DetailDelay)
	attempted := make(map[int64]bool)
	var detailed []int64
	result.NewDetails, detailed, err = s.fetchDetails(ctx, pacer, newRuns, attempted, result, logger)
	if err != nil {
		return err
	}

	// Phase 3: historical backfill, skipped once the rate limit is hit
	if result.ListingStoppedEarly || result.NewDetails.StoppedEarly {
		logger.Info("skipping historical backfill", "reason", "rate limited")
	} else {
		pending, err := s.store.ActivitiesMissingDetail(ctx, s.cfg.BackfillLimit)
		if err != nil {
			return fmt.Errorf("listing activities missing detail: %w", err)
		}
		pending = withoutAttempted(pending, attempted)
		if len(pending) > 0 {
			logger.Info("backfilling detail", "activities", len(pending))
		}
		result.Backfill, _, err = s.fetchDetails(ctx, pacer, pending, attempted, result, logger)
		if err != nil {
			return err
		}
	}

	// Phase 4: classification
	classifier := NewClassificationService(s.store, logger, s.metrics)
	classifier.now = s.now
	outcome, err := classifier.ClassifyPending(ctx, detailed, s.cfg.ClassifyBatch)
	result.Classification = outcome
	result.Errors = append(result.Errors, outcome.Errors...)
	if err != nil {
		return fmt.Errorf("classifying runs: %w", err)
	}
	if outcome.Deferred {
		logger.Info("classification deferred until hr zones are confirmed",
			"lt1", outcome.EstimatedZones.LT1,
			"lt2", outcome.EstimatedZones.LT2,
			"max_hr", outcome.EstimatedZones.MaxHR,
		)
	}

	// Phase 5: derived views
	if s.summarizer != nil {
		if err := s.summarizer.Summarize(ctx); err != nil {
			s.metrics.IncSummaryErrors()
			logger.Warn("summary export failed", "error", err)
			result.SummaryError = err
		}
	}

	return nil
}

// window returns the listing start and the stored cursor
func (s *SyncService) window(ctx context.Context, opts SyncOptions) (after, cursor time.Time, err error) {
	cursor, err = s.store.GetCursor(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("reading sync cursor: %w", err)
	}

	history := time.Duration(s.cfg.HistoryDays) * 24 * time.Hour
	switch {
	case opts.Mode == ModeFull:
		w := opts.FullWindow
		if w <= 0 {
			w = history
		}
		return s.now().Add(-w), cursor, nil
	case !cursor.IsZero():
		return cursor, cursor, nil
	default:
		return s.now().Add(-history), cursor, nil
	}
}

// listActivities pages through the provider and upserts every summary. It
// returns the newly seen outdoor runs. The cursor advances only after every
// page is stored.
func (s *SyncService) listActivities(ctx context.Context, after, cursor time.Time, result *SyncResult, logger *slog.Logger) ([]store.Activity, error) {
	var newRuns []store.Activity
	latest := cursor

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		activities, err := s.provider.ListActivities(ctx, after, page, pageSize)
		if err != nil {
			if errors.Is(err, strava.ErrRateLimited) {
				result.ListingStoppedEarly = true
				logger.Warn("rate limited while listing activities", "page", page)
				return newRuns, nil
			}
			if isAuthError(err) {
				return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
			}
			return nil, fmt.Errorf("listing activities: %w", err)
		}

		result.ActivitiesSeen += len(activities)
		pageNew := 0
		for _, sa := range activities {
			a, err := toStoreActivity(sa)
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, err)
				logger.Debug("skipping activity", "activity_id", sa.ID, "error", err)
				continue
			}

			isNew, err := s.store.UpsertActivity(ctx, a)
			if err != nil {
				return nil, fmt.Errorf("storing activity %d: %w", a.ID, err)
			}
			if a.StartDate.After(latest) {
				latest = a.StartDate
			}
			if isNew {
				pageNew++
				if a.IsOutdoorRun() {
					newRuns = append(newRuns, *a)
				}
			}
		}
		result.NewActivities += pageNew
		s.metrics.AddActivities(len(activities), pageNew)
		logger.Debug("listed activities", "page", page, "activities", len(activities), "new", pageNew)

		if len(activities) < pageSize {
			break // Last page
		}
	}

	latest = latest.Truncate(time.Second)
	if latest.After(cursor) {
		if err := s.store.SetCursor(ctx, latest); err != nil {
			return nil, fmt.Errorf("saving sync cursor: %w", err)
		}
		result.Cursor = latest
	}
	return newRuns, nil
}

// recordRateLimit keeps the provider's last known headroom for status
func (s *SyncService) recordRateLimit(ctx context.Context, at time.Time, logger *slog.Logger) {
	rl, ok := s.provider.(rateLimitReporter)
	if !ok {
		return
	}
	short, daily := rl.RateLimitStatus()
	v := fmt.Sprintf("%d,%d,%s", short, daily, at.UTC().Format(time.RFC3339))
	if err := s.store.SetSyncState(context.WithoutCancel(ctx), KeyRateLimit, v); err != nil {
		logger.Warn("recording rate limit", "error", err)
	}
}

func syncOutcome(result *SyncResult, err error) string {
	switch {
	case err == nil && result.RateLimited():
		return OutcomeRateLimited
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrAuthFailed):
		return OutcomeAuthFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, strava.ErrUnauthorized) || errors.Is(err, auth.ErrReauthRequired)
}
