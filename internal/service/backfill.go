package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"trainlog/internal/analysis"
	"trainlog/internal/store"
	"trainlog/internal/strava"
)

// newPacer spaces detail requests by delay. The first request goes out
// immediately.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// fetchDetails runs the detail unit for each activity in order. A rate limit
// stops the loop without error; an authorization failure aborts the sync.
// Returns the ids that completed.
func (s *SyncService) fetchDetails(ctx context.Context, pacer *rate.Limiter, activities []store.Activity, attempted map[int64]bool, result *SyncResult, logger *slog.Logger) (BackfillOutcome, []int64, error) {
	var out BackfillOutcome
	var done []int64

	for i := range activities {
		a := &activities[i]
		if err := ctx.Err(); err != nil {
			return out, done, err
		}
		if err := pacer.Wait(ctx); err != nil {
			return out, done, err
		}
		attempted[a.ID] = true

		err := s.fetchDetail(ctx, a, result, logger)
		switch {
		case err == nil:
			out.Processed++
			done = append(done, a.ID)
		case errors.Is(err, strava.ErrRateLimited):
			out.StoppedEarly = true
			logger.Warn("rate limited, stopping detail fetch",
				"processed", out.Processed,
				"remaining", len(activities)-i,
			)
			return out, done, nil
		case isAuthError(err):
			return out, done, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return out, done, err
		default:
			result.Errors = append(result.Errors, fmt.Errorf("activity %d: %w", a.ID, err))
			logger.Warn("fetching activity detail", "activity_id", a.ID, "error", err)
		}
	}
	return out, done, nil
}

// fetchDetail stores laps and native best efforts for one activity, computes
// the best efforts Strava did not report, then marks the detail fetched.
// Stream problems only count as misses.
func (s *SyncService) fetchDetail(ctx context.Context, a *store.Activity, result *SyncResult, logger *slog.Logger) error {
	detail, err := s.provider.GetActivityDetail(ctx, a.ID)
	if err != nil {
		return err
	}

	if err := s.store.ReplaceLaps(ctx, a.ID, toStoreLaps(a.ID, detail.Laps)); err != nil {
		return err
	}

	skip := make(map[string]bool)
	for _, e := range toStoreBestEfforts(a, detail.BestEfforts) {
		if err := s.store.UpsertBestEffort(ctx, &e); err != nil {
			return err
		}
		skip[e.Name] = true
	}

	if needsStream(a.Distance, skip) {
		n, err := s.computeEfforts(ctx, a, skip, logger)
		switch {
		case isStreamMiss(err):
			result.StreamMisses++
			s.metrics.IncStreamMisses()
			logger.Debug("no usable stream", "activity_id", a.ID, "error", err)
		case err != nil:
			return err
		default:
			result.EffortsComputed += n
			s.metrics.AddEffortsComputed(n)
		}
	}

	if err := s.store.MarkDetailFetched(ctx, a.ID); err != nil {
		return err
	}
	s.metrics.IncDetailsFetched()
	return nil
}

// computeEfforts fetches the stream and stores computed best efforts for the
// distances in no native record.
func (s *SyncService) computeEfforts(ctx context.Context, a *store.Activity, skip map[string]bool, logger *slog.Logger) (int, error) {
	stream, err := s.provider.GetActivityStream(ctx, a.ID)
	if err != nil {
		return 0, err
	}

	efforts, err := analysis.ComputeBestEfforts(stream, a.Distance, skip)
	if err != nil {
		return 0, err
	}

	for _, e := range efforts {
		be := computedBestEffort(a, stream, e)
		if err := s.store.UpsertBestEffort(ctx, &be); err != nil {
			return 0, fmt.Errorf("storing computed %s: %w", be.Name, err)
		}
	}
	logger.Debug("computed best efforts", "activity_id", a.ID, "efforts", len(efforts))
	return len(efforts), nil
}

// isStreamMiss reports whether err only means no best efforts can be
// computed for the activity.
func isStreamMiss(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, strava.ErrStreamUnavailable) || errors.Is(err, analysis.ErrMalformedStream) {
		return true
	}
	var apiErr *strava.APIError
	return errors.As(err, &apiErr) && !errors.Is(err, strava.ErrRateLimited) && !errors.Is(err, strava.ErrUnauthorized)
}

// needsStream reports whether some eligible distance lacks a native effort
func needsStream(distance float64, native map[string]bool) bool {
	for _, d := range analysis.EffortTargets(distance) {
		if !native[d.Name] {
			return true
		}
	}
	return false
}

func withoutAttempted(activities []store.Activity, attempted map[int64]bool) []store.Activity {
	out := activities[:0]
	for _, a := range activities {
		if !attempted[a.ID] {
			out = append(out, a)
		}
	}
	return out
}
