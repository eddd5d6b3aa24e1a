package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trainlog/internal/analysis"
	"trainlog/internal/metrics"
	"trainlog/internal/store"
)

var (
	// ErrZonesUnconfirmed is returned by operations that need confirmed zones
	ErrZonesUnconfirmed = errors.New("hr zones are not confirmed: run 'trainlog zones set'")
	// ErrInvalidZones is returned for thresholds that are not ordered
	ErrInvalidZones = errors.New("invalid hr zones")
)

// allRows is the store limit meaning no limit
const allRows = -1

// ClassificationOutcome reports one classification pass
type ClassificationOutcome struct {
	Classified int
	ByType     map[analysis.RunType]int
	// Deferred is set when zones are unconfirmed; only race-flagged runs
	// were classified.
	Deferred       bool
	EstimatedZones *analysis.HRZones
	// EasyPace is the reference used, 0 when there was none
	EasyPace float64
	Errors   []error
}

// ZoneUpdate is a user-supplied zone record
type ZoneUpdate struct {
	LT1    float64
	LT2    float64
	MaxHR  float64
	Source string
}

// ClassificationService owns HR zones and the run type of stored activities
type ClassificationService struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewClassificationService creates a classification service. logger and m
// may be nil.
func NewClassificationService(st Store, logger *slog.Logger, m *metrics.Metrics) *ClassificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassificationService{store: st, metrics: m, logger: logger, now: time.Now}
}

// Zones returns the stored zones, creating an unconfirmed estimate from the
// run history on first use.
func (c *ClassificationService) Zones(ctx context.Context) (analysis.HRZones, error) {
	z, err := c.store.GetHRZones(ctx)
	if err == nil {
		return toAnalysisZones(z), nil
	}
	if !errors.Is(err, store.ErrNoZones) {
		return analysis.HRZones{}, err
	}

	maxHRs, err := c.store.RunMaxHeartrates(ctx)
	if err != nil {
		return analysis.HRZones{}, err
	}
	est := analysis.EstimateZones(maxHRs)
	if err := c.store.SaveHRZones(ctx, &store.HRZones{
		LT1:       est.LT1,
		LT2:       est.LT2,
		MaxHR:     est.MaxHR,
		Source:    est.Source,
		Confirmed: false,
		UpdatedAt: c.now(),
	}); err != nil {
		return analysis.HRZones{}, err
	}
	c.logger.Info("estimated hr zones", "lt1", est.LT1, "lt2", est.LT2, "max_hr", est.MaxHR, "samples", len(maxHRs))
	return est, nil
}

// SetZones stores confirmed zones and clears every run type so the next
// pass classifies against them. Returns the number of cleared activities.
func (c *ClassificationService) SetZones(ctx context.Context, u ZoneUpdate) (int64, error) {
	if u.LT1 <= 0 || u.LT1 >= u.LT2 || u.LT2 >= u.MaxHR {
		return 0, fmt.Errorf("%w: need 0 < lt1 < lt2 < max, got %.0f/%.0f/%.0f", ErrInvalidZones, u.LT1, u.LT2, u.MaxHR)
	}
	switch u.Source {
	case "":
		u.Source = analysis.ZoneSourceManual
	case analysis.ZoneSourceLactateTest, analysis.ZoneSourceManual, analysis.ZoneSourceEstimated:
	default:
		return 0, fmt.Errorf("%w: unknown source %q", ErrInvalidZones, u.Source)
	}

	if err := c.store.SaveHRZones(ctx, &store.HRZones{
		LT1:       u.LT1,
		LT2:       u.LT2,
		MaxHR:     u.MaxHR,
		Source:    u.Source,
		Confirmed: true,
		UpdatedAt: c.now(),
	}); err != nil {
		return 0, err
	}
	return c.store.ClearClassifications(ctx)
}

// EasyPace returns the easy pace reference in seconds per km, 0 when too
// few qualifying runs exist.
func (c *ClassificationService) EasyPace(ctx context.Context) (float64, error) {
	activities, err := c.store.RecentRunsForEasyPace(ctx, analysis.EasyPaceMinDistance, analysis.EasyPaceMaxDistance, analysis.EasyPaceRecentRuns)
	if err != nil {
		return 0, err
	}
	runs := make([]analysis.RunPace, len(activities))
	for i, a := range activities {
		runs[i] = analysis.RunPace{Distance: a.Distance, MovingTime: a.MovingTime}
	}
	pace, ok := analysis.EasyPace(runs)
	if !ok {
		return 0, nil
	}
	return pace, nil
}

// ClassifyPending classifies the activities in first, then up to batch
// more activities without a run type. With unconfirmed zones only
// race-flagged runs are classified and the outcome is Deferred.
func (c *ClassificationService) ClassifyPending(ctx context.Context, first []int64, batch int) (ClassificationOutcome, error) {
	out := ClassificationOutcome{ByType: make(map[analysis.RunType]int)}

	zones, err := c.Zones(ctx)
	if err != nil {
		return out, fmt.Errorf("loading hr zones: %w", err)
	}

	if !zones.Confirmed {
		out.Deferred = true
		out.EstimatedZones = &zones
		races, err := c.store.ActivitiesNeedingClassification(ctx, batch, true)
		if err != nil {
			return out, err
		}
		return out, c.classifyAll(ctx, races, zones, 0, &out)
	}

	out.EasyPace, err = c.EasyPace(ctx)
	if err != nil {
		return out, fmt.Errorf("computing easy pace: %w", err)
	}

	seen := make(map[int64]bool, len(first))
	var queue []store.Activity
	for _, id := range first {
		a, err := c.store.GetActivity(ctx, id)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Errorf("activity %d: %w", id, err))
			continue
		}
		seen[id] = true
		queue = append(queue, *a)
	}

	pending, err := c.store.ActivitiesNeedingClassification(ctx, batch, false)
	if err != nil {
		return out, err
	}
	for _, a := range pending {
		if !seen[a.ID] {
			queue = append(queue, a)
		}
	}

	return out, c.classifyAll(ctx, queue, zones, out.EasyPace, &out)
}

// Reclassify clears every run type and classifies all detailed runs again.
// Zones must be confirmed.
func (c *ClassificationService) Reclassify(ctx context.Context) (ClassificationOutcome, error) {
	zones, err := c.Zones(ctx)
	if err != nil {
		return ClassificationOutcome{}, err
	}
	if !zones.Confirmed {
		return ClassificationOutcome{}, ErrZonesUnconfirmed
	}

	if _, err := c.store.ClearClassifications(ctx); err != nil {
		return ClassificationOutcome{}, err
	}
	return c.ClassifyPending(ctx, nil, allRows)
}

func (c *ClassificationService) classifyAll(ctx context.Context, activities []store.Activity, zones analysis.HRZones, easyPace float64, out *ClassificationOutcome) error {
	for i := range activities {
		if err := ctx.Err(); err != nil {
			return err
		}
		a := &activities[i]

		result, err := c.classify(ctx, a, zones, easyPace)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Errorf("classifying activity %d: %w", a.ID, err))
			continue
		}
		out.Classified++
		out.ByType[result.RunType]++
		c.metrics.IncClassified(string(result.RunType))
		c.logger.Debug("classified run",
			"activity_id", a.ID,
			"run_type", string(result.RunType),
			"detail", result.DetailString(),
			"confidence", string(result.Confidence),
		)
	}
	return nil
}

func (c *ClassificationService) classify(ctx context.Context, a *store.Activity, zones analysis.HRZones, easyPace float64) (analysis.Classification, error) {
	laps, err := c.store.GetLaps(ctx, a.ID)
	if err != nil {
		return analysis.Classification{}, err
	}

	result := analysis.Classify(analysis.ClassifyInput{
		Activity: toRunSummary(a),
		Laps:     toLapSplits(laps),
		Zones:    zones,
		EasyPace: easyPace,
	})

	if err := c.store.SetClassification(ctx, a.ID, toStoreClassification(result), c.now()); err != nil {
		return analysis.Classification{}, err
	}
	return result, nil
}
