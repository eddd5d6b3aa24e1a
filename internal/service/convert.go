package service

import (
	"errors"
	"fmt"
	"time"

	"trainlog/internal/analysis"
	"trainlog/internal/store"
	"trainlog/internal/strava"
)

var errUnparseable = errors.New("unparseable record")

// toStoreActivity converts a Strava API activity to a store activity
func toStoreActivity(a strava.SummaryActivity) (*store.Activity, error) {
	if a.ID == 0 || a.Type == "" || a.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: activity %d missing id, type or start date", errUnparseable, a.ID)
	}

	activity := &store.Activity{
		ID:                 a.ID,
		AthleteID:          a.Athlete.ID,
		Name:               a.Name,
		Type:               a.Type,
		SportType:          a.SportType,
		StartDate:          a.StartDate.UTC(),
		StartDateLocal:     a.StartDateLocal,
		Timezone:           a.Timezone,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		ElapsedTime:        a.ElapsedTime,
		TotalElevationGain: a.TotalElevationGain,
		AverageSpeed:       a.AverageSpeed,
		MaxSpeed:           a.MaxSpeed,
		Trainer:            a.Trainer,
		Manual:             a.Manual,
		WorkoutType:        a.WorkoutType,
	}

	if activity.StartDateLocal.IsZero() {
		activity.StartDateLocal = activity.StartDate
	}
	if a.AverageHeartrate > 0 {
		activity.AverageHeartrate = &a.AverageHeartrate
	}
	if a.MaxHeartrate > 0 {
		activity.MaxHeartrate = &a.MaxHeartrate
	}
	if a.AverageCadence > 0 {
		activity.AverageCadence = &a.AverageCadence
	}

	return activity, nil
}

// toStoreLaps converts Strava's 1-based laps to 0-based store laps
func toStoreLaps(activityID int64, laps []strava.Lap) []store.Lap {
	out := make([]store.Lap, 0, len(laps))
	for i, l := range laps {
		lap := store.Lap{
			ActivityID:   activityID,
			LapIndex:     i,
			Distance:     l.Distance,
			ElapsedTime:  l.ElapsedTime,
			MovingTime:   l.MovingTime,
			AverageSpeed: l.AverageSpeed,
			MaxSpeed:     l.MaxSpeed,
			StartIndex:   l.StartIndex,
			EndIndex:     l.EndIndex,
		}
		if l.AverageHeartrate > 0 {
			hr := l.AverageHeartrate
			lap.AverageHeartrate = &hr
		}
		if l.MaxHeartrate > 0 {
			hr := l.MaxHeartrate
			lap.MaxHeartrate = &hr
		}
		out = append(out, lap)
	}
	return out
}

// toStoreBestEfforts keeps the native efforts for known distances. Efforts
// with an unknown name or no time are skipped.
func toStoreBestEfforts(a *store.Activity, efforts []strava.BestEffort) []store.BestEffort {
	out := make([]store.BestEffort, 0, len(efforts))
	for _, e := range efforts {
		if _, err := analysis.LookupDistance(e.Name); err != nil || e.ElapsedTime <= 0 {
			continue
		}
		start := e.StartDate.UTC()
		if start.IsZero() {
			start = a.StartDate
		}
		out = append(out, store.BestEffort{
			ActivityID:  a.ID,
			Name:        e.Name,
			Source:      store.SourceStrava,
			Distance:    e.Distance,
			ElapsedTime: e.ElapsedTime,
			MovingTime:  e.MovingTime,
			StartDate:   start,
			PRRank:      e.PRRank,
			StartIndex:  e.StartIndex,
			EndIndex:    e.EndIndex,
		})
	}
	return out
}

// computedBestEffort converts a stream-derived effort to a store record
func computedBestEffort(a *store.Activity, s analysis.Stream, e analysis.ComputedEffort) store.BestEffort {
	offset := s.Time[e.Segment.StartIndex] - s.Time[0]
	elapsed := e.ElapsedSeconds()
	return store.BestEffort{
		ActivityID:  a.ID,
		Name:        e.Distance.Name,
		Source:      store.SourceComputed,
		Distance:    e.Distance.Meters,
		ElapsedTime: elapsed,
		MovingTime:  elapsed,
		StartDate:   a.StartDate.Add(time.Duration(offset) * time.Second),
		StartIndex:  e.Segment.StartIndex,
		EndIndex:    e.Segment.EndIndex,
	}
}

// toRunSummary converts a stored activity to classifier input
func toRunSummary(a *store.Activity) analysis.RunSummary {
	return analysis.RunSummary{
		Distance:         a.Distance,
		MovingTime:       a.MovingTime,
		ElapsedTime:      a.ElapsedTime,
		AverageHeartrate: a.AverageHeartrate,
		IsRace:           a.IsRace(),
	}
}

func toLapSplits(laps []store.Lap) []analysis.LapSplit {
	out := make([]analysis.LapSplit, len(laps))
	for i, l := range laps {
		out[i] = analysis.LapSplit{
			Distance:    l.Distance,
			MovingTime:  l.MovingTime,
			ElapsedTime: l.ElapsedTime,
		}
	}
	return out
}

func toAnalysisZones(z *store.HRZones) analysis.HRZones {
	return analysis.HRZones{
		LT1:       z.LT1,
		LT2:       z.LT2,
		MaxHR:     z.MaxHR,
		Source:    z.Source,
		Confirmed: z.Confirmed,
	}
}

func toStoreClassification(c analysis.Classification) store.Classification {
	return store.Classification{
		RunType:    string(c.RunType),
		Detail:     c.Detail,
		Confidence: string(c.Confidence),
	}
}

func toEffortRecords(efforts []store.BestEffort) []analysis.EffortRecord {
	out := make([]analysis.EffortRecord, len(efforts))
	for i, e := range efforts {
		out[i] = analysis.EffortRecord{
			ActivityID:  e.ActivityID,
			Name:        e.Name,
			ElapsedTime: e.ElapsedTime,
			MovingTime:  e.MovingTime,
			StartDate:   e.StartDate,
			Source:      e.Source,
		}
	}
	return out
}
