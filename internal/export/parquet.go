// Package export writes derived views of the activity database using
// github.com/parquet-go/parquet-go.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"trainlog/internal/analysis"
	"trainlog/internal/store"
)

// allRuns is the store limit meaning no limit
const allRuns = -1

// RunLister lists stored outdoor runs, newest first
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Activity, error)
}

// RunRow is one outdoor run in the activities snapshot
type RunRow struct {
	ActivityID int64     `parquet:"activity_id,snappy"`
	Name       string    `parquet:"name,snappy"`
	StartDate  time.Time `parquet:"start_date,snappy"`

	// DistanceM is meters, MovingTimeS seconds, PaceSecPerKm 0 without time
	DistanceM    float64 `parquet:"distance_m,snappy"`
	MovingTimeS  int32   `parquet:"moving_time_s,snappy"`
	PaceSecPerKm float64 `parquet:"pace_sec_per_km,snappy"`

	AverageHeartrate *float64 `parquet:"average_heartrate,optional,snappy"`
	MaxHeartrate     *float64 `parquet:"max_heartrate,optional,snappy"`
	Race             bool     `parquet:"race,snappy"`

	// Classification columns are null until the run is classified
	RunType       *string    `parquet:"run_type,optional,snappy"`
	RunTypeDetail *string    `parquet:"run_type_detail,optional,snappy"`
	Confidence    *string    `parquet:"confidence,optional,snappy"`
	ClassifiedAt  *time.Time `parquet:"classified_at,optional,snappy"`
}

// ParquetSummarizer rewrites a Parquet snapshot of every stored run. It
// implements the sync summarizer hook.
type ParquetSummarizer struct {
	runs RunLister
	path string
}

// NewParquetSummarizer creates a summarizer writing to path
func NewParquetSummarizer(runs RunLister, path string) *ParquetSummarizer {
	return &ParquetSummarizer{runs: runs, path: path}
}

// Path returns the snapshot file path
func (p *ParquetSummarizer) Path() string {
	return p.path
}

// Summarize replaces the snapshot. Readers never see a partial file.
func (p *ParquetSummarizer) Summarize(ctx context.Context) error {
	activities, err := p.runs.ListRuns(ctx, allRuns)
	if err != nil {
		return fmt.Errorf("listing runs for export: %w", err)
	}
	return WriteRuns(ConvertActivities(activities), p.path)
}

// ConvertActivities converts stored activities to snapshot rows
func ConvertActivities(activities []store.Activity) []RunRow {
	rows := make([]RunRow, len(activities))
	for i := range activities {
		a := &activities[i]
		rows[i] = RunRow{
			ActivityID:       a.ID,
			Name:             a.Name,
			StartDate:        a.StartDate,
			DistanceM:        a.Distance,
			MovingTimeS:      int32(a.MovingTime),
			PaceSecPerKm:     analysis.CalculatePacePerKm(a.Distance, float64(a.MovingTime)),
			AverageHeartrate: a.AverageHeartrate,
			MaxHeartrate:     a.MaxHeartrate,
			Race:             a.IsRace(),
			RunType:          a.RunType,
			RunTypeDetail:    a.RunTypeDetail,
			Confidence:       a.RunTypeConfidence,
			ClassifiedAt:     a.ClassifiedAt,
		}
	}
	return rows
}

// WriteRuns writes rows to outputPath through a temporary file in the same
// directory, renamed into place once complete.
func WriteRuns(rows []RunRow, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	writer := parquet.NewGenericWriter[RunRow](tmp)
	if _, err := writer.Write(rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return fmt.Errorf("failed to move parquet file into place: %w", err)
	}
	return nil
}
