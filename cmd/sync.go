package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"trainlog/internal/export"
	"trainlog/internal/metrics"
	"trainlog/internal/service"
)

func newSyncCmd(a *app) *cobra.Command {
	var full bool
	var days int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch new activities, backfill detail and classify runs",
		Long: `Fetch activities started since the last sync, store their laps and best
efforts, compute the best efforts Strava did not report, and classify
pending runs.

Detail for older activities is backfilled a batch at a time. When the
Strava rate limit is reached the sync stops cleanly and the next run picks
up where it left off.

Examples:
  # Incremental sync
  trainlog sync

  # Re-list the last year, keeping stored data
  trainlog sync --full --days 365`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			m := metrics.New()
			if addr := a.cfg.Metrics.Addr; addr != "" {
				serveCtx, stop := context.WithCancel(ctx)
				defer stop()
				go func() {
					if err := metrics.Serve(serveCtx, addr, m.Handler(), a.logger); err != nil {
						a.logger.Warn("metrics server stopped", "error", err)
					}
				}()
			}

			client, err := a.newStravaClient(ctx, db, m)
			if err != nil {
				return err
			}

			opts := []service.SyncOption{
				service.WithSyncConfig(service.SyncConfig{
					HistoryDays:   a.cfg.Sync.HistoryDays,
					BackfillLimit: a.cfg.Sync.BackfillLimit,
					ClassifyBatch: a.cfg.Sync.ClassifyBatch,
					DetailDelay:   a.cfg.Sync.DetailDelay,
				}),
				service.WithMetrics(m),
				service.WithLogger(a.logger),
			}
			if path := a.cfg.Export.ParquetPath; path != "" {
				opts = append(opts, service.WithSummarizer(export.NewParquetSummarizer(db, path)))
			}

			syncOpts := service.SyncOptions{Mode: service.ModeIncremental}
			if full {
				syncOpts.Mode = service.ModeFull
				syncOpts.FullWindow = time.Duration(days) * 24 * time.Hour
			}

			result, err := service.NewSyncService(client, db, opts...).Sync(ctx, syncOpts)
			if errors.Is(err, service.ErrAuthFailed) {
				return fmt.Errorf("%w\nrun 'trainlog login' to reconnect your Strava account", err)
			}
			if err != nil {
				return err
			}

			printSyncResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "List the whole history window instead of starting at the cursor")
	cmd.Flags().IntVar(&days, "days", 0, "History window in days for --full (default sync.history_days)")
	return cmd
}

func printSyncResult(w io.Writer, r *service.SyncResult) {
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintf(w, "Listed %d activities since %s, %d new\n",
		r.ActivitiesSeen, r.After.Local().Format("2006-01-02 15:04"), r.NewActivities)
	if r.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d unreadable activities\n", r.Skipped)
	}
	fmt.Fprintf(w, "Fetched detail for %d activities (%d new, %d backfilled)\n",
		r.DetailsFetched(), r.NewDetails.Processed, r.Backfill.Processed)
	fmt.Fprintf(w, "Computed %d best efforts", r.EffortsComputed)
	if r.StreamMisses > 0 {
		fmt.Fprintf(w, ", %d activities had no usable stream", r.StreamMisses)
	}
	fmt.Fprintln(w)

	c := r.Classification
	fmt.Fprintf(w, "Classified %d runs\n", c.Classified)
	for _, rt := range sortedRunTypes(c.ByType) {
		fmt.Fprintf(w, "  %-12s %d\n", runTypeLabel(string(rt)), c.ByType[rt])
	}
	if c.Deferred && c.EstimatedZones != nil {
		fmt.Fprintln(w, yellow(fmt.Sprintf(
			"Classification is waiting for confirmed HR zones. Estimated: LT1 %.0f, LT2 %.0f, max %.0f.",
			c.EstimatedZones.LT1, c.EstimatedZones.LT2, c.EstimatedZones.MaxHR)))
		fmt.Fprintln(w, yellow("Run 'trainlog zones set --lt1 N --lt2 N --max N' to confirm them."))
	}

	if r.RateLimited() {
		fmt.Fprintln(w, yellow("Strava rate limit reached; run sync again later to continue."))
	}
	if r.SummaryError != nil {
		fmt.Fprintln(w, yellow(fmt.Sprintf("Summary export failed: %v", r.SummaryError)))
	}
	if n := len(r.Errors); n > 0 {
		fmt.Fprintln(w, yellow(fmt.Sprintf("%d activities failed, see the log for details", n)))
	}
	if !r.RateLimited() && len(r.Errors) == 0 {
		fmt.Fprintln(w, green("Sync complete"))
	}
}
