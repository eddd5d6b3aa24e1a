package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"trainlog/internal/analysis"
	"trainlog/internal/service"
	"trainlog/internal/store"
)

func newBestsCmd(a *app) *cobra.Command {
	var distance string
	var limit int

	cmd := &cobra.Command{
		Use:   "bests",
		Short: "Rank best efforts across your runs",
		Long: `Show the fastest efforts for one standard distance, or the all-time best
of every distance when --distance is omitted.

Strava's own best efforts are merged with efforts computed from the GPS
stream; a computed effort is only shown for runs Strava has no record for.

Distances: 400m, 1/2 mile, 1k, 1 mile, 2 mile, 5k, 10k, 15k, 10 mile, 20k,
Half-Marathon, 30k, Marathon.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			q := service.NewQueryService(db)
			if distance == "" {
				bests, err := q.AllTimeBests(ctx)
				if err != nil {
					return err
				}
				return writeBests(cmd.OutOrStdout(), bests, true)
			}

			if _, err := analysis.LookupDistance(distance); err != nil {
				return err
			}
			bests, err := q.BestEfforts(ctx, distance, limit)
			if err != nil {
				return err
			}
			if len(bests) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s efforts yet. Run 'trainlog sync' first.\n", distance)
				return nil
			}
			return writeBests(cmd.OutOrStdout(), bests, false)
		},
	}

	cmd.Flags().StringVarP(&distance, "distance", "d", "", "Distance to rank, e.g. 5k or \"1 mile\"")
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Number of efforts to show")
	return cmd
}

func writeBests(w io.Writer, bests []service.RankedEffort, allTime bool) error {
	first := "Rank"
	if allTime {
		first = "Distance"
	}
	headers := []string{first, "Time", "Pace", "Date", "Activity", "Source"}

	rows := make([][]string, 0, len(bests))
	for _, b := range bests {
		lead := strconv.Itoa(b.Rank)
		if allTime {
			lead = b.Distance.Name
		}
		source := "strava"
		if b.Source == store.SourceComputed {
			source = mutedColor.Sprint("computed")
		}
		rows = append(rows, []string{
			lead,
			analysis.FormatDuration(b.ElapsedTime),
			formatPace(b.Pace),
			b.StartDate.Local().Format("2006-01-02"),
			b.ActivityName,
			source,
		})
	}
	return writeTable(w, headers, rows)
}
