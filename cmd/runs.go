package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trainlog/internal/analysis"
	"trainlog/internal/service"
	"trainlog/internal/store"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs with their labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := service.NewQueryService(db).Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs yet. Run 'trainlog sync' first.")
				return nil
			}
			return writeRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of runs to show")
	return cmd
}

func writeRuns(w io.Writer, runs []store.Activity) error {
	headers := []string{"Date", "Name", "Distance", "Time", "Pace", "HR", "Type", "Detail"}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		hr := "-"
		if r.AverageHeartrate != nil {
			hr = fmt.Sprintf("%.0f", *r.AverageHeartrate)
		}
		runType := deref(r.RunType)
		if runType == "" && !r.DetailFetched {
			runType = "pending"
		}
		rows = append(rows, []string{
			r.StartDateLocal.Format("2006-01-02"),
			r.Name,
			formatDistance(r.Distance),
			analysis.FormatDuration(r.MovingTime),
			formatPace(analysis.CalculatePacePerKm(r.Distance, float64(r.MovingTime))),
			hr,
			coloredRunType(runType),
			deref(r.RunTypeDetail),
		})
	}
	return writeTable(w, headers, rows)
}
