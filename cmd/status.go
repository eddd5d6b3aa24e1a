package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"trainlog/internal/service"
	"trainlog/internal/store"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what is stored locally and how the last sync went",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			st, err := service.NewQueryService(db).Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st, store.DefaultPath(a.cfg.DataDir))
			return nil
		},
	}
}

func printStatus(w io.Writer, st *service.Status, dbPath string) {
	bold := color.New(color.Bold).SprintFunc()
	s := st.Stats

	fmt.Fprintf(w, "%s %s\n", bold("Database:"), dbPath)
	fmt.Fprintf(w, "%s %s (%s runs, %s with detail, %s classified)\n", bold("Activities:"),
		humanize.Comma(int64(s.Activities)), humanize.Comma(int64(s.Runs)),
		humanize.Comma(int64(s.Detailed)), humanize.Comma(int64(s.Classified)))
	fmt.Fprintf(w, "%s %s\n", bold("Best efforts:"), humanize.Comma(int64(s.BestEfforts)))

	if st.Cursor.IsZero() {
		fmt.Fprintf(w, "%s never synced\n", bold("Cursor:"))
	} else {
		fmt.Fprintf(w, "%s %s (%s)\n", bold("Cursor:"),
			st.Cursor.Local().Format("2006-01-02 15:04"), humanize.Time(st.Cursor))
	}

	if r := st.LastRun; r != nil {
		outcome := r.Outcome
		if outcome != service.OutcomeOK {
			outcome = color.YellowString(outcome)
		}
		took := ""
		if r.FinishedAt != nil {
			took = ", took " + r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s %s %s, %s%s\n", bold("Last sync:"), r.Mode, humanize.Time(r.StartedAt), outcome, took)
		if r.Error != "" {
			fmt.Fprintf(w, "  %s\n", r.Error)
		}
	}

	if z := st.Zones; z != nil {
		state := "confirmed"
		if !z.Confirmed {
			state = color.YellowString("unconfirmed")
		}
		fmt.Fprintf(w, "%s LT1 %.0f, LT2 %.0f, max %.0f (%s, %s)\n", bold("Zones:"), z.LT1, z.LT2, z.MaxHR, z.Source, state)
	} else {
		fmt.Fprintf(w, "%s not set\n", bold("Zones:"))
	}

	if rl := st.RateLimit; rl != nil {
		fmt.Fprintf(w, "%s %d of 15 min, %d daily remaining (%s)\n", bold("Rate limit:"),
			rl.ShortRemaining, rl.DailyRemaining, humanize.Time(rl.At))
	}
}
