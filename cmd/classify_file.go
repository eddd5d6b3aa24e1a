package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trainlog/internal/analysis"
	"trainlog/internal/fitfile"
	"trainlog/internal/service"
	"trainlog/internal/store"
)

func newClassifyFileCmd(a *app) *cobra.Command {
	var race bool

	cmd := &cobra.Command{
		Use:   "classify-file <activity.fit>",
		Short: "Label a FIT file and find its best efforts without uploading it",
		Long: `Decode a FIT activity from a watch, classify it with your stored zones
and easy pace, and search its record stream for best efforts. Nothing is
written to the database.

Examples:
  trainlog classify-file ~/Downloads/morning-run.fit
  trainlog classify-file --race parkrun.fit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := fitfile.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !act.IsRun() {
				return fmt.Errorf("%s is a %s activity, only runs are classified", args[0], act.Sport)
			}

			zones, easyPace, err := a.classifierReference(cmd)
			if err != nil {
				return err
			}

			summary := act.Summary
			summary.IsRace = race
			c := analysis.Classify(analysis.ClassifyInput{
				Activity: summary,
				Laps:     act.Laps,
				Zones:    zones,
				EasyPace: easyPace,
			})

			efforts, err := analysis.ComputeBestEfforts(act.Stream, summary.Distance, nil)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			writeFileSummary(w, act, c, zones)
			if len(efforts) == 0 {
				fmt.Fprintln(w, "No best efforts found")
				return nil
			}
			return writeComputedEfforts(w, efforts)
		},
	}

	cmd.Flags().BoolVar(&race, "race", false, "Treat the activity as a race")
	return cmd
}

// classifierReference loads stored zones and easy pace, falling back to the
// default zones and no easy pace when the database has none.
func (a *app) classifierReference(cmd *cobra.Command) (analysis.HRZones, float64, error) {
	db, err := a.openStore()
	if err != nil {
		return analysis.HRZones{}, 0, err
	}
	defer db.Close()

	zones := analysis.DefaultZones()
	stored, err := db.GetHRZones(cmd.Context())
	switch {
	case err == nil:
		zones = analysis.HRZones{
			LT1:       stored.LT1,
			LT2:       stored.LT2,
			MaxHR:     stored.MaxHR,
			Source:    stored.Source,
			Confirmed: stored.Confirmed,
		}
	case !errors.Is(err, store.ErrNoZones):
		return analysis.HRZones{}, 0, err
	}

	easyPace, err := service.NewClassificationService(db, a.logger, nil).EasyPace(cmd.Context())
	if err != nil {
		return analysis.HRZones{}, 0, err
	}
	return zones, easyPace, nil
}

func writeFileSummary(w io.Writer, act *fitfile.Activity, c analysis.Classification, zones analysis.HRZones) {
	s := act.Summary
	fmt.Fprintf(w, "%s  %s in %s (%s)\n",
		act.StartTime.Local().Format("2006-01-02 15:04"),
		formatDistance(s.Distance),
		analysis.FormatDuration(s.MovingTime),
		formatPace(s.Pace()))
	if s.AverageHeartrate != nil {
		fmt.Fprintf(w, "Heart rate avg %.0f, max %.0f (zone %d)\n",
			*s.AverageHeartrate, act.MaxHeartrate, zones.ZoneFor(*s.AverageHeartrate))
	}

	label := coloredRunType(string(c.RunType))
	if d := c.DetailString(); d != "" {
		label += " " + d
	}
	fmt.Fprintf(w, "Type: %s (%s confidence, %d laps)\n", label, c.Confidence, len(act.Laps))
	if !zones.Confirmed {
		fmt.Fprintln(w, mutedColor.Sprint("Zones are not confirmed, the label uses estimated thresholds"))
	}
}

func writeComputedEfforts(w io.Writer, efforts []analysis.ComputedEffort) error {
	rows := make([][]string, len(efforts))
	for i, e := range efforts {
		rows[i] = []string{
			e.Distance.Name,
			analysis.FormatDuration(e.ElapsedSeconds()),
			formatPace(e.Segment.Pace(e.Distance.Meters)),
		}
	}
	return writeTable(w, []string{"Distance", "Time", "Pace"}, rows)
}
