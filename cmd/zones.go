package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"trainlog/internal/analysis"
	"trainlog/internal/service"
)

func newZonesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Show or set heart rate zones",
		Long: `Heart rate zones drive the classifier. Until zones are confirmed with
'zones set' only race-flagged runs are classified; the rest wait.`,
	}
	cmd.AddCommand(newZonesShowCmd(a), newZonesSetCmd(a))
	return cmd
}

func newZonesShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current zones, estimating them if none are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			zones, err := service.NewClassificationService(db, a.logger, nil).Zones(cmd.Context())
			if err != nil {
				return err
			}
			return writeZones(cmd.OutOrStdout(), zones)
		},
	}
}

func newZonesSetCmd(a *app) *cobra.Command {
	var u service.ZoneUpdate

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Confirm zones from a lactate test or your own numbers",
		Long: `Store confirmed heart rate zones. Every stored run type is cleared and
runs are classified again on the next sync.

Examples:
  trainlog zones set --lt1 152 --lt2 171 --max 192 --source lactate_test`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			cleared, err := service.NewClassificationService(db, a.logger, nil).SetZones(cmd.Context(), u)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, color.GreenString("Zones saved: LT1 %.0f, LT2 %.0f, max %.0f", u.LT1, u.LT2, u.MaxHR))
			if cleared > 0 {
				fmt.Fprintf(w, "Cleared %d run types, run 'trainlog sync' or 'trainlog reclassify' to label them again\n", cleared)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&u.LT1, "lt1", 0, "Aerobic threshold in bpm")
	cmd.Flags().Float64Var(&u.LT2, "lt2", 0, "Lactate threshold in bpm")
	cmd.Flags().Float64Var(&u.MaxHR, "max", 0, "Maximum heart rate in bpm")
	cmd.Flags().StringVar(&u.Source, "source", analysis.ZoneSourceManual, "Where the numbers come from: lactate_test or manual")
	for _, name := range []string{"lt1", "lt2", "max"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func writeZones(w io.Writer, z analysis.HRZones) error {
	state := color.GreenString("confirmed")
	if !z.Confirmed {
		state = color.YellowString("unconfirmed")
	}
	fmt.Fprintf(w, "Zones (%s, %s)\n", z.Source, state)

	bounds := []struct {
		zone   string
		lo, hi float64
	}{
		{"Z1 recovery", 0, z.LT1 * 0.88},
		{"Z2 easy", z.LT1 * 0.88, z.LT1},
		{"Z3 steady", z.LT1, z.LT2},
		{"Z4 threshold", z.LT2, z.MaxHR * 0.97},
		{"Z5 max", z.MaxHR * 0.97, z.MaxHR},
	}
	rows := make([][]string, len(bounds))
	for i, b := range bounds {
		from := "-"
		if b.lo > 0 {
			from = fmt.Sprintf("%.0f", b.lo)
		}
		rows[i] = []string{b.zone, from, fmt.Sprintf("%.0f", b.hi)}
	}
	if err := writeTable(w, []string{"Zone", "From bpm", "Below bpm"}, rows); err != nil {
		return err
	}

	if !z.Confirmed {
		fmt.Fprintln(w, "Run 'trainlog zones set --lt1 N --lt2 N --max N' to confirm.")
	}
	return nil
}
