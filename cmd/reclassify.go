package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"trainlog/internal/service"
)

func newReclassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reclassify",
		Short: "Clear every run type and classify all runs again",
		Long: `Run the classifier over every detailed run, for example after
changing zones or upgrading trainlog. No Strava requests are made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			out, err := service.NewClassificationService(db, a.logger, nil).Reclassify(cmd.Context())
			if errors.Is(err, service.ErrZonesUnconfirmed) {
				return fmt.Errorf("%w\nconfirm zones before reclassifying", err)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Classified %d runs\n", out.Classified)
			for _, rt := range sortedRunTypes(out.ByType) {
				fmt.Fprintf(w, "  %-12s %d\n", coloredRunType(string(rt)), out.ByType[rt])
			}
			if n := len(out.Errors); n > 0 {
				fmt.Fprintf(w, "%d runs failed, see the log for details\n", n)
				for _, e := range out.Errors {
					a.logger.Warn("reclassify failed", "error", e)
				}
			}
			return nil
		},
	}
}
