package cmd

import (
	"fmt"
	"net"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"trainlog/internal/auth"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Connect trainlog to your Strava account",
		Long: `Open the Strava authorization page and store the resulting tokens.

A callback server listens on localhost:8089 until the authorization
completes or five minutes pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			oc, err := a.oauthConfig()
			if err != nil {
				return err
			}

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", auth.CallbackPort))
			if err != nil {
				return fmt.Errorf("starting callback server: %w", err)
			}

			result, err := auth.Authenticate(ctx, auth.NewOAuthConfig(*oc), ln, func(authURL string) {
				fmt.Fprintln(out, "Open this URL in your browser to authorize trainlog:")
				fmt.Fprintln(out)
				fmt.Fprintf(out, "  %s\n\n", authURL)
				fmt.Fprintln(out, "Waiting for authorization...")
			})
			if err != nil {
				return fmt.Errorf("authentication: %w", err)
			}

			if err := db.SaveAuth(ctx, result.StoreAuth()); err != nil {
				return fmt.Errorf("saving auth: %w", err)
			}

			who := result.AthleteName
			if who == "" {
				who = fmt.Sprintf("athlete %d", result.AthleteID)
			}
			fmt.Fprintln(out)
			color.New(color.FgGreen).Fprintf(out, "Successfully authenticated as %s!\n", who)
			return nil
		},
	}
}
