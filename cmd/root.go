// Package cmd defines the command-line interface for trainlog.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trainlog/internal/auth"
	"trainlog/internal/config"
	"trainlog/internal/logging"
	"trainlog/internal/metrics"
	"trainlog/internal/store"
	"trainlog/internal/strava"
)

// All linker flags will be set at build time.
var (
	version = "dev"
	commit  = "none"
)

// app carries the resolved configuration into every subcommand
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
	// logOutput receives log records, stderr unless a test overrides it
	logOutput io.Writer
}

// newRootCmd builds the command tree. Each call returns an independent tree.
func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper(), logOutput: os.Stderr}

	root := &cobra.Command{
		Use:   "trainlog",
		Short: "Sync Strava runs, label workouts and track best efforts.",
		Long: `trainlog keeps a local copy of your Strava runs, labels each one
(easy, intervals, tempo, ...) from its laps and heart rate, and ranks your
best efforts across standard distances, including ones Strava missed.`,
		Version:            fmt.Sprintf("%s (%s)", version, commit),
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to config file (default ~/.trainlog/config.yaml)")
	flags.String("data-dir", "", "Directory holding the database and exports (default ~/.trainlog)")
	flags.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", config.DefaultLogFormat, "Log format: text or json")
	for key, flag := range map[string]string{
		"data_dir":   "data-dir",
		"log.level":  "log-level",
		"log.format": "log-format",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		newLoginCmd(a),
		newSyncCmd(a),
		newBestsCmd(a),
		newRunsCmd(a),
		newZonesCmd(a),
		newReclassifyCmd(a),
		newClassifyFileCmd(a),
		newStatusCmd(a),
	)
	return root
}

// setup loads and validates configuration and builds the logger
func (a *app) setup() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, a.logOutput)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}

// openStore opens the database in the data directory
func (a *app) openStore() (*store.Store, error) {
	db, err := store.Open(store.DefaultPath(a.cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func (a *app) oauthConfig() (*auth.Config, error) {
	if err := a.cfg.ValidateCredentials(); err != nil {
		return nil, a.explainConfig(err)
	}
	return &auth.Config{
		ClientID:     a.cfg.Strava.ClientID,
		ClientSecret: a.cfg.Strava.ClientSecret,
		RedirectURL:  auth.CallbackURL(),
	}, nil
}

// explainConfig writes an example config when none exists and points the
// user at it.
func (a *app) explainConfig(cause error) error {
	path := a.configFile
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return cause
		}
		path = p
	}

	created, err := config.CreateExample(path)
	if err != nil {
		return fmt.Errorf("%w (creating example config: %v)", cause, err)
	}
	if created {
		return fmt.Errorf("%w\nan example config was written to %s, add your Strava API credentials there", cause, path)
	}
	return fmt.Errorf("%w\nedit the config file at %s", cause, path)
}

// newStravaClient builds an API client from the stored credentials.
// m may be nil.
func (a *app) newStravaClient(ctx context.Context, db *store.Store, m *metrics.Metrics) (*strava.Client, error) {
	oc, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}

	ts, err := auth.NewTokenSource(ctx, auth.NewOAuthConfig(*oc), db)
	if err != nil {
		return nil, err
	}
	return strava.NewClient(ts, strava.WithTransport(m.InstrumentTransport(http.DefaultTransport))), nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
