package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xraph/tally/config"
)

var version = "0.1.0"

// cli carries the settings resolved by the root command.
type cli struct {
	configPath string
	verbose    bool
	jsonLogs   bool

	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "tally",
		Short: "Maintenance jobs for a Tally ledger",
		Long: `tally runs maintenance jobs against a freelancer ledger.

Settings come from tally.yaml (or --config) and TALLY_* environment
variables; a .env file in the working directory is loaded first.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.setupLogger(cmd.ErrOrStderr())

			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./tally.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log engine activity at debug level")
	root.PersistentFlags().BoolVar(&c.jsonLogs, "json", false, "log as JSON instead of console output")

	root.AddCommand(
		newReconcileCmd(c),
		newReportCmd(c),
		newSequenceCmd(c),
	)
	return root
}

func (c *cli) setupLogger(w io.Writer) {
	level := zerolog.InfoLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}

	out := w
	if !c.jsonLogs {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	c.logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = c.logger
}

// engineLogger is the slog.Logger handed to the engine. Engine output goes
// to stderr and stays at warn unless --verbose is set.
func (c *cli) engineLogger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *cli) component(name string) zerolog.Logger {
	return c.logger.With().Str("component", name).Logger()
}
