package main

import (
	"github.com/spf13/cobra"

	"github.com/flight-logger/backend/internal/config"
	"github.com/flight-logger/backend/internal/logger"
)

// options are the flags shared by every command. Non-empty values override
// the configuration file.
type options struct {
	configPath string
	addr       string
	dataDir    string
	staticDir  string
	debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "flight-logger",
		Short:         "Flight log server with calendar ingestion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var healthCheck bool
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if healthCheck {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runHealthCheck(cmd.Context(), cfg.Listen)
		}
		return runServer(cmd.Context(), opts)
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "/data/flight-logger.yaml", "Configuration file path")
	flags.StringVar(&opts.addr, "addr", "", "HTTP server address")
	flags.StringVar(&opts.dataDir, "data", "", "Data directory for the SQLite database")
	flags.StringVar(&opts.staticDir, "static", "", "Directory for static frontend files")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&healthCheck, "health-check", false, "Run health check against a running server and exit")

	rootCmd.AddCommand(newSyncCommand(opts))
	rootCmd.AddCommand(newCalendarsCommand(opts))
	rootCmd.AddCommand(newReferenceCommand(opts))

	return rootCmd
}

// load reads the configuration, applies flag overrides, and initializes
// the logger.
func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.addr != "" {
		cfg.Listen = o.addr
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.staticDir != "" {
		cfg.StaticDir = o.staticDir
	}
	if o.debug {
		cfg.Log.Debug = true
	}

	if err := logger.Init(logger.Config{Debug: cfg.Log.Debug, Dir: cfg.Log.Dir}); err != nil {
		return nil, err
	}
	return cfg, nil
}
