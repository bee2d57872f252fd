// cmd/bookcatalog/root.go
package main

import (
	"context"
	"errors"
	"fmt"

	"bookcatalog/internal/catalog"
	"bookcatalog/internal/clients"
	"bookcatalog/internal/config"
	"bookcatalog/internal/eventstore"
	"bookcatalog/internal/log"
	"bookcatalog/internal/menu"
	"bookcatalog/internal/tracing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type options struct {
	cfgFile string
	debug   bool
	v       *viper.Viper
}

func newRootCmd(versionString string) *cobra.Command {
	opts := &options{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:     "bookcatalog",
		Short:   "An in-memory book catalog with a text menu",
		Long:    `Add, remove, list, search, check out and return books from an interactive menu. Nothing is persisted between runs.`,
		Version: versionString,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, opts)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "",
		"config file (default: .bookcatalog/config.yaml or ~/.config/bookcatalog/config.yaml)")
	flags.BoolVar(&opts.debug, "debug", false, "write debug logs to the log file")
	flags.String("log-file", "", "log file path (default: bookcatalog.log)")
	rootCmd.Flags().String("remote", "", "drive a catalog served by `bookcatalog serve` at this URL")

	_ = opts.v.BindPFlag("log.enabled", flags.Lookup("debug"))
	_ = opts.v.BindPFlag("log.file", flags.Lookup("log-file"))
	_ = opts.v.BindPFlag("remote", rootCmd.Flags().Lookup("remote"))

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newInitConfigCmd())

	return rootCmd
}

var errStdoutExporter = errors.New(`tracing exporter "stdout" shares the menu's output; use "file" or "otlp"`)

// setup loads configuration and starts logging and telemetry. interactive
// marks runs that drive the menu on stdout. The returned cleanup is always
// safe to call.
func setup(ctx context.Context, opts *options, interactive bool) (config.Config, func(), error) {
	cfg, err := config.Load(opts.v, opts.cfgFile)
	if err != nil {
		return config.Config{}, func() {}, err
	}
	if interactive && cfg.Tracing.Enabled && cfg.Tracing.Exporter == tracing.ExporterStdout {
		return cfg, func() {}, errStdoutExporter
	}

	if opts.debug {
		cfg.Log.Level = "debug"
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Log.Enabled {
		level, _ := log.ParseLevel(cfg.Log.Level)
		closeLog, err := log.Init(cfg.Log.File, level)
		if err != nil {
			return cfg, cleanup, fmt.Errorf("initializing log: %w", err)
		}
		cleanups = append(cleanups, closeLog)
	}

	provider, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return cfg, cleanup, fmt.Errorf("initializing telemetry: %w", err)
	}
	cleanups = append(cleanups, func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatTrace, "telemetry shutdown failed", err)
		}
	})

	return cfg, cleanup, nil
}

func newService(cfg config.Config) catalog.Service {
	if cfg.Remote != "" {
		log.Info(log.CatHTTP, "using remote catalog", "url", cfg.Remote)
		return clients.NewCatalogClient(cfg.Remote)
	}
	return catalog.NewService(eventstore.NewEventStore())
}

func runMenu(cmd *cobra.Command, opts *options) error {
	cfg, cleanup, err := setup(cmd.Context(), opts, true)
	defer cleanup()
	if err != nil {
		return err
	}

	log.Info(log.CatMenu, "menu started")
	if err := menu.New(newService(cfg), cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context()); err != nil {
		return fmt.Errorf("running menu: %w", err)
	}
	return nil
}
