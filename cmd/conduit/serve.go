package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/admin"
	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	noWatch       bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatch layer with its admin server",
	Long: `Run the dispatch layer, its maintenance jobs and the admin HTTP server.

The admin server exposes Prometheus metrics, health probes and endpoints to
inspect and reset circuits, rate limit windows, the request queue and the
cache. The config file is watched and dispatch settings, maintenance
intervals and the log level are applied without a restart.

Examples:
  # Start with default config
  conduit serve

  # Start with custom config
  conduit serve --config /etc/conduit/conduit.yaml

  # Override the admin listen address
  conduit serve --listen 0.0.0.0:9090

  # Validate config without starting
  conduit serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override admin listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.noWatch, "no-watch", false, "do not reload the config file on change")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if serveFlags.listenAddress != "" {
		cfg.Admin.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}

	if serveFlags.dryRun {
		if err := config.Validate(cfg); err != nil {
			return cli.NewConfigError(cfgFile, err.Error())
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if serveFlags.noWatch {
		path = ""
	}
	return serve(ctx, cmd, cfg, path)
}

// serve runs until ctx is cancelled. A non-empty path is watched for
// configuration changes.
func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config, path string) error {
	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer a.close(context.Background())

	a.start(ctx)
	if err := a.startMaintenance(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}

	slog.Info("conduit started",
		"version", Version,
		"providers", cfg.ProviderNames(),
		"admin_enabled", cfg.Admin.Enabled,
	)

	if path != "" {
		watcher, err := config.NewWatcher(path, cfg, 0)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer watcher.Stop()

		go func() {
			if err := watcher.Watch(ctx, a.reconfigure); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	if !cfg.Admin.Enabled {
		<-ctx.Done()
		slog.Info("shutting down")
		return nil
	}

	srv := admin.NewServer(cfg.Admin, a.dispatcher, a.telemetry.Health(),
		admin.WithScheduler(a.scheduler),
		admin.WithVersion(Version),
		admin.WithMetricsPath(cfg.Telemetry.Metrics.Path),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Admin server listening on %s\n", cfg.Admin.ListenAddress)
	if err := srv.Start(ctx); err != nil {
		return cli.NewUnavailableError("serve", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
	return nil
}
