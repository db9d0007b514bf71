package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/parts-dashboard/internal/server"
	"github.com/jonathan/parts-dashboard/internal/syncer"
)

var (
	servePort    int
	serveNoSync  bool
	serveAddress string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the dashboard REST endpoints.

When app.features.auto_sync is on, jobs are also synced from the Zuper API
every app.refresh_interval_minutes until the server stops.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "Address to bind (overrides server.address)")
	serveCmd.Flags().BoolVar(&serveNoSync, "no-sync", false, "Disable the automatic sync")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveAddress != "" {
		cfg.Server.Address = serveAddress
	}

	srv, err := server.New(server.Config{
		Address:   cfg.Server.Address,
		Port:      cfg.Server.Port,
		DB:        a.db,
		Syncer:    a.syncer,
		Assistant: a.assistant,
		Features:  cfg.App.Features,
		RateLimit: cfg.Server.RateLimit,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})

	switch {
	case !cfg.App.Features.AutoSync || serveNoSync:
		a.logger.Info("automatic sync is off")
	case !a.syncer.Configured():
		a.logger.Warn("automatic sync is on but the Zuper API is not configured")
	default:
		scheduler := syncer.NewScheduler(a.syncer, cfg.App.RefreshInterval(), a.logger)
		g.Go(func() error {
			return scheduler.Run(ctx)
		})
	}

	a.logger.Info("parts dashboard started",
		zap.String("addr", srv.Addr()),
		zap.Bool("sync_configured", a.syncer.Configured()),
		zap.Bool("assistant_ready", a.assistant != nil))

	return g.Wait()
}
