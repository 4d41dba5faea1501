package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xfw5/Market-Research/internal/di"
	"github.com/xfw5/Market-Research/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	log.Info().Msg("Starting engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, _, err := di.Wire(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer container.Close()

	// Load the index averages before the first scheduled cycle
	if err := container.Orchestrator.RefreshMovingAverages(); err != nil {
		log.Warn().Err(err).Msg("Initial moving average refresh failed, cycles will sweep only until the next refresh")
	}

	srv := server.New(server.Config{
		Log:               log,
		Engine:            container.Orchestrator,
		Fills:             container.Broker,
		Jobs:              container.Scheduler,
		Databases:         container.Databases(),
		Events:            container.EventBus,
		Gatherer:          container.Registry,
		DataDir:           cfg.DataDir,
		Port:              cfg.Port,
		DevMode:           cfg.DevMode,
		CycleRunPerMinute: cfg.RateLimit.CycleRunPerMinute,
		CycleRunBurst:     cfg.RateLimit.Burst,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	container.Scheduler.Start()
	log.Info().Int("port", cfg.Port).Msg("Engine started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	log.Info().Msg("Shutting down...")
	container.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Engine stopped")
	return nil
}
