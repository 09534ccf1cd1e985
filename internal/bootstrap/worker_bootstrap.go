package bootstrap

import (
	"context"
	"time"

	"travel_server/adapter/in/worker"
	"travel_server/config"
	"travel_server/core/service/travel"
	"travel_server/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// Serve runs the API, plus the scan scheduler when SCAN_USERS and
// SCAN_INTERVAL_MIN are set, until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config) error {
	deps, cleanup, err := NewDependencies(ctx, cfg, Options{})
	if err != nil {
		return err
	}
	defer cleanup()

	app := NewAPI(deps)

	if interval := cfg.ScanInterval(); interval > 0 {
		if deps.ScanService.HasMailSource() {
			scheduler := worker.NewScanScheduler(deps.ScanService, cfg.ScanUsers, interval, travel.ScanOptions{
				DaysBack:   cfg.ScanDaysBack,
				MaxResults: cfg.ScanMaxResults,
			})
			scheduler.Start()
			defer scheduler.Stop()
		} else {
			logger.Warn("SCAN_USERS set but no mail source is configured, background scans disabled")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("Starting API server on %s", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Error shutting down: %v", err)
		return err
	}
	logger.Info("API server shut down gracefully")
	return nil
}
