package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, cfgErr := cli.LoadAndValidateConfig()
	level := "info"
	if cfg != nil {
		level = cfg.LogLevel
	}
	logger := cli.SetupLogger(level, log.ComponentApp)
	if envErr != nil {
		logger.Warn("Failed to load .env file", "error", envErr)
	}
	if cfgErr != nil {
		logger.Error("Configuration validation failed", "error", cfgErr)
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	app, err := cli.Build(startCtx, cfg, logger, false)
	startCancel()
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer app.Close()

	// The worker owns maintenance when events flow; without a broker the
	// server runs it itself.
	var maintenance *services.MaintenanceProcessor
	if app.Backend.AMQP == nil {
		maintenance = services.NewMaintenanceProcessor(app.Ledger, cli.MaintenanceConfig(cfg))
	}

	srv := apphttp.NewServer(":"+cfg.Port, app.Ledger, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Pinger:             app.Backend.Pinger,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 40 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if maintenance != nil {
			if err := maintenance.Stop(shutdownCtx); err != nil {
				logger.Error("Maintenance shutdown error", "error", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	if maintenance != nil {
		if err := maintenance.Start(ctx); err != nil {
			logger.Error("Failed to start maintenance processor", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Starting ledger server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", app.Backend.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
