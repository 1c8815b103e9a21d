package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, cfgErr := cli.LoadAndValidateConfig()
	level := "info"
	if cfg != nil {
		level = cfg.LogLevel
	}
	logger := cli.SetupLogger(level, log.ComponentWorker)
	if envErr != nil {
		logger.Warn("Failed to load .env file", "error", envErr)
	}
	if cfgErr != nil {
		logger.Error("Configuration validation failed", "error", cfgErr)
		os.Exit(1)
	}
	if err := cfg.RequireAMQP(); err != nil {
		logger.Error("Worker needs a message broker", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting ledger-worker")

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	app, err := cli.Build(startCtx, cfg, logger, true)
	startCancel()
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Google Sheets export is optional
	var exporter sheets.TransactionExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	eventWorker := worker.NewEventWorker(app.Backend.Store, app.Ledger.Engine(), exporter)
	maintenance := services.NewMaintenanceProcessor(app.Ledger, cli.MaintenanceConfig(cfg))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		logger.Info("Shutting down worker...")
		if err := maintenance.Stop(shutdownCtx); err != nil {
			logger.Error("Maintenance shutdown error", "error", err)
		}
	})

	// Catch up on rows missed while the worker was down
	if exporter != nil {
		if err := eventWorker.ExportAll(ctx); err != nil {
			logger.Error("Startup export failed", "error", err)
		}
	}

	if err := maintenance.Start(ctx); err != nil {
		logger.Error("Failed to start maintenance processor", "error", err)
		os.Exit(1)
	}

	go func() {
		err := app.Backend.AMQP.ConsumeLedgerEvents(ctx, eventWorker.HandleLedgerEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
