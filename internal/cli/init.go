// Package cli provides common CLI initialization utilities.
// This package consolidates the startup sequence shared by cmd/ledger,
// cmd/ledger-worker and cmd/ledgerctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/rates"
	"ledger/internal/services"
)

// SetupLogger installs a structured logger for component at the configured
// level. An unknown level falls back to info and is reported once.
func SetupLogger(level, component string) *log.Logger {
	logger, err := log.Setup(level, component)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level, "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
func LoadEnvFile() error {
	return config.LoadDotEnv()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App is the assembled ledger: storage, rates and the service on top.
type App struct {
	Config  *config.Config
	Catalog *core.Catalog
	Backend *backend.BackendResult
	Ledger  *services.LedgerService
}

// Close releases the backend.
func (a *App) Close() error {
	return a.Backend.Close()
}

// Build opens the configured backend and wires the rate service and the
// ledger service over it. requireAMQP makes a missing broker fatal.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger, requireAMQP bool) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bcfg.RequireAMQP = requireAMQP

	catalog := core.DefaultCatalog()
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentStorage).Logger, catalog).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	rateService, err := NewRateService(ctx, cfg, res.Store, catalog)
	if err != nil {
		res.Close()
		return nil, err
	}

	return &App{
		Config:  cfg,
		Catalog: catalog,
		Backend: res,
		Ledger:  services.NewLedgerService(res.Store, rateService, catalog, res.Publisher()),
	}, nil
}

// NewRateService builds the provider and cache from cfg and loads the last
// persisted table.
func NewRateService(ctx context.Context, cfg *config.Config, store backend.Store, catalog *core.Catalog) (*rates.Service, error) {
	provider := rates.NewProvider(rates.ProviderConfig{
		FiatURL:   cfg.FiatRatesURL,
		CryptoURL: cfg.CryptoRatesURL,
		Timeout:   cfg.RatesTimeout,
	})
	cache := rates.NewCache(store, cfg.RatesTTL)
	if err := cache.Load(ctx); err != nil {
		return nil, fmt.Errorf("load rate cache: %w", err)
	}
	return rates.NewService(provider, cache, store, catalog), nil
}

// MaintenanceConfig maps cfg onto the maintenance processor settings.
func MaintenanceConfig(cfg *config.Config) services.MaintenanceConfig {
	return services.MaintenanceConfig{
		RateInterval:      cfg.RatesRefreshInterval,
		ReconcileInterval: cfg.ReconcileInterval,
		Repair:            cfg.RepairDrift,
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
