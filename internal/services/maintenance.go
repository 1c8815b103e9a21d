package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MaintenanceConfig holds the intervals of the background jobs.
type MaintenanceConfig struct {
	// RateInterval is how often the rate cache is checked for staleness (default: 15m)
	RateInterval time.Duration

	// ReconcileInterval is how often account balances are recomputed (default: 1h)
	ReconcileInterval time.Duration

	// Repair overwrites drifted balances instead of only reporting them
	Repair bool
}

func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		RateInterval:      15 * time.Minute,
		ReconcileInterval: time.Hour,
	}
}

// MaintenanceProcessor keeps rates fresh and watches balances for drift.
type MaintenanceProcessor struct {
	ledger *LedgerService
	config MaintenanceConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMaintenanceProcessor(ledger *LedgerService, config MaintenanceConfig) *MaintenanceProcessor {
	defaults := DefaultMaintenanceConfig()
	if config.RateInterval <= 0 {
		config.RateInterval = defaults.RateInterval
	}
	if config.ReconcileInterval <= 0 {
		config.ReconcileInterval = defaults.ReconcileInterval
	}
	return &MaintenanceProcessor{ledger: ledger, config: config}
}

// Start begins the loop. Returns an error if already running.
func (p *MaintenanceProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("maintenance processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Maintenance processor started",
		"rate_interval", p.config.RateInterval,
		"reconcile_interval", p.config.ReconcileInterval,
		"repair", p.config.Repair)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (p *MaintenanceProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Maintenance processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Maintenance processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *MaintenanceProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MaintenanceProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	rateTicker := time.NewTicker(p.config.RateInterval)
	defer rateTicker.Stop()

	reconcileTicker := time.NewTicker(p.config.ReconcileInterval)
	defer reconcileTicker.Stop()

	p.refreshRates(ctx)
	p.reconcile(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-rateTicker.C:
			p.refreshRates(ctx)
		case <-reconcileTicker.C:
			p.reconcile(ctx)
		}
	}
}

func (p *MaintenanceProcessor) refreshRates(ctx context.Context) {
	if _, err := p.ledger.Rates().RefreshRatesIfNeeded(ctx); err != nil {
		slog.WarnContext(ctx, "Scheduled rate refresh failed", "error", err)
	}
}

func (p *MaintenanceProcessor) reconcile(ctx context.Context) {
	drifts, err := p.ledger.Reconcile(ctx, p.config.Repair)
	if err != nil {
		slog.ErrorContext(ctx, "Reconciliation failed", "error", err)
		return
	}
	for _, d := range drifts {
		slog.WarnContext(ctx, "Account balance drift",
			"account_id", d.AccountID,
			"stored", d.Stored.String(),
			"expected", d.Expected.String(),
			"repaired", p.config.Repair)
	}
	if len(drifts) == 0 {
		slog.DebugContext(ctx, "Reconciliation found no drift")
	}
}
