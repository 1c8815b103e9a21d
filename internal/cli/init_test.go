package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/rates"
)

func testConfig() *config.Config {
	return &config.Config{
		DataBackend:          "memory",
		FiatRatesURL:         rates.DefaultFiatURL,
		CryptoRatesURL:       rates.DefaultCryptoURL,
		RatesTTL:             time.Hour,
		RatesTimeout:         time.Second,
		RatesRefreshInterval: time.Minute,
		ReconcileInterval:    2 * time.Hour,
		RepairDrift:          true,
	}
}

func TestBuildMemoryApp(t *testing.T) {
	logger := log.New(log.Config{Output: &bytes.Buffer{}})
	app, err := Build(context.Background(), testConfig(), logger, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	accounts, err := app.Ledger.Accounts(context.Background())
	if err != nil || len(accounts) != 0 {
		t.Fatalf("accounts = %v, %v", accounts, err)
	}
	if !app.Ledger.Rates().NeedsRefresh() {
		t.Error("fresh store should need a rate refresh")
	}
}

func TestBuildRequiresAMQPWhenAsked(t *testing.T) {
	logger := log.New(log.Config{Output: &bytes.Buffer{}})
	if _, err := Build(context.Background(), testConfig(), logger, true); err == nil {
		t.Fatal("expected an error without an AMQP URL")
	}
}

func TestMaintenanceConfig(t *testing.T) {
	mc := MaintenanceConfig(testConfig())
	if mc.RateInterval != time.Minute || mc.ReconcileInterval != 2*time.Hour || !mc.Repair {
		t.Errorf("unexpected maintenance config %+v", mc)
	}
}
