package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	sheetsmem "ledger/internal/sheets/memory"
	"ledger/internal/storage/memory"
)

type fixture struct {
	store    *memory.Store
	engine   *ledger.Engine
	exporter *sheetsmem.Exporter
	worker   *EventWorker
	food     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewSeeded(core.DefaultCatalog())
	engine := ledger.NewEngine(store)
	exporter := sheetsmem.New()
	f := &fixture{store: store, engine: engine, exporter: exporter, worker: NewEventWorker(store, engine, exporter)}

	cats, _ := store.Categories(context.Background())
	for _, c := range cats {
		if c.Kind == core.ExpenseCategory && c.Name == "Groceries" {
			f.food = c.ID
		}
	}
	if f.food == "" {
		t.Fatal("seeded categories missing Groceries")
	}
	return f
}

func (f *fixture) account(t *testing.T, name, currency string, opening int64) core.Account {
	t.Helper()
	acc, err := f.engine.CreateAccount(context.Background(), ledger.NewAccount{
		Name: name, CurrencyCode: currency, OpeningBalance: decimal.NewFromInt(opening),
	})
	if err != nil {
		t.Fatalf("create account %s: %v", name, err)
	}
	return acc
}

func TestHandleLedgerEventExportsAndRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "Checking", "USD", 100)

	tx, err := f.engine.ApplyExpense(ctx, ledger.EntryInput{
		Amount: decimal.NewFromInt(12), AccountID: acc.ID, CategoryID: f.food, Date: core.NewDate(2024, 2, 3), Note: "market",
	})
	if err != nil {
		t.Fatalf("apply expense: %v", err)
	}

	if err := f.worker.HandleLedgerEvent(ctx, amqp.NewLedgerEvent(amqp.TransactionCreated, tx.ID, acc.ID)); err != nil {
		t.Fatalf("handle created: %v", err)
	}
	row, ok := f.exporter.Row(tx.ID)
	if !ok {
		t.Fatal("transaction not exported")
	}
	if row.Account != "Checking" || row.Category != "Groceries" || row.Currency != "USD" || row.Note != "market" {
		t.Fatalf("row = %+v", row)
	}

	newAmount := decimal.NewFromInt(20)
	if _, err := f.engine.Update(ctx, tx.ID, ledger.UpdateInput{Type: core.Expense, Amount: newAmount}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.worker.HandleLedgerEvent(ctx, amqp.NewLedgerEvent(amqp.TransactionUpdated, tx.ID, acc.ID)); err != nil {
		t.Fatalf("handle updated: %v", err)
	}
	if row, _ := f.exporter.Row(tx.ID); !row.Amount.Equal(newAmount) || len(f.exporter.Rows()) != 1 {
		t.Fatalf("update not mirrored: %+v", f.exporter.Rows())
	}

	if _, err := f.engine.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.worker.HandleLedgerEvent(ctx, amqp.NewLedgerEvent(amqp.TransactionDeleted, tx.ID, acc.ID)); err != nil {
		t.Fatalf("handle deleted: %v", err)
	}
	if len(f.exporter.Rows()) != 0 {
		t.Fatalf("rows after delete = %+v", f.exporter.Rows())
	}
}

func TestHandleLedgerEventSkipsVanishedData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The transaction and account were deleted before the event was consumed.
	event := amqp.NewLedgerEvent(amqp.TransactionCreated, "gone", "missing-account")
	if err := f.worker.HandleLedgerEvent(ctx, event); err != nil {
		t.Fatalf("vanished data should be skipped, got %v", err)
	}
	if len(f.exporter.Rows()) != 0 {
		t.Fatal("nothing should be exported")
	}
}

func TestHandleLedgerEventTransferRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	usd := f.account(t, "Dollars", "USD", 500)
	eur := f.account(t, "Euros", "EUR", 0)

	target := decimal.NewFromInt(90)
	tx, err := f.engine.ApplyTransfer(ctx, ledger.TransferInput{
		Amount: decimal.NewFromInt(100), TargetAmount: &target,
		FromAccountID: usd.ID, ToAccountID: eur.ID, Date: core.NewDate(2024, 2, 3),
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := f.worker.HandleLedgerEvent(ctx, amqp.NewLedgerEvent(amqp.TransactionCreated, tx.ID, usd.ID, eur.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	row, _ := f.exporter.Row(tx.ID)
	if row.ToAccount != "Euros" || row.TargetAmount != "90 EUR" || row.Category != "" {
		t.Fatalf("row = %+v", row)
	}
}

type failingReconciler struct{}

func (failingReconciler) Recalculate(context.Context, string) (ledger.Drift, error) {
	return ledger.Drift{}, errors.New("database is locked")
}

func TestHandleLedgerEventRequeuesOnStoreErrors(t *testing.T) {
	f := newFixture(t)
	w := NewEventWorker(f.store, failingReconciler{}, f.exporter)

	err := w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEvent(amqp.AccountCreated, "", "a"))
	if err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}

func TestHandleLedgerEventWithoutExporter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "Checking", "USD", 10)
	tx, _ := f.engine.ApplyExpense(ctx, ledger.EntryInput{
		Amount: decimal.NewFromInt(1), AccountID: acc.ID, CategoryID: f.food, Date: core.NewDate(2024, 1, 1),
	})

	w := NewEventWorker(f.store, f.engine, nil)
	for _, kind := range []amqp.EventKind{amqp.TransactionCreated, amqp.TransactionDeleted} {
		if err := w.HandleLedgerEvent(ctx, amqp.NewLedgerEvent(kind, tx.ID, acc.ID)); err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
	}
	if err := w.ExportAll(ctx); err != nil {
		t.Fatalf("export all: %v", err)
	}
}

func TestExportAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "Checking", "USD", 100)
	for i := 1; i <= 3; i++ {
		if _, err := f.engine.ApplyExpense(ctx, ledger.EntryInput{
			Amount: decimal.NewFromInt(int64(i)), AccountID: acc.ID, CategoryID: f.food, Date: core.NewDate(2024, 1, i),
		}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	if err := f.worker.ExportAll(ctx); err != nil {
		t.Fatalf("export all: %v", err)
	}
	if err := f.worker.ExportAll(ctx); err != nil {
		t.Fatalf("second export all: %v", err)
	}
	if n := len(f.exporter.Rows()); n != 3 {
		t.Fatalf("rows = %d, want 3 after repeated export", n)
	}
}
