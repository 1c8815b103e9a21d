package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/sheets"
)

// Store is the read side the worker needs to resolve a transaction into a row.
type Store interface {
	Account(ctx context.Context, id string) (core.Account, error)
	Category(ctx context.Context, id string) (core.Category, error)
	Transaction(ctx context.Context, id string) (core.Transaction, error)
	Transactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
}

// Reconciler recomputes an account balance from its transactions.
type Reconciler interface {
	Recalculate(ctx context.Context, accountID string) (ledger.Drift, error)
}

// EventWorker reacts to committed ledger changes: it checks the touched
// accounts for drift and mirrors transactions into the configured exporter.
type EventWorker struct {
	store      Store
	reconciler Reconciler
	exporter   sheets.TransactionExporter
}

// NewEventWorker creates a worker. A nil exporter disables the sheet mirror.
func NewEventWorker(store Store, reconciler Reconciler, exporter sheets.TransactionExporter) *EventWorker {
	return &EventWorker{store: store, reconciler: reconciler, exporter: exporter}
}

// HandleLedgerEvent processes one event from AMQP. A returned error requeues it.
func (w *EventWorker) HandleLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"kind", event.Kind,
		"transaction_id", event.TransactionID,
		"accounts", len(event.AccountIDs))

	if err := w.checkAccounts(ctx, event.AccountIDs); err != nil {
		return err
	}

	switch event.Kind {
	case amqp.TransactionCreated, amqp.TransactionUpdated:
		return w.exportTransaction(ctx, event.TransactionID)
	case amqp.TransactionDeleted:
		return w.removeTransaction(ctx, event.TransactionID)
	}
	return nil
}

func (w *EventWorker) checkAccounts(ctx context.Context, accountIDs []string) error {
	for _, id := range accountIDs {
		drift, err := w.reconciler.Recalculate(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			slog.DebugContext(ctx, "Account no longer exists, skipping drift check", "account_id", id)
			continue
		}
		if err != nil {
			return fmt.Errorf("recalculate account %s: %w", id, err)
		}
		if !drift.IsZero() {
			slog.WarnContext(ctx, "Account balance drift detected",
				"account_id", id,
				"stored", drift.Stored.String(),
				"expected", drift.Expected.String())
		}
	}
	return nil
}

func (w *EventWorker) exportTransaction(ctx context.Context, id string) error {
	if w.exporter == nil {
		return nil
	}
	tx, err := w.store.Transaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted since the event was published; its delete event follows.
		slog.DebugContext(ctx, "Transaction gone before export", "transaction_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	row, err := w.row(ctx, tx)
	if err != nil {
		return err
	}
	if err := w.exporter.Export(ctx, row); err != nil {
		return fmt.Errorf("export transaction %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Exported transaction", "transaction_id", id, "type", tx.Type)
	return nil
}

func (w *EventWorker) removeTransaction(ctx context.Context, id string) error {
	if w.exporter == nil {
		return nil
	}
	if err := w.exporter.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove transaction %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Removed exported transaction", "transaction_id", id)
	return nil
}

// ExportAll mirrors every stored transaction. It recovers rows missed while
// the worker was down.
func (w *EventWorker) ExportAll(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}
	txs, err := w.store.Transactions(ctx, core.TransactionFilter{})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	successCount, errorCount := 0, 0
	for _, tx := range txs {
		row, err := w.row(ctx, tx)
		if err == nil {
			err = w.exporter.Export(ctx, row)
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"transaction_id", tx.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(txs),
		"exported", successCount,
		"errors", errorCount)
	return nil
}

func (w *EventWorker) row(ctx context.Context, tx core.Transaction) (sheets.TransactionRow, error) {
	account, err := w.lookupAccount(ctx, tx.AccountID)
	if err != nil {
		return sheets.TransactionRow{}, err
	}
	var toAccount core.Account
	if tx.Type == core.Transfer {
		if toAccount, err = w.lookupAccount(ctx, tx.ToAccountID); err != nil {
			return sheets.TransactionRow{}, err
		}
	}
	var category string
	if tx.CategoryID != "" {
		cat, err := w.store.Category(ctx, tx.CategoryID)
		switch {
		case err == nil:
			category = cat.Name
		case !errors.Is(err, core.ErrNotFound):
			return sheets.TransactionRow{}, fmt.Errorf("load category: %w", err)
		}
	}
	return sheets.NewTransactionRow(tx, account, toAccount, category), nil
}

// lookupAccount treats a dangling reference as an unnamed account.
func (w *EventWorker) lookupAccount(ctx context.Context, id string) (core.Account, error) {
	if id == "" {
		return core.Account{}, nil
	}
	acc, err := w.store.Account(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Account{}, nil
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("load account: %w", err)
	}
	return acc, nil
}
