package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Drift compares a stored balance with the balance implied by the account's
// transactions.
type Drift struct {
	AccountID string
	Stored    decimal.Decimal
	Expected  decimal.Decimal
}

func (d Drift) Difference() decimal.Decimal {
	return d.Stored.Sub(d.Expected)
}

func (d Drift) IsZero() bool {
	return d.Stored.Equal(d.Expected)
}

// Recalculate recomputes the balance of an account from its opening balance
// and transactions without changing anything.
func (e *Engine) Recalculate(ctx context.Context, accountID string) (Drift, error) {
	var drift Drift
	err := e.run(ctx, staticKeys(accountKey(accountID)), func(s *session) error {
		var err error
		drift, err = e.drift(ctx, accountID)
		return err
	})
	return drift, err
}

// Repair overwrites a drifted balance with the recomputed one.
func (e *Engine) Repair(ctx context.Context, accountID string) (Drift, error) {
	var drift Drift
	err := e.run(ctx, staticKeys(accountKey(accountID)), func(s *session) error {
		var err error
		drift, err = e.drift(ctx, accountID)
		if err != nil || drift.IsZero() {
			return err
		}
		if err := s.adjust(core.Effect{AccountID: accountID, Delta: drift.Difference().Neg()}); err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		return s.commit()
	})
	if err != nil {
		return Drift{}, err
	}
	if !drift.IsZero() {
		slog.WarnContext(ctx, "Repaired account balance drift",
			"account_id", accountID,
			"stored", drift.Stored.String(),
			"expected", drift.Expected.String())
	}
	return drift, nil
}

func (e *Engine) drift(ctx context.Context, accountID string) (Drift, error) {
	acc, err := e.store.Account(ctx, accountID)
	if err != nil {
		return Drift{}, fmt.Errorf("load account: %w", err)
	}
	txs, err := e.store.TransactionsForAccount(ctx, accountID)
	if err != nil {
		return Drift{}, fmt.Errorf("list account transactions: %w", err)
	}

	expected := acc.OpeningBalance
	for _, tx := range txs {
		for _, eff := range tx.Effects() {
			if eff.AccountID == accountID {
				expected = expected.Add(eff.Delta)
			}
		}
	}
	return Drift{AccountID: accountID, Stored: acc.Balance, Expected: expected}, nil
}
