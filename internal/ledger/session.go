package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/core"
)

// session accumulates the writes of one engine operation. Accounts are loaded
// lazily and mutated in memory; nothing reaches the store before commit.
type session struct {
	ctx      context.Context
	store    Store
	accounts map[string]*core.Account
	dirty    []string
	cs       Changeset
}

func newSession(ctx context.Context, store Store) *session {
	return &session{
		ctx:      ctx,
		store:    store,
		accounts: make(map[string]*core.Account),
	}
}

func (s *session) account(id string) (*core.Account, error) {
	if acc, ok := s.accounts[id]; ok {
		return acc, nil
	}
	acc, err := s.store.Account(s.ctx, id)
	if err != nil {
		return nil, err
	}
	s.accounts[id] = &acc
	return &acc, nil
}

func (s *session) adjust(eff core.Effect) error {
	acc, err := s.account(eff.AccountID)
	if err != nil {
		return err
	}
	acc.Balance = acc.Balance.Add(eff.Delta)
	for _, id := range s.dirty {
		if id == eff.AccountID {
			return nil
		}
	}
	s.dirty = append(s.dirty, eff.AccountID)
	return nil
}

// apply adds the transaction's effects. Every referenced account must exist.
func (s *session) apply(tx core.Transaction) error {
	for _, eff := range tx.Effects() {
		if err := s.adjust(eff); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownAccount, eff.AccountID)
			}
			return fmt.Errorf("load account: %w", err)
		}
	}
	return nil
}

// revert subtracts the transaction's effects. Legs on accounts that no longer
// exist are skipped.
func (s *session) revert(tx core.Transaction) error {
	for _, eff := range tx.Effects() {
		if err := s.revertEffect(tx.ID, eff); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) revertEffect(txID string, eff core.Effect) error {
	err := s.adjust(eff.Inverse())
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(s.ctx, "Account no longer exists, skipping revert",
			"transaction_id", txID,
			"account_id", eff.AccountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	return nil
}

func (s *session) checkCategory(tx core.Transaction) error {
	kind, ok := tx.Type.CategoryKind()
	if !ok {
		return nil
	}
	cat, err := s.store.Category(s.ctx, tx.CategoryID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, tx.CategoryID)
	}
	if err != nil {
		return fmt.Errorf("load category: %w", err)
	}
	if cat.Kind != kind {
		return fmt.Errorf("%w: %s is an %s category", ErrCategoryMismatch, cat.Name, cat.Kind)
	}
	return nil
}

// resolveTarget checks both transfer accounts and settles the target amount.
// A missing target is accepted between accounts of the same currency. Across
// currencies the previous target is kept only when accounts and amount are
// unchanged.
func (s *session) resolveTarget(tx *core.Transaction, prev *core.Transaction) error {
	from, err := s.account(tx.AccountID)
	if err != nil {
		return s.accountErr(tx.AccountID, err)
	}
	to, err := s.account(tx.ToAccountID)
	if err != nil {
		return s.accountErr(tx.ToAccountID, err)
	}

	if tx.TransferTargetAmount != nil || from.CurrencyCode == to.CurrencyCode {
		return nil
	}
	if prev != nil && prev.Type == core.Transfer && prev.TransferTargetAmount != nil &&
		prev.AccountID == tx.AccountID && prev.ToAccountID == tx.ToAccountID &&
		prev.Amount.Equal(tx.Amount) {
		tx.TransferTargetAmount = copyDecimal(prev.TransferTargetAmount)
		return nil
	}
	return fmt.Errorf("%w (%s to %s)", ErrTargetAmountRequired, from.CurrencyCode, to.CurrencyCode)
}

func (s *session) accountErr(id string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return fmt.Errorf("load account: %w", err)
}

func (s *session) save(tx core.Transaction) {
	s.cs.Transactions = append(s.cs.Transactions, tx)
}

func (s *session) deleteTransaction(id string) {
	s.cs.DeleteTransactions = append(s.cs.DeleteTransactions, id)
}

func (s *session) deleteAccount(id string) {
	s.cs.DeleteAccount = id
	for i, d := range s.dirty {
		if d == id {
			s.dirty = append(s.dirty[:i], s.dirty[i+1:]...)
			break
		}
	}
}

func (s *session) commit() error {
	for _, id := range s.dirty {
		s.cs.Accounts = append(s.cs.Accounts, *s.accounts[id])
	}
	if s.cs.IsEmpty() {
		return nil
	}
	if err := s.store.Commit(s.ctx, s.cs); err != nil {
		slog.ErrorContext(s.ctx, "Failed to commit ledger changes",
			"accounts", len(s.cs.Accounts),
			"transactions", len(s.cs.Transactions),
			"deletions", len(s.cs.DeleteTransactions),
			"error", err)
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	return nil
}
