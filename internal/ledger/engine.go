// Package ledger keeps account balances consistent with the transactions
// recorded against them.
//
// Engine is the only code that changes core.Account.Balance. Every operation
// works on fresh copies loaded from the Store under per-account locks and
// persists its whole effect with a single Store.Commit, so a failed commit
// leaves nothing behind to roll back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const maxLockAttempts = 5

var (
	ErrCommitFailed           = errors.New("ledger commit failed")
	ErrConcurrentModification = errors.New("transaction modified concurrently")

	ErrUnknownAccount       = fmt.Errorf("%w: unknown account", core.ErrInvalidArgument)
	ErrUnknownCategory      = fmt.Errorf("%w: unknown category", core.ErrInvalidArgument)
	ErrCategoryMismatch     = fmt.Errorf("%w: category kind does not match transaction type", core.ErrInvalidArgument)
	ErrTargetAmountRequired = fmt.Errorf("%w: target amount is required when transferring between currencies", core.ErrInvalidArgument)
)

type (
	// EntryInput describes an expense or income.
	EntryInput struct {
		Amount     decimal.Decimal
		AccountID  string
		CategoryID string
		Note       string
		Date       core.Date
	}

	// TransferInput describes a transfer between two accounts. TargetAmount
	// is credited to the destination as given; when nil it defaults to
	// Amount, which is only allowed if both accounts share a currency.
	TransferInput struct {
		Amount        decimal.Decimal
		TargetAmount  *decimal.Decimal
		FromAccountID string
		ToAccountID   string
		Note          string
		Date          core.Date
	}

	// UpdateInput carries the new field values of a transaction. Type and
	// Amount are always applied (an empty Type keeps the current one); nil
	// pointers keep the current value.
	UpdateInput struct {
		Type         core.TransactionType
		Amount       decimal.Decimal
		TargetAmount *decimal.Decimal
		AccountID    *string
		ToAccountID  *string
		CategoryID   *string
		Note         *string
		Date         *core.Date
	}

	NewAccount struct {
		Name           string
		CurrencyCode   string
		OpeningBalance decimal.Decimal
		IsDefault      bool
	}
)

type Engine struct {
	store Store
	locks *keyedMutex
	now   func() time.Time
	newID func() string
}

func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreateAccount stores a new account whose balance starts at the opening balance.
func (e *Engine) CreateAccount(ctx context.Context, in NewAccount) (core.Account, error) {
	acc := core.Account{
		ID:             e.newID(),
		Name:           strings.TrimSpace(in.Name),
		Balance:        in.OpeningBalance,
		OpeningBalance: in.OpeningBalance,
		CurrencyCode:   core.NormalizeCode(in.CurrencyCode),
		IsDefault:      in.IsDefault,
		CreatedAt:      e.now().UTC(),
	}
	if err := acc.Validate(); err != nil {
		return core.Account{}, err
	}
	if _, err := e.store.Currency(ctx, acc.CurrencyCode); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Account{}, fmt.Errorf("%w: %s", core.ErrUnknownCurrency, acc.CurrencyCode)
		}
		return core.Account{}, fmt.Errorf("load currency: %w", err)
	}

	if err := e.store.Commit(ctx, Changeset{Accounts: []core.Account{acc}}); err != nil {
		slog.ErrorContext(ctx, "Failed to commit new account", "account_id", acc.ID, "error", err)
		return core.Account{}, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	slog.InfoContext(ctx, "Account created",
		"account_id", acc.ID,
		"currency", acc.CurrencyCode,
		"opening_balance", acc.OpeningBalance.String())
	return acc, nil
}

// ApplyExpense debits amount from the account and records the expense.
func (e *Engine) ApplyExpense(ctx context.Context, in EntryInput) (core.Transaction, error) {
	return e.applyEntry(ctx, core.Expense, in)
}

// ApplyIncome credits amount to the account and records the income.
func (e *Engine) ApplyIncome(ctx context.Context, in EntryInput) (core.Transaction, error) {
	return e.applyEntry(ctx, core.Income, in)
}

func (e *Engine) applyEntry(ctx context.Context, typ core.TransactionType, in EntryInput) (core.Transaction, error) {
	now := e.now().UTC()
	tx := core.Transaction{
		ID:         e.newID(),
		Amount:     in.Amount,
		Note:       strings.TrimSpace(in.Note),
		Date:       in.Date,
		Type:       typ,
		CategoryID: in.CategoryID,
		AccountID:  in.AccountID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := e.run(ctx, staticKeys(lockKeys(tx)...), func(s *session) error {
		if err := s.checkCategory(tx); err != nil {
			return err
		}
		if err := s.apply(tx); err != nil {
			return err
		}
		s.save(tx)
		return s.commit()
	})
	if err != nil {
		return core.Transaction{}, err
	}

	logTransaction(ctx, "Transaction applied", tx)
	return tx, nil
}

// ApplyTransfer debits amount from the source and credits the target amount
// to the destination. The target amount is never derived from exchange rates
// here; callers that need a conversion compute it and pass it in.
func (e *Engine) ApplyTransfer(ctx context.Context, in TransferInput) (core.Transaction, error) {
	now := e.now().UTC()
	tx := core.Transaction{
		ID:                   e.newID(),
		Amount:               in.Amount,
		TransferTargetAmount: copyDecimal(in.TargetAmount),
		Note:                 strings.TrimSpace(in.Note),
		Date:                 in.Date,
		Type:                 core.Transfer,
		AccountID:            in.FromAccountID,
		ToAccountID:          in.ToAccountID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := e.run(ctx, staticKeys(lockKeys(tx)...), func(s *session) error {
		if err := s.resolveTarget(&tx, nil); err != nil {
			return err
		}
		if err := s.apply(tx); err != nil {
			return err
		}
		s.save(tx)
		return s.commit()
	})
	if err != nil {
		return core.Transaction{}, err
	}

	logTransaction(ctx, "Transfer applied", tx)
	return tx, nil
}

// Update reverts the current effect of the transaction, replaces its fields
// and applies the new effect, committing both halves together.
func (e *Engine) Update(ctx context.Context, id string, in UpdateInput) (core.Transaction, error) {
	keys := func(ctx context.Context) ([]string, error) {
		cur, err := e.store.Transaction(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load transaction: %w", err)
		}
		return append(lockKeys(cur), lockKeys(updated(cur, in))...), nil
	}

	var next core.Transaction
	err := e.run(ctx, keys, func(s *session) error {
		cur, err := s.store.Transaction(ctx, id)
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}

		next = updated(cur, in)
		next.UpdatedAt = e.now().UTC()
		if err := next.Validate(); err != nil {
			return err
		}
		switch next.Type {
		case core.Transfer:
			if err := s.resolveTarget(&next, &cur); err != nil {
				return err
			}
		case core.Expense, core.Income:
			if err := s.checkCategory(next); err != nil {
				return err
			}
		}

		if err := s.revert(cur); err != nil {
			return err
		}
		if err := s.apply(next); err != nil {
			return err
		}
		s.save(next)
		return s.commit()
	})
	if err != nil {
		return core.Transaction{}, err
	}

	logTransaction(ctx, "Transaction updated", next)
	return next, nil
}

// Delete reverts the transaction's effect once and removes it.
func (e *Engine) Delete(ctx context.Context, id string) (core.Transaction, error) {
	keys := func(ctx context.Context) ([]string, error) {
		cur, err := e.store.Transaction(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load transaction: %w", err)
		}
		return lockKeys(cur), nil
	}

	var deleted core.Transaction
	err := e.run(ctx, keys, func(s *session) error {
		cur, err := s.store.Transaction(ctx, id)
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}
		if err := s.revert(cur); err != nil {
			return err
		}
		s.deleteTransaction(cur.ID)
		deleted = cur
		return s.commit()
	})
	if err != nil {
		return core.Transaction{}, err
	}

	logTransaction(ctx, "Transaction deleted", deleted)
	return deleted, nil
}

// DeleteAccount removes an account together with every transaction that
// references it. Transfers to or from surviving accounts have their other leg
// reverted so those balances stay consistent.
func (e *Engine) DeleteAccount(ctx context.Context, id string) error {
	keys := func(ctx context.Context) ([]string, error) {
		txs, err := e.store.TransactionsForAccount(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list account transactions: %w", err)
		}
		keys := []string{accountKey(id)}
		for _, tx := range txs {
			keys = append(keys, lockKeys(tx)...)
		}
		return keys, nil
	}

	removed := 0
	err := e.run(ctx, keys, func(s *session) error {
		if _, err := s.store.Account(ctx, id); err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		txs, err := s.store.TransactionsForAccount(ctx, id)
		if err != nil {
			return fmt.Errorf("list account transactions: %w", err)
		}
		for _, tx := range txs {
			for _, eff := range tx.Effects() {
				if eff.AccountID == id {
					continue
				}
				if err := s.revertEffect(tx.ID, eff); err != nil {
					return err
				}
			}
			s.deleteTransaction(tx.ID)
		}
		removed = len(txs)
		s.deleteAccount(id)
		return s.commit()
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Account deleted", "account_id", id, "transactions_removed", removed)
	return nil
}

// run executes fn while holding the locks returned by keys. The key set is
// recomputed after locking; if it grew in the meantime (a concurrent update
// moved the transaction to another account) the locks are widened and fn is
// attempted again.
func (e *Engine) run(ctx context.Context, keys keyFunc, fn func(*session) error) error {
	want, err := keys(ctx)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		unlock := e.locks.Lock(want...)
		current, err := keys(ctx)
		if err != nil {
			unlock()
			return err
		}
		if covers(want, current) {
			if err := ctx.Err(); err != nil {
				unlock()
				return err
			}
			err = fn(newSession(ctx, e.store))
			unlock()
			return err
		}
		unlock()

		if attempt >= maxLockAttempts {
			return ErrConcurrentModification
		}
		want = append(want, current...)
	}
}

type keyFunc func(ctx context.Context) ([]string, error)

func staticKeys(keys ...string) keyFunc {
	return func(context.Context) ([]string, error) {
		return keys, nil
	}
}

func accountKey(id string) string {
	return "account:" + id
}

func lockKeys(tx core.Transaction) []string {
	keys := []string{"transaction:" + tx.ID}
	for _, id := range tx.AccountIDs() {
		keys = append(keys, accountKey(id))
	}
	return keys
}

// updated returns cur with the fields of in applied and type-specific fields
// normalized: transfers drop their category, entries drop their destination.
func updated(cur core.Transaction, in UpdateInput) core.Transaction {
	next := cur
	if in.Type != "" {
		next.Type = in.Type
	}
	next.Amount = in.Amount
	next.TransferTargetAmount = copyDecimal(in.TargetAmount)
	if in.AccountID != nil {
		next.AccountID = *in.AccountID
	}
	if in.ToAccountID != nil {
		next.ToAccountID = *in.ToAccountID
	}
	if in.CategoryID != nil {
		next.CategoryID = *in.CategoryID
	}
	if in.Note != nil {
		next.Note = strings.TrimSpace(*in.Note)
	}
	if in.Date != nil {
		next.Date = *in.Date
	}

	switch next.Type {
	case core.Transfer:
		next.CategoryID = ""
	case core.Expense, core.Income:
		next.ToAccountID = ""
		next.TransferTargetAmount = nil
	}
	return next
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func logTransaction(ctx context.Context, msg string, tx core.Transaction) {
	args := []any{
		"transaction_id", tx.ID,
		"type", tx.Type.String(),
		"amount", tx.Amount.String(),
		"account_id", tx.AccountID,
	}
	if tx.Type == core.Transfer {
		args = append(args, "to_account_id", tx.ToAccountID, "target_amount", tx.TargetAmount().String())
	}
	slog.InfoContext(ctx, msg, args...)
}
