package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/rates"
)

// Repository is the persistence surface the service needs beyond ledger.Store.
type Repository interface {
	ledger.Store
	Accounts(ctx context.Context) ([]core.Account, error)
	Categories(ctx context.Context) ([]core.Category, error)
	SaveCategory(ctx context.Context, cat core.Category) error
	Currencies(ctx context.Context) ([]core.Currency, error)
	Transactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
}

type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// LedgerService runs ledger operations and announces committed changes.
// Events are published after the commit; a failed publish is logged and
// never fails the operation.
type LedgerService struct {
	repo      Repository
	engine    *ledger.Engine
	rates     *rates.Service
	catalog   *core.Catalog
	publisher EventPublisher
}

func NewLedgerService(repo Repository, rateService *rates.Service, catalog *core.Catalog, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		repo:      repo,
		engine:    ledger.NewEngine(repo),
		rates:     rateService,
		catalog:   catalog,
		publisher: publisher,
	}
}

func (s *LedgerService) Engine() *ledger.Engine {
	return s.engine
}

func (s *LedgerService) Rates() *rates.Service {
	return s.rates
}

func (s *LedgerService) CreateAccount(ctx context.Context, in ledger.NewAccount) (core.Account, error) {
	acc, err := s.engine.CreateAccount(ctx, in)
	if err != nil {
		return core.Account{}, err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.AccountCreated, "", acc.ID))
	return acc, nil
}

func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	if err := s.engine.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.AccountDeleted, "", id))
	return nil
}

func (s *LedgerService) AddExpense(ctx context.Context, in ledger.EntryInput) (core.Transaction, error) {
	return s.created(ctx)(s.engine.ApplyExpense(ctx, in))
}

func (s *LedgerService) AddIncome(ctx context.Context, in ledger.EntryInput) (core.Transaction, error) {
	return s.created(ctx)(s.engine.ApplyIncome(ctx, in))
}

func (s *LedgerService) AddTransfer(ctx context.Context, in ledger.TransferInput) (core.Transaction, error) {
	return s.created(ctx)(s.engine.ApplyTransfer(ctx, in))
}

func (s *LedgerService) created(ctx context.Context) func(core.Transaction, error) (core.Transaction, error) {
	return func(tx core.Transaction, err error) (core.Transaction, error) {
		if err != nil {
			return core.Transaction{}, err
		}
		s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionCreated, tx.ID, tx.AccountIDs()...))
		return tx, nil
	}
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, in ledger.UpdateInput) (core.Transaction, error) {
	before, err := s.repo.Transaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}
	tx, err := s.engine.Update(ctx, id, in)
	if err != nil {
		return core.Transaction{}, err
	}
	accounts := dedupe(append(before.AccountIDs(), tx.AccountIDs()...))
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionUpdated, tx.ID, accounts...))
	return tx, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := s.engine.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionDeleted, tx.ID, tx.AccountIDs()...))
	return nil
}

func (s *LedgerService) Account(ctx context.Context, id string) (core.Account, error) {
	return s.repo.Account(ctx, id)
}

func (s *LedgerService) Accounts(ctx context.Context) ([]core.Account, error) {
	return s.repo.Accounts(ctx)
}

func (s *LedgerService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.repo.Categories(ctx)
}

func (s *LedgerService) CreateCategory(ctx context.Context, name string, kind core.CategoryKind) (core.Category, error) {
	cat := core.Category{ID: uuid.NewString(), Name: strings.TrimSpace(name), Kind: kind}
	if err := s.repo.SaveCategory(ctx, cat); err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "category_id", cat.ID, "name", cat.Name, "kind", cat.Kind)
	return cat, nil
}

func (s *LedgerService) Currencies(ctx context.Context) ([]core.Currency, error) {
	return s.repo.Currencies(ctx)
}

func (s *LedgerService) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.repo.Transaction(ctx, id)
}

func (s *LedgerService) Transactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	return s.repo.Transactions(ctx, f)
}

// Convert expresses amount in another currency using the cached rates.
func (s *LedgerService) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	return s.rates.Convert(amount, from, to)
}

// Summary converts every account balance into currency and totals them.
// An empty currency selects the catalog's base currency.
func (s *LedgerService) Summary(ctx context.Context, currency string) (core.Summary, error) {
	currency = core.NormalizeCode(currency)
	if currency == "" {
		currency = s.baseCurrency()
	}
	if _, ok := s.catalog.Lookup(currency); !ok {
		return core.Summary{}, fmt.Errorf("%w: %s", core.ErrUnknownCurrency, currency)
	}

	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list accounts: %w", err)
	}

	summary := core.Summary{
		Currency:     currency,
		Total:        decimal.Zero,
		Accounts:     make([]core.AccountBalance, 0, len(accounts)),
		RatesFetched: s.rates.FetchedAt(),
	}
	for _, acc := range accounts {
		converted := s.rates.Convert(acc.Balance, acc.CurrencyCode, currency)
		summary.Accounts = append(summary.Accounts, core.AccountBalance{Account: acc, Converted: converted})
		summary.Total = summary.Total.Add(converted)
	}
	return summary, nil
}

// Reconcile recomputes every account balance and returns the drifted ones.
// With repair set, drifted balances are overwritten.
func (s *LedgerService) Reconcile(ctx context.Context, repair bool) ([]ledger.Drift, error) {
	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var drifts []ledger.Drift
	for _, acc := range accounts {
		check := s.engine.Recalculate
		if repair {
			check = s.engine.Repair
		}
		drift, err := check(ctx, acc.ID)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return drifts, fmt.Errorf("reconcile account %s: %w", acc.ID, err)
		}
		if !drift.IsZero() {
			drifts = append(drifts, drift)
		}
	}
	return drifts, nil
}

func (s *LedgerService) baseCurrency() string {
	for _, c := range s.catalog.All() {
		if c.IsBase {
			return c.Code
		}
	}
	return core.PivotCurrency
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "kind", event.Kind)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", event.Kind,
			"transaction_id", event.TransactionID,
			"error", err)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
