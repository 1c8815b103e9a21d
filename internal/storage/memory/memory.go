// Package memory is an in-process store used by the memory backend and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

type Store struct {
	mu           sync.RWMutex
	accounts     map[string]core.Account
	categories   map[string]core.Category
	currencies   map[string]core.Currency
	transactions map[string]core.Transaction
	kv           map[string][]byte
}

func New() *Store {
	return &Store{
		accounts:     make(map[string]core.Account),
		categories:   make(map[string]core.Category),
		currencies:   make(map[string]core.Currency),
		transactions: make(map[string]core.Transaction),
		kv:           make(map[string][]byte),
	}
}

// NewSeeded returns a store holding the catalog currencies and the default
// categories.
func NewSeeded(catalog *core.Catalog) *Store {
	s := New()
	for _, c := range catalog.All() {
		s.currencies[c.Code] = c
	}
	for kind, names := range core.DefaultCategories {
		for _, name := range names {
			id := uuid.NewString()
			s.categories[id] = core.Category{ID: id, Name: name, Kind: kind}
		}
	}
	return s
}

func (s *Store) Account(_ context.Context, id string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return acc, nil
}

func (s *Store) Accounts(_ context.Context) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) Category(_ context.Context, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cat, ok := s.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return cat, nil
}

func (s *Store) Categories(_ context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, cat := range s.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// SaveCategory inserts or replaces a category.
func (s *Store) SaveCategory(_ context.Context, cat core.Category) error {
	if err := cat.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[cat.ID] = cat
	return nil
}

func (s *Store) Currency(_ context.Context, code string) (core.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.currencies[core.NormalizeCode(code)]
	if !ok {
		return core.Currency{}, fmt.Errorf("currency %s: %w", code, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) Currencies(_ context.Context) ([]core.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]core.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		list = append(list, c)
	}
	return core.NewCatalog(list).All(), nil
}

func (s *Store) Transaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return cloneTransaction(tx), nil
}

func (s *Store) TransactionsForAccount(ctx context.Context, accountID string) ([]core.Transaction, error) {
	return s.Transactions(ctx, core.TransactionFilter{AccountID: accountID})
}

// Transactions lists matching transactions, newest first.
func (s *Store) Transactions(_ context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if f.Matches(tx) {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Commit applies the changeset under a single write lock.
func (s *Store) Commit(_ context.Context, cs ledger.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range cs.Accounts {
		if acc.IsDefault {
			for id, other := range s.accounts {
				if id != acc.ID && other.IsDefault {
					other.IsDefault = false
					s.accounts[id] = other
				}
			}
		}
		s.accounts[acc.ID] = acc
	}
	for _, tx := range cs.Transactions {
		s.transactions[tx.ID] = cloneTransaction(tx)
	}
	for _, id := range cs.DeleteTransactions {
		delete(s.transactions, id)
	}
	if cs.DeleteAccount != "" {
		delete(s.accounts, cs.DeleteAccount)
	}
	return nil
}

// DeleteAccountRaw removes an account without touching its transactions,
// the way an external edit of the database would.
func (s *Store) DeleteAccountRaw(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Put(_ context.Context, values map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.kv[k] = append([]byte(nil), v...)
	}
	return nil
}

func cloneTransaction(tx core.Transaction) core.Transaction {
	if tx.TransferTargetAmount != nil {
		t := *tx.TransferTargetAmount
		tx.TransferTargetAmount = &t
	}
	return tx
}
