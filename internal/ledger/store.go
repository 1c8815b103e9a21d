package ledger

import (
	"context"

	"ledger/internal/core"
)

// Store is the persistence collaborator of the engine. Lookups return an
// error wrapping core.ErrNotFound when the entity does not exist.
type Store interface {
	Account(ctx context.Context, id string) (core.Account, error)
	Category(ctx context.Context, id string) (core.Category, error)
	Currency(ctx context.Context, code string) (core.Currency, error)
	Transaction(ctx context.Context, id string) (core.Transaction, error)

	// TransactionsForAccount returns every transaction referencing the
	// account as source or destination.
	TransactionsForAccount(ctx context.Context, accountID string) ([]core.Transaction, error)

	// Commit durably applies the changeset. Implementations must apply all of
	// it or none of it.
	Commit(ctx context.Context, cs Changeset) error
}

// Changeset is everything one ledger operation writes.
type Changeset struct {
	Accounts           []core.Account     // upserted
	Transactions       []core.Transaction // upserted
	DeleteTransactions []string
	DeleteAccount      string
}

func (cs Changeset) IsEmpty() bool {
	return len(cs.Accounts) == 0 && len(cs.Transactions) == 0 &&
		len(cs.DeleteTransactions) == 0 && cs.DeleteAccount == ""
}
