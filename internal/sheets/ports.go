package sheets

import (
	"context"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// TransactionRow is a ledger transaction flattened for a spreadsheet. Account
// and category references are resolved to names; unresolved ones are empty.
type TransactionRow struct {
	TransactionID string
	Date          core.Date
	Type          core.TransactionType
	Amount        decimal.Decimal
	Currency      string
	Account       string
	ToAccount     string
	TargetAmount  string
	Category      string
	Note          string
}

// Ports for outbound adapters.
type (
	// TransactionExporter mirrors ledger transactions into an external sheet.
	TransactionExporter interface {
		// Export inserts the row or replaces the one with the same TransactionID.
		Export(ctx context.Context, row TransactionRow) error

		// Remove deletes the row of the transaction. Missing rows are not an error.
		Remove(ctx context.Context, transactionID string) error
	}
)

// Header is the first row written to an empty sheet.
var Header = []string{"ID", "Date", "Type", "Amount", "Currency", "Account", "To account", "Target amount", "Category", "Note"}

// NewTransactionRow flattens tx. Lookups that fail leave the name empty.
func NewTransactionRow(tx core.Transaction, account, toAccount core.Account, category string) TransactionRow {
	row := TransactionRow{
		TransactionID: tx.ID,
		Date:          tx.Date,
		Type:          tx.Type,
		Amount:        tx.Amount,
		Currency:      account.CurrencyCode,
		Account:       account.Name,
		Category:      category,
		Note:          tx.Note,
	}
	if tx.Type == core.Transfer {
		row.ToAccount = toAccount.Name
		if tx.TransferTargetAmount != nil {
			row.TargetAmount = tx.TransferTargetAmount.String()
			if toAccount.CurrencyCode != "" {
				row.TargetAmount += " " + toAccount.CurrencyCode
			}
		}
	}
	return row
}

// Values returns the row in Header column order.
func (r TransactionRow) Values() []string {
	return []string{
		r.TransactionID,
		r.Date.String(),
		string(r.Type),
		r.Amount.String(),
		r.Currency,
		r.Account,
		r.ToAccount,
		r.TargetAmount,
		r.Category,
		r.Note,
	}
}
