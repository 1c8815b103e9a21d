package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const selectTransactions = `
	SELECT id, amount, transfer_target_amount, note, date, type,
	       category_id, account_id, to_account_id, created_at, updated_at
	FROM transactions`

func (r *SQLiteRepository) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, selectTransactions+` WHERE id = ?`, id))
	if err != nil {
		return core.Transaction{}, notFound("transaction", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) TransactionsForAccount(ctx context.Context, accountID string) ([]core.Transaction, error) {
	return r.Transactions(ctx, core.TransactionFilter{AccountID: accountID})
}

// Transactions lists matching transactions, newest first.
func (r *SQLiteRepository) Transactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		where = append(where, "(account_id = ? OR to_account_id = ?)")
		args = append(args, f.AccountID, f.AccountID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}

	query := selectTransactions
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func upsertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	var target sql.NullString
	if t.TransferTargetAmount != nil {
		target = sql.NullString{String: t.TransferTargetAmount.String(), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, transfer_target_amount, note, date, type,
		                          category_id, account_id, to_account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			amount = excluded.amount,
			transfer_target_amount = excluded.transfer_target_amount,
			note = excluded.note,
			date = excluded.date,
			type = excluded.type,
			category_id = excluded.category_id,
			account_id = excluded.account_id,
			to_account_id = excluded.to_account_id,
			updated_at = excluded.updated_at`,
		t.ID, t.Amount.String(), target, t.Note, t.Date.String(), string(t.Type),
		nullString(t.CategoryID), t.AccountID, nullString(t.ToAccountID),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", t.ID, err)
	}
	return nil
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t                   core.Transaction
		amount, date, typ   string
		created, updated    string
		target              sql.NullString
		category, toAccount sql.NullString
	)
	if err := row.Scan(&t.ID, &amount, &target, &t.Note, &date, &typ,
		&category, &t.AccountID, &toAccount, &created, &updated); err != nil {
		return core.Transaction{}, err
	}

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount of %s: %w", t.ID, err)
	}
	if target.Valid {
		d, err := decimal.NewFromString(target.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse target amount of %s: %w", t.ID, err)
		}
		t.TransferTargetAmount = &d
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date of %s: %w", t.ID, err)
	}
	t.Date = core.Date{Time: day}
	if t.Type, err = core.ParseTransactionType(typ); err != nil {
		return core.Transaction{}, err
	}
	t.CategoryID = category.String
	t.ToAccountID = toAccount.String
	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}
