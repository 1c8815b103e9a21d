package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const selectAccounts = `SELECT id, name, balance, opening_balance, currency_code, is_default, created_at FROM accounts`

func (r *SQLiteRepository) Account(ctx context.Context, id string) (core.Account, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, selectAccounts+` WHERE id = ?`, id))
	if err != nil {
		return core.Account{}, notFound("account", id, err)
	}
	return acc, nil
}

// Accounts lists every account, the default one first.
func (r *SQLiteRepository) Accounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, selectAccounts+` ORDER BY is_default DESC, name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func upsertAccount(ctx context.Context, tx *sql.Tx, acc core.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, name, balance, opening_balance, currency_code, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			balance = excluded.balance,
			opening_balance = excluded.opening_balance,
			is_default = excluded.is_default`,
		acc.ID, acc.Name, acc.Balance.String(), acc.OpeningBalance.String(),
		acc.CurrencyCode, boolToInt(acc.IsDefault), formatTime(acc.CreatedAt))
	if err != nil {
		return fmt.Errorf("save account %s: %w", acc.ID, err)
	}
	if acc.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET is_default = 0 WHERE id != ? AND is_default = 1`, acc.ID); err != nil {
			return fmt.Errorf("clear default account: %w", err)
		}
	}
	return nil
}

func scanAccount(row scanner) (core.Account, error) {
	var (
		acc                       core.Account
		balance, opening, created string
		isDefault                 int
	)
	if err := row.Scan(&acc.ID, &acc.Name, &balance, &opening, &acc.CurrencyCode, &isDefault, &created); err != nil {
		return core.Account{}, err
	}

	var err error
	if acc.Balance, err = decimal.NewFromString(balance); err != nil {
		return core.Account{}, fmt.Errorf("parse balance of %s: %w", acc.ID, err)
	}
	if acc.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return core.Account{}, fmt.Errorf("parse opening balance of %s: %w", acc.ID, err)
	}
	if acc.CreatedAt, err = parseTime(created); err != nil {
		return core.Account{}, err
	}
	acc.IsDefault = isDefault != 0
	return acc, nil
}

func (r *SQLiteRepository) Category(ctx context.Context, id string) (core.Category, error) {
	var (
		cat  core.Category
		kind string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, kind FROM categories WHERE id = ?`, id).Scan(&cat.ID, &cat.Name, &kind)
	if err != nil {
		return core.Category{}, notFound("category", id, err)
	}
	cat.Kind = core.CategoryKind(kind)
	return cat, nil
}

func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind FROM categories ORDER BY kind, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			cat  core.Category
			kind string
		)
		if err := rows.Scan(&cat.ID, &cat.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cat.Kind = core.CategoryKind(kind)
		out = append(out, cat)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveCategory(ctx context.Context, cat core.Category) error {
	if err := cat.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, kind) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, kind = excluded.kind`,
		cat.ID, cat.Name, string(cat.Kind))
	if err != nil {
		return fmt.Errorf("save category %s: %w", cat.Name, err)
	}
	return nil
}

func (r *SQLiteRepository) Currency(ctx context.Context, code string) (core.Currency, error) {
	code = core.NormalizeCode(code)
	c, err := scanCurrency(r.db.QueryRowContext(ctx,
		`SELECT code, symbol, name, kind, is_base FROM currencies WHERE code = ?`, code))
	if err != nil {
		return core.Currency{}, notFound("currency", code, err)
	}
	return c, nil
}

// Currencies lists fiat currencies before crypto, each group by code.
func (r *SQLiteRepository) Currencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT code, symbol, name, kind, is_base FROM currencies ORDER BY CASE kind WHEN 'fiat' THEN 0 ELSE 1 END, code`)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var out []core.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCurrency(row scanner) (core.Currency, error) {
	var (
		c      core.Currency
		kind   string
		isBase int
	)
	if err := row.Scan(&c.Code, &c.Symbol, &c.Name, &kind, &isBase); err != nil {
		return core.Currency{}, err
	}
	c.Kind = core.CurrencyKind(kind)
	c.IsBase = isBase != 0
	return c, nil
}
