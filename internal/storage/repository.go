// Package storage persists the ledger in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/ledger"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Seed inserts catalog currencies that are missing and, on an empty
// database, the default categories.
func (r *SQLiteRepository) Seed(ctx context.Context, catalog *core.Catalog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, c := range catalog.All() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO currencies (code, symbol, name, kind, is_base) VALUES (?, ?, ?, ?, ?)`,
			c.Code, c.Symbol, c.Name, string(c.Kind), boolToInt(c.IsBase)); err != nil {
			return fmt.Errorf("seed currency %s: %w", c.Code, err)
		}
	}

	var categories int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&categories); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	seeded := 0
	if categories == 0 {
		for kind, names := range core.DefaultCategories {
			for _, name := range names {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO categories (id, name, kind) VALUES (?, ?, ?)`,
					uuid.NewString(), name, string(kind)); err != nil {
					return fmt.Errorf("seed category %s: %w", name, err)
				}
				seeded++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	slog.InfoContext(ctx, "Database seeded", "currencies", catalog.Len(), "categories_added", seeded)
	return nil
}

// Commit implements ledger.Store. The changeset is written in one SQL
// transaction.
func (r *SQLiteRepository) Commit(ctx context.Context, cs ledger.Changeset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	for _, acc := range cs.Accounts {
		if err := upsertAccount(ctx, tx, acc); err != nil {
			return err
		}
	}
	for _, t := range cs.Transactions {
		if err := upsertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, id := range cs.DeleteTransactions {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete transaction %s: %w", id, err)
		}
	}
	if id := cs.DeleteAccount; id != "" {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE account_id = ? OR to_account_id = ?`, id, id); err != nil {
			return fmt.Errorf("delete transactions of account %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete account %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit changeset: %w", err)
	}

	slog.DebugContext(ctx, "Changeset committed",
		"accounts", len(cs.Accounts),
		"transactions", len(cs.Transactions),
		"deleted_transactions", len(cs.DeleteTransactions),
		"deleted_account", cs.DeleteAccount)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
