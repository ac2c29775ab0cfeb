package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"lumina/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the ledger in a single transactions table.
// Save replaces the table contents in one database transaction so the
// slot keeps full-overwrite semantics.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load reads all rows in stored order. found=false when the table is
// untouched (no marker row has ever been written), so an empty saved list
// stays distinct from "never saved". Rows that fail to map onto the
// domain are a data-quality problem, reported as absent rather than a
// crash.
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Transaction, bool, error) {
	var saved int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_state`).Scan(&saved)
	if err != nil {
		return nil, false, fmt.Errorf("read ledger state: %w", err)
	}
	if saved == 0 {
		return nil, false, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount_cents, currency, category, merchant, date, notes, type
		FROM transactions ORDER BY position`)
	if err != nil {
		return nil, false, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		var (
			tx      core.Transaction
			dateStr string
			typStr  string
		)
		if err := rows.Scan(&tx.ID, &tx.Amount.Cents, &tx.Currency, &tx.Category,
			&tx.Merchant, &dateStr, &tx.Notes, &typStr); err != nil {
			slog.WarnContext(ctx, "Unreadable transaction row, treating ledger as absent", "error", err)
			return nil, false, nil
		}
		date, err := core.ParseDate(dateStr)
		if err != nil {
			slog.WarnContext(ctx, "Malformed date in stored transaction, treating ledger as absent",
				"id", tx.ID, "date", dateStr)
			return nil, false, nil
		}
		typ, err := core.ParseTransactionType(typStr)
		if err != nil {
			slog.WarnContext(ctx, "Unknown type in stored transaction, treating ledger as absent",
				"id", tx.ID, "type", typStr)
			return nil, false, nil
		}
		tx.Date = date
		tx.Type = typ
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, true, nil
}

// Save replaces the full table contents, preserving list order through an
// explicit position column.
func (r *SQLiteRepository) Save(ctx context.Context, txs []core.Transaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	for i, tx := range txs {
		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO transactions (position, id, amount_cents, currency, category, merchant, date, notes, type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, tx.ID, tx.Amount.Cents, tx.Currency, tx.Category, tx.Merchant,
			tx.Date.String(), tx.Notes, string(tx.Type))
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}

	// Marker keeping "saved empty list" distinct from "never saved".
	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO ledger_state (id, saved_at) VALUES (1, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET saved_at = CURRENT_TIMESTAMP`); err != nil {
		return fmt.Errorf("update ledger state: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	slog.DebugContext(ctx, "Ledger persisted to SQLite", "transactions", len(txs))
	return nil
}
