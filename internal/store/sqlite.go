package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
)

// SQLiteStore keeps the ledger in a local SQLite database. It is the default
// store for the CLI.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	company_id    TEXT NOT NULL,
	customer_id   TEXT NOT NULL,
	period        TEXT NOT NULL,
	customer_name TEXT NOT NULL,
	amount        REAL NOT NULL,
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (company_id, customer_id, period)
);
CREATE INDEX IF NOT EXISTS idx_ledger_company_period
	ON ledger_entries (company_id, period);

CREATE TABLE IF NOT EXISTS monthly_metrics (
	company_id TEXT NOT NULL,
	period     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (company_id, period)
);
`

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveEntries replaces the company's rows for the uploaded periods in one
// transaction: uploading a period again fully overwrites it, including
// customers that disappeared from the new file.
func (s *SQLiteStore) SaveEntries(ctx context.Context, companyID string, entries []domain.LedgerEntry) error {
	if companyID == "" {
		return fmt.Errorf("company ID cannot be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	periods := distinctPeriods(entries)
	if len(periods) > 0 {
		placeholders := strings.Repeat(",?", len(periods))[1:]
		args := make([]interface{}, 0, len(periods)+1)
		args = append(args, companyID)
		for _, p := range periods {
			args = append(args, p)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM ledger_entries WHERE company_id = ? AND period IN ("+placeholders+")",
			args...); err != nil {
			return fmt.Errorf("failed to clear existing periods: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_entries (company_id, customer_id, period, customer_name, amount, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, customer_id, period) DO UPDATE SET
			customer_name = excluded.customer_name,
			amount        = excluded.amount,
			updated_at    = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			companyID, e.CustomerID, e.Period, e.CustomerName, e.Amount, now); err != nil {
			return fmt.Errorf("failed to insert entry %s/%s: %w", e.CustomerID, e.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SaveMetrics upserts one JSON document per period.
func (s *SQLiteStore) SaveMetrics(ctx context.Context, companyID string, metrics []domain.MonthlyMetrics) error {
	if companyID == "" {
		return fmt.Errorf("company ID cannot be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, m := range metrics {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode metrics for %s: %w", m.Period, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO monthly_metrics (company_id, period, payload, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (company_id, period) DO UPDATE SET
				payload    = excluded.payload,
				updated_at = excluded.updated_at`,
			companyID, m.Period, string(payload), now); err != nil {
			return fmt.Errorf("failed to upsert metrics for %s: %w", m.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// LoadEntries returns the company's ledger ordered by period then customer.
func (s *SQLiteStore) LoadEntries(ctx context.Context, companyID string) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, customer_name, period, amount
		FROM ledger_entries
		WHERE company_id = ?
		ORDER BY period, customer_id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.CustomerID, &e.CustomerName, &e.Period, &e.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
