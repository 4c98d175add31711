package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 6

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Transactions and category definitions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					identifier TEXT NOT NULL,
					vendor TEXT NOT NULL,
					account_number TEXT,
					date DATETIME NOT NULL,
					processed_date DATETIME,
					name TEXT NOT NULL,
					name_normalized TEXT NOT NULL DEFAULT '',
					price TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'completed',
					category_definition_id INTEGER,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (identifier, vendor)
				)`,
				`CREATE INDEX idx_transactions_vendor_account ON transactions(vendor, account_number)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_definition_id)`,

				`CREATE TABLE IF NOT EXISTS category_definitions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					name_en TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Account pairings with NULL-safe uniqueness",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS account_pairings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					credit_card_vendor TEXT NOT NULL,
					credit_card_account_number TEXT,
					bank_vendor TEXT NOT NULL,
					bank_account_number TEXT,
					match_patterns TEXT NOT NULL DEFAULT '[]',
					is_active BOOLEAN NOT NULL DEFAULT 1,
					discrepancy_acknowledged BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				// NULL account numbers must collide with each other, so the
				// unique index compares them as empty strings.
				`CREATE UNIQUE INDEX idx_account_pairings_tuple ON account_pairings(
					credit_card_vendor,
					IFNULL(credit_card_account_number, ''),
					bank_vendor,
					IFNULL(bank_account_number, '')
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Append-only pairing audit log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS pairing_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					pairing_id INTEGER NOT NULL,
					action TEXT NOT NULL,
					params TEXT NOT NULL DEFAULT '{}',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_pairing_log_pairing ON pairing_log(pairing_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Cycle exceptions and expense matches",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS pairing_cycle_exceptions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					pairing_id INTEGER NOT NULL,
					cycle_date TEXT NOT NULL,
					kind TEXT NOT NULL,
					fee_txn_identifier TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (pairing_id, cycle_date, kind),
					FOREIGN KEY (pairing_id) REFERENCES account_pairings(id)
				)`,
				`CREATE TABLE IF NOT EXISTS cc_expense_matches (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					repayment_txn_id TEXT NOT NULL,
					repayment_vendor TEXT NOT NULL,
					expense_txn_id TEXT NOT NULL,
					expense_vendor TEXT NOT NULL,
					card_number TEXT NOT NULL DEFAULT '',
					match_method TEXT NOT NULL,
					match_confidence REAL NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (expense_txn_id, expense_vendor)
				)`,
				`CREATE INDEX idx_expense_matches_repayment ON cc_expense_matches(repayment_txn_id, repayment_vendor)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     5,
		Description: "Seed well-known repayment and fee categories",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`INSERT OR IGNORE INTO category_definitions (name, name_en)
					VALUES ('פרעון כרטיס אשראי', 'Credit Card Repayment')`,
				`INSERT OR IGNORE INTO category_definitions (name, name_en)
					VALUES ('החזר כרטיס אשראי', 'Credit Card Refund')`,
				`INSERT OR IGNORE INTO category_definitions (name, name_en)
					VALUES ('עמלות בנק וכרטיס', 'Bank & Card Fees')`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     6,
		Description: "Tuple uniqueness constrains active pairings only",
		Up: func(tx *sql.Tx) error {
			// A retired pairing must not block re-creating the tuple.
			queries := []string{
				`DROP INDEX idx_account_pairings_tuple`,
				`CREATE UNIQUE INDEX idx_account_pairings_tuple ON account_pairings(
					credit_card_vendor,
					IFNULL(credit_card_account_number, ''),
					bank_vendor,
					IFNULL(bank_account_number, '')
				) WHERE is_active = 1`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
