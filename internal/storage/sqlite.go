package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{tx: tx, storage: s}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) CreatePairing(ctx context.Context, params service.CreatePairingParams) (*service.PairingUpdates, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.createPairingTx(ctx, t.tx, params)
}

func (t *sqliteTransaction) GetPairing(ctx context.Context, id int64) (*model.Pairing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getPairingTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListPairings(ctx context.Context, includeInactive bool) ([]model.Pairing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listPairingsTx(ctx, t.tx, includeInactive)
}

func (t *sqliteTransaction) UpdatePairing(ctx context.Context, id int64, params service.UpdatePairingParams) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.updatePairingTx(ctx, t.tx, id, params)
}

func (t *sqliteTransaction) DeletePairing(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deletePairingTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SetDiscrepancyAcknowledged(ctx context.Context, id int64, acknowledged bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.setDiscrepancyAcknowledgedTx(ctx, t.tx, id, acknowledged)
}

func (t *sqliteTransaction) AppendPairingLog(ctx context.Context, pairingID int64, action string, params any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.appendPairingLogTx(ctx, t.tx, pairingID, action, params)
}

func (t *sqliteTransaction) GetPairingLog(ctx context.Context, pairingID int64) ([]model.PairingLogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getPairingLogTx(ctx, t.tx, pairingID)
}

func (t *sqliteTransaction) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransactionsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetBankAccounts(ctx context.Context, excludeVendors []string) ([]service.BankAccountRef, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getBankAccountsTx(ctx, t.tx, excludeVendors)
}

func (t *sqliteTransaction) GetEarliestBillingDate(ctx context.Context, vendor string, accountNumber *string, excludeCategoryID *int64) (*time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getEarliestBillingDateTx(ctx, t.tx, vendor, accountNumber, excludeCategoryID)
}

func (t *sqliteTransaction) GetCategoryByName(ctx context.Context, names ...string) (*model.CategoryDefinition, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCategoryByNameTx(ctx, t.tx, names...)
}

func (t *sqliteTransaction) BulkSetCategory(ctx context.Context, transactionIDs []string, categoryID int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.bulkSetCategoryTx(ctx, t.tx, transactionIDs, categoryID)
}

func (t *sqliteTransaction) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.insertTransactionTx(ctx, t.tx, txn)
}

func (t *sqliteTransaction) AddCycleException(ctx context.Context, exc service.CycleException) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.addCycleExceptionTx(ctx, t.tx, exc)
}

func (t *sqliteTransaction) GetCycleExceptions(ctx context.Context, pairingID int64) ([]service.CycleException, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCycleExceptionsTx(ctx, t.tx, pairingID)
}

func (t *sqliteTransaction) SaveExpenseMatches(ctx context.Context, matches []model.ExpenseMatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.saveExpenseMatchesTx(ctx, t.tx, matches)
}

func (t *sqliteTransaction) GetMatchedExpenseIDs(ctx context.Context, expenseVendor string) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getMatchedExpenseIDsTx(ctx, t.tx, expenseVendor)
}

func (t *sqliteTransaction) ClearExpenseMatches(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, "DELETE FROM cc_expense_matches")
	if err != nil {
		return fmt.Errorf("failed to clear expense matches: %w", err)
	}
	return nil
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
