package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/service"
	"github.com/clarify-app/settle/internal/textnorm"
)

// queryable abstracts over *sql.DB and *sql.Tx so the same query helpers
// serve direct calls and transactional ones.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetTransactions returns transactions matching the filter, ordered by
// billing date ascending.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getTransactionsTx(ctx context.Context, q queryable, filter service.TransactionFilter) ([]model.Transaction, error) {
	query := `
		SELECT identifier, vendor, account_number, date, processed_date,
		       name, price, status, category_definition_id
		FROM transactions
		WHERE 1=1
	`
	var args []any

	if filter.Vendor != "" {
		query += " AND vendor = ?"
		args = append(args, filter.Vendor)
	}
	if filter.AccountNumber != nil {
		query += " AND IFNULL(account_number, '') = ?"
		args = append(args, *filter.AccountNumber)
	}
	if filter.StartDate != nil {
		query += " AND COALESCE(processed_date, date) >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		query += " AND COALESCE(processed_date, date) <= ?"
		args = append(args, filter.EndDate.UTC())
	}
	if filter.OnlyExpenses {
		query += " AND CAST(price AS REAL) < 0"
	}
	if filter.OnlyCompleted {
		query += " AND status = ?"
		args = append(args, string(model.StatusCompleted))
	}
	if len(filter.NamePatterns) > 0 {
		clauses := make([]string, len(filter.NamePatterns))
		for i, pattern := range filter.NamePatterns {
			clauses[i] = `name_normalized LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		query += " AND (" + strings.Join(clauses, " OR ") + ")"
	}

	query += " ORDER BY COALESCE(processed_date, date) ASC, identifier ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

// GetBankAccounts lists distinct vendor/account pairs present in the
// transaction table, excluding the given vendors (typically the known
// card issuers).
func (s *SQLiteStorage) GetBankAccounts(ctx context.Context, excludeVendors []string) ([]service.BankAccountRef, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getBankAccountsTx(ctx, s.db, excludeVendors)
}

func (s *SQLiteStorage) getBankAccountsTx(ctx context.Context, q queryable, excludeVendors []string) ([]service.BankAccountRef, error) {
	query := "SELECT DISTINCT vendor, account_number FROM transactions"
	var args []any

	if len(excludeVendors) > 0 {
		placeholders := make([]string, len(excludeVendors))
		for i, vendor := range excludeVendors {
			placeholders[i] = "?"
			args = append(args, vendor)
		}
		query += " WHERE vendor NOT IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY vendor, account_number"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []service.BankAccountRef
	for rows.Next() {
		var ref service.BankAccountRef
		var account sql.NullString
		if scanErr := rows.Scan(&ref.Vendor, &account); scanErr != nil {
			return nil, fmt.Errorf("failed to scan bank account: %w", scanErr)
		}
		if account.Valid {
			ref.AccountNumber = &account.String
		}
		accounts = append(accounts, ref)
	}
	return accounts, rows.Err()
}

// GetEarliestBillingDate returns the earliest billing date seen for one
// vendor/account, or nil when there is no history. Rows in the excluded
// category (typically repayments on the bank side) don't count.
func (s *SQLiteStorage) GetEarliestBillingDate(ctx context.Context, vendor string, accountNumber *string, excludeCategoryID *int64) (*time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getEarliestBillingDateTx(ctx, s.db, vendor, accountNumber, excludeCategoryID)
}

func (s *SQLiteStorage) getEarliestBillingDateTx(ctx context.Context, q queryable, vendor string, accountNumber *string, excludeCategoryID *int64) (*time.Time, error) {
	if err := validateString(vendor, "vendor"); err != nil {
		return nil, err
	}

	// Selecting the raw columns keeps the driver's DATETIME conversion;
	// an aggregate over COALESCE would come back as a bare string.
	query := `
		SELECT date, processed_date
		FROM transactions
		WHERE vendor = ?
	`
	args := []any{vendor}

	if accountNumber != nil {
		query += " AND IFNULL(account_number, '') = ?"
		args = append(args, *accountNumber)
	}
	if excludeCategoryID != nil {
		query += " AND (category_definition_id IS NULL OR category_definition_id != ?)"
		args = append(args, *excludeCategoryID)
	}
	query += " ORDER BY COALESCE(processed_date, date) ASC LIMIT 1"

	var date time.Time
	var processed sql.NullTime
	err := q.QueryRowContext(ctx, query, args...).Scan(&date, &processed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query earliest billing date: %w", err)
	}

	earliest := date
	if processed.Valid {
		earliest = processed.Time
	}
	return &earliest, nil
}

// InsertTransaction persists a transaction, typically a synthetic fee
// adjustment. The normalized name column is derived here so coarse SQL
// pattern filters keep working.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertTransactionTx(ctx, tx, txn); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) insertTransactionTx(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
	if err := validateTransaction(txn); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			identifier, vendor, account_number, date, processed_date,
			name, name_normalized, price, status, category_definition_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.Identifier, txn.Vendor, txn.AccountNumber,
		txn.Date.UTC(), nullableTime(txn.ProcessedDate),
		txn.Name, textnorm.Normalize(txn.Name),
		txn.Price.String(), string(txn.Status), txn.CategoryDefinitionID,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert transaction: %w", common.ErrStore, err)
	}
	return nil
}

// BulkSetCategory assigns one category to all given transaction
// identifiers and returns how many rows changed.
func (s *SQLiteStorage) BulkSetCategory(ctx context.Context, transactionIDs []string, categoryID int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	count, err := s.bulkSetCategoryTx(ctx, tx, transactionIDs, categoryID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit category update: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) bulkSetCategoryTx(ctx context.Context, tx *sql.Tx, transactionIDs []string, categoryID int64) (int64, error) {
	if len(transactionIDs) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(transactionIDs))
	args := []any{categoryID}
	for i, id := range transactionIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE transactions SET category_definition_id = ? WHERE identifier IN ("+strings.Join(placeholders, ", ")+")",
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to set categories: %w", common.ErrStore, err)
	}
	return result.RowsAffected()
}

// bulkSetCategoryBySignTx splits the given transactions between the
// repayment category (outflows) and the refund category (inflows).
func (s *SQLiteStorage) bulkSetCategoryBySignTx(ctx context.Context, tx *sql.Tx, transactionIDs []string, repaymentCategoryID, refundCategoryID int64) (int64, error) {
	if len(transactionIDs) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(transactionIDs))
	args := []any{repaymentCategoryID, refundCategoryID}
	for i, id := range transactionIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET category_definition_id = CASE WHEN CAST(price AS REAL) < 0 THEN ? ELSE ? END
		WHERE identifier IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to categorize transactions: %w", common.ErrStore, err)
	}
	return result.RowsAffected()
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var account sql.NullString
	var processed sql.NullTime
	var categoryID sql.NullInt64
	var status string

	err := row.Scan(
		&txn.Identifier, &txn.Vendor, &account, &txn.Date, &processed,
		&txn.Name, &txn.Price, &status, &categoryID,
	)
	if err != nil {
		return nil, err
	}

	if account.Valid {
		txn.AccountNumber = &account.String
	}
	if processed.Valid {
		t := processed.Time
		txn.ProcessedDate = &t
	}
	if categoryID.Valid {
		id := categoryID.Int64
		txn.CategoryDefinitionID = &id
	}
	txn.Status = model.TransactionStatus(status)
	return &txn, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
