package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/model"
)

// SaveExpenseMatches persists expense-to-repayment matches. Each expense
// can be covered at most once; a match for an already-covered expense is
// ignored rather than rewritten.
func (s *SQLiteStorage) SaveExpenseMatches(ctx context.Context, matches []model.ExpenseMatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveExpenseMatchesTx(ctx, tx, matches); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) saveExpenseMatchesTx(ctx context.Context, tx *sql.Tx, matches []model.ExpenseMatch) error {
	if len(matches) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO cc_expense_matches
			(repayment_txn_id, repayment_vendor, expense_txn_id, expense_vendor,
			 card_number, match_method, match_confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare match insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, m := range matches {
		if m.ExpenseID == "" || m.RepaymentID == "" {
			return common.NewValidationError("expenseMatch", "repayment and expense ids required")
		}
		if _, execErr := stmt.ExecContext(ctx,
			m.RepaymentID, m.RepaymentVendor, m.ExpenseID, m.ExpenseVendor,
			m.CardNumber, m.Method, m.Confidence, now,
		); execErr != nil {
			return fmt.Errorf("%w: failed to save expense match: %w", common.ErrStore, execErr)
		}
	}
	return nil
}

// GetMatchedExpenseIDs returns the set of expense identifiers already
// covered by a repayment for one card vendor.
func (s *SQLiteStorage) GetMatchedExpenseIDs(ctx context.Context, expenseVendor string) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getMatchedExpenseIDsTx(ctx, s.db, expenseVendor)
}

func (s *SQLiteStorage) getMatchedExpenseIDsTx(ctx context.Context, q queryable, expenseVendor string) (map[string]bool, error) {
	if err := validateString(expenseVendor, "expenseVendor"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT expense_txn_id FROM cc_expense_matches WHERE expense_vendor = ?
	`, expenseVendor)
	if err != nil {
		return nil, fmt.Errorf("failed to query matched expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matched := make(map[string]bool)
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan expense id: %w", scanErr)
		}
		matched[id] = true
	}
	return matched, rows.Err()
}

// ClearExpenseMatches removes all stored expense matches so the matcher
// can be re-run from scratch.
func (s *SQLiteStorage) ClearExpenseMatches(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM cc_expense_matches")
	if err != nil {
		return fmt.Errorf("%w: failed to clear expense matches: %w", common.ErrStore, err)
	}
	return nil
}
