package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/service"
)

// CreatePairing validates and inserts a pairing. The insert, the
// optional bulk recategorization of selected transactions, and the audit
// log entry commit atomically. A duplicate tuple fails with a conflict
// error carrying the existing pairing's id; the unique index is the
// authority under concurrent creators, the pre-check just produces the
// friendlier error.
func (s *SQLiteStorage) CreatePairing(ctx context.Context, params service.CreatePairingParams) (*service.PairingUpdates, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updates, err := s.createPairingTx(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit pairing: %w", err)
	}
	return updates, nil
}

func (s *SQLiteStorage) createPairingTx(ctx context.Context, tx *sql.Tx, params service.CreatePairingParams) (*service.PairingUpdates, error) {
	if err := validateCreatePairing(params); err != nil {
		return nil, err
	}

	existing, err := s.findPairingByTupleTx(ctx, tx, params.CreditCardVendor, params.CreditCardAccountNumber, params.BankVendor, params.BankAccountNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, common.NewConflictError("pairing", existing.ID)
	}

	patternsJSON, err := json.Marshal(emptyIfNil(params.MatchPatterns))
	if err != nil {
		return nil, fmt.Errorf("failed to encode match patterns: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO account_pairings (
			credit_card_vendor, credit_card_account_number,
			bank_vendor, bank_account_number,
			match_patterns, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`,
		params.CreditCardVendor, params.CreditCardAccountNumber,
		params.BankVendor, params.BankAccountNumber,
		string(patternsJSON), now, now,
	)
	if err != nil {
		// A racing creator can beat the pre-check to the unique index.
		if conflict, lookupErr := s.findPairingByTupleTx(ctx, tx, params.CreditCardVendor, params.CreditCardAccountNumber, params.BankVendor, params.BankAccountNumber); lookupErr == nil && conflict != nil {
			return nil, common.NewConflictError("pairing", conflict.ID)
		}
		return nil, fmt.Errorf("%w: failed to insert pairing: %w", common.ErrStore, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get pairing ID: %w", err)
	}

	updates := &service.PairingUpdates{
		Pairing: &model.Pairing{
			ID:                      id,
			CreditCardVendor:        params.CreditCardVendor,
			CreditCardAccountNumber: params.CreditCardAccountNumber,
			BankVendor:              params.BankVendor,
			BankAccountNumber:       params.BankAccountNumber,
			MatchPatterns:           emptyIfNil(params.MatchPatterns),
			IsActive:                true,
			CreatedAt:               now,
			UpdatedAt:               now,
		},
	}

	if len(params.SelectedTransactionIDs) > 0 {
		repayment, catErr := s.getCategoryByNameTx(ctx, tx, model.CategoryRepaymentName, model.CategoryRepaymentNameEn)
		if catErr != nil {
			return nil, catErr
		}
		refund, catErr := s.getCategoryByNameTx(ctx, tx, model.CategoryRefundName, model.CategoryRefundNameEn)
		if catErr != nil {
			return nil, catErr
		}

		count, bulkErr := s.bulkSetCategoryBySignTx(ctx, tx, params.SelectedTransactionIDs, repayment.ID, refund.ID)
		if bulkErr != nil {
			return nil, bulkErr
		}
		updates.CategorizedCount = count
		updates.RepaymentCategoryID = repayment.ID
	}

	if err := s.appendPairingLogTx(ctx, tx, id, model.LogActionCreate, map[string]any{
		"creditCardVendor":        params.CreditCardVendor,
		"creditCardAccountNumber": params.CreditCardAccountNumber,
		"bankVendor":              params.BankVendor,
		"bankAccountNumber":       params.BankAccountNumber,
		"matchPatterns":           emptyIfNil(params.MatchPatterns),
		"categorizedCount":        updates.CategorizedCount,
	}); err != nil {
		return nil, err
	}

	return updates, nil
}

// GetPairing retrieves a pairing by id.
func (s *SQLiteStorage) GetPairing(ctx context.Context, id int64) (*model.Pairing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getPairingTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getPairingTx(ctx context.Context, q queryable, id int64) (*model.Pairing, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, credit_card_vendor, credit_card_account_number,
		       bank_vendor, bank_account_number, match_patterns,
		       is_active, discrepancy_acknowledged, created_at, updated_at
		FROM account_pairings
		WHERE id = ?
	`, id)

	pairing, err := scanPairing(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pairing: %w", err)
	}
	return pairing, nil
}

// ListPairings returns all pairings, optionally excluding inactive ones.
func (s *SQLiteStorage) ListPairings(ctx context.Context, includeInactive bool) ([]model.Pairing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listPairingsTx(ctx, s.db, includeInactive)
}

func (s *SQLiteStorage) listPairingsTx(ctx context.Context, q queryable, includeInactive bool) ([]model.Pairing, error) {
	query := `
		SELECT id, credit_card_vendor, credit_card_account_number,
		       bank_vendor, bank_account_number, match_patterns,
		       is_active, discrepancy_acknowledged, created_at, updated_at
		FROM account_pairings
	`
	if !includeInactive {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pairings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pairings []model.Pairing
	for rows.Next() {
		pairing, scanErr := scanPairing(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan pairing: %w", scanErr)
		}
		pairings = append(pairings, *pairing)
	}
	return pairings, rows.Err()
}

// UpdatePairing applies a partial update (patterns and/or active flag)
// and logs it.
func (s *SQLiteStorage) UpdatePairing(ctx context.Context, id int64, params service.UpdatePairingParams) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.updatePairingTx(ctx, tx, id, params); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) updatePairingTx(ctx context.Context, tx *sql.Tx, id int64, params service.UpdatePairingParams) error {
	if params.MatchPatterns == nil && params.IsActive == nil {
		return common.NewValidationError("update", "no fields to update")
	}

	query := "UPDATE account_pairings SET updated_at = ?"
	args := []any{time.Now().UTC()}
	logParams := map[string]any{}

	if params.MatchPatterns != nil {
		patternsJSON, err := json.Marshal(emptyIfNil(*params.MatchPatterns))
		if err != nil {
			return fmt.Errorf("failed to encode match patterns: %w", err)
		}
		query += ", match_patterns = ?"
		args = append(args, string(patternsJSON))
		logParams["matchPatterns"] = *params.MatchPatterns
	}
	if params.IsActive != nil {
		query += ", is_active = ?"
		args = append(args, *params.IsActive)
		logParams["isActive"] = *params.IsActive
	}

	query += " WHERE id = ?"
	args = append(args, id)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to update pairing: %w", common.ErrStore, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	return s.appendPairingLogTx(ctx, tx, id, model.LogActionUpdate, logParams)
}

// DeletePairing removes a pairing. The audit log keeps the trail.
func (s *SQLiteStorage) DeletePairing(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.deletePairingTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) deletePairingTx(ctx context.Context, tx *sql.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, "DELETE FROM account_pairings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete pairing: %w", common.ErrStore, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	return s.appendPairingLogTx(ctx, tx, id, model.LogActionDelete, map[string]any{})
}

// SetDiscrepancyAcknowledged flips the pairing-level acknowledgment flag.
func (s *SQLiteStorage) SetDiscrepancyAcknowledged(ctx context.Context, id int64, acknowledged bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.setDiscrepancyAcknowledgedTx(ctx, tx, id, acknowledged); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) setDiscrepancyAcknowledgedTx(ctx context.Context, tx *sql.Tx, id int64, acknowledged bool) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE account_pairings
		SET discrepancy_acknowledged = ?, updated_at = ?
		WHERE id = ?
	`, acknowledged, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("%w: failed to update acknowledgment: %w", common.ErrStore, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	return s.appendPairingLogTx(ctx, tx, id, model.LogActionAcknowledge, map[string]any{
		"acknowledged": acknowledged,
	})
}

// findPairingByTupleTx looks up an active pairing by its identity tuple
// with NULL-safe account-number comparison. Retired pairings don't
// count; the unique index is partial over is_active = 1 to match.
func (s *SQLiteStorage) findPairingByTupleTx(ctx context.Context, q queryable, ccVendor string, ccAccount *string, bankVendor string, bankAccount *string) (*model.Pairing, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, credit_card_vendor, credit_card_account_number,
		       bank_vendor, bank_account_number, match_patterns,
		       is_active, discrepancy_acknowledged, created_at, updated_at
		FROM account_pairings
		WHERE credit_card_vendor = ?
		  AND IFNULL(credit_card_account_number, '') = IFNULL(?, '')
		  AND bank_vendor = ?
		  AND IFNULL(bank_account_number, '') = IFNULL(?, '')
		  AND is_active = 1
	`, ccVendor, ccAccount, bankVendor, bankAccount)

	pairing, err := scanPairing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up pairing tuple: %w", err)
	}
	return pairing, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPairing(row rowScanner) (*model.Pairing, error) {
	var pairing model.Pairing
	var ccAccount, bankAccount sql.NullString
	var patternsJSON string

	err := row.Scan(
		&pairing.ID, &pairing.CreditCardVendor, &ccAccount,
		&pairing.BankVendor, &bankAccount, &patternsJSON,
		&pairing.IsActive, &pairing.DiscrepancyAcknowledged,
		&pairing.CreatedAt, &pairing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ccAccount.Valid {
		pairing.CreditCardAccountNumber = &ccAccount.String
	}
	if bankAccount.Valid {
		pairing.BankAccountNumber = &bankAccount.String
	}
	if err := json.Unmarshal([]byte(patternsJSON), &pairing.MatchPatterns); err != nil {
		return nil, fmt.Errorf("failed to parse match patterns: %w", err)
	}
	return &pairing, nil
}

func emptyIfNil(patterns []string) []string {
	if patterns == nil {
		return []string{}
	}
	return patterns
}
