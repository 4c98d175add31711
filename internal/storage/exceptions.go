package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/service"
)

// AddCycleException records one cycle resolution (ignore or fee) for a
// pairing. Re-adding the same resolution is a no-op, which makes the
// resolver operations idempotent.
func (s *SQLiteStorage) AddCycleException(ctx context.Context, exc service.CycleException) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.addCycleExceptionTx(ctx, tx, exc); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) addCycleExceptionTx(ctx context.Context, tx *sql.Tx, exc service.CycleException) error {
	if err := validateString(exc.CycleDate, "cycleDate"); err != nil {
		return err
	}
	if exc.Kind != service.ExceptionIgnore && exc.Kind != service.ExceptionFee {
		return common.NewValidationError("kind", "must be ignore or fee")
	}

	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO pairing_cycle_exceptions
			(pairing_id, cycle_date, kind, fee_txn_identifier, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, exc.PairingID, exc.CycleDate, exc.Kind, exc.FeeTxnID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to add cycle exception: %w", common.ErrStore, err)
	}
	return nil
}

// GetCycleExceptions returns all cycle resolutions for a pairing.
func (s *SQLiteStorage) GetCycleExceptions(ctx context.Context, pairingID int64) ([]service.CycleException, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCycleExceptionsTx(ctx, s.db, pairingID)
}

func (s *SQLiteStorage) getCycleExceptionsTx(ctx context.Context, q queryable, pairingID int64) ([]service.CycleException, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, pairing_id, cycle_date, kind, fee_txn_identifier, created_at
		FROM pairing_cycle_exceptions
		WHERE pairing_id = ?
		ORDER BY cycle_date ASC, id ASC
	`, pairingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle exceptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var exceptions []service.CycleException
	for rows.Next() {
		var exc service.CycleException
		if scanErr := rows.Scan(&exc.ID, &exc.PairingID, &exc.CycleDate, &exc.Kind, &exc.FeeTxnID, &exc.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan cycle exception: %w", scanErr)
		}
		exceptions = append(exceptions, exc)
	}
	return exceptions, rows.Err()
}
