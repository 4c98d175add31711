package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/model"
)

// AppendPairingLog writes one audit entry for a pairing mutation. The log
// is append-only and survives pairing deletion.
func (s *SQLiteStorage) AppendPairingLog(ctx context.Context, pairingID int64, action string, params any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.appendPairingLogTx(ctx, tx, pairingID, action, params); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) appendPairingLogTx(ctx context.Context, tx *sql.Tx, pairingID int64, action string, params any) error {
	if err := validateString(action, "action"); err != nil {
		return err
	}

	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode log params: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pairing_log (pairing_id, action, params, created_at)
		VALUES (?, ?, ?, ?)
	`, pairingID, action, string(paramsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to append pairing log: %w", common.ErrStore, err)
	}
	return nil
}

// GetPairingLog returns the audit trail for one pairing, oldest first.
func (s *SQLiteStorage) GetPairingLog(ctx context.Context, pairingID int64) ([]model.PairingLogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getPairingLogTx(ctx, s.db, pairingID)
}

func (s *SQLiteStorage) getPairingLogTx(ctx context.Context, q queryable, pairingID int64) ([]model.PairingLogEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, pairing_id, action, params, created_at
		FROM pairing_log
		WHERE pairing_id = ?
		ORDER BY id ASC
	`, pairingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pairing log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.PairingLogEntry
	for rows.Next() {
		var entry model.PairingLogEntry
		if scanErr := rows.Scan(&entry.ID, &entry.PairingID, &entry.Action, &entry.Params, &entry.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
