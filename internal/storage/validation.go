// Package storage provides the SQLite persistence layer for pairings,
// transactions and reconciliation state.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/service"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCreatePairing validates the pairing creation payload.
func validateCreatePairing(params service.CreatePairingParams) error {
	if strings.TrimSpace(params.CreditCardVendor) == "" {
		return common.NewValidationError("creditCardVendor", "required")
	}
	if strings.TrimSpace(params.BankVendor) == "" {
		return common.NewValidationError("bankVendor", "required")
	}
	for _, p := range params.MatchPatterns {
		if strings.TrimSpace(p) == "" {
			return common.NewValidationError("matchPatterns", "patterns must be non-empty")
		}
	}
	return nil
}

// validateTransaction validates a transaction before insertion.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.Identifier == "" {
		return common.NewValidationError("identifier", "required")
	}
	if txn.Vendor == "" {
		return common.NewValidationError("vendor", "required")
	}
	if txn.Name == "" {
		return common.NewValidationError("name", "required")
	}
	if txn.Date.IsZero() {
		return common.NewValidationError("date", "required")
	}
	return nil
}
