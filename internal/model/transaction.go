// Package model defines the core domain types shared across the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus marks whether a scraped transaction has settled.
type TransactionStatus string

// Transaction statuses as produced by the ingestion layer.
const (
	StatusCompleted TransactionStatus = "completed"
	StatusPending   TransactionStatus = "pending"
)

// Transaction is a single scraped bank or credit-card transaction.
// Negative Price is an outflow (expense or repayment), positive is an
// inflow (refund or income). The core treats transactions as read-only
// except for category reassignment.
type Transaction struct {
	Date                 time.Time
	ProcessedDate        *time.Time // billing date on card statements, nil for bank rows
	AccountNumber        *string
	CategoryDefinitionID *int64
	Identifier           string
	Vendor               string
	Name                 string
	Status               TransactionStatus
	Price                decimal.Decimal
}

// BillingDate returns the date a card transaction was billed on: the
// processed date when the issuer reports one, the transaction date
// otherwise. Bank rows have no processed date, so this is their raw date.
func (t *Transaction) BillingDate() time.Time {
	if t.ProcessedDate != nil {
		return *t.ProcessedDate
	}
	return t.Date
}

// CycleKey returns the billing-cycle key for this transaction: the
// calendar date (UTC, YYYY-MM-DD) of its billing date.
func (t *Transaction) CycleKey() string {
	return t.BillingDate().UTC().Format("2006-01-02")
}

// IsExpense reports whether the transaction is an outflow.
func (t *Transaction) IsExpense() bool {
	return t.Price.IsNegative()
}
