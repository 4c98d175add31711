// Package service defines the interfaces between the pairing core and
// its collaborators.
package service

import (
	"context"
	"time"

	"github.com/clarify-app/settle/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
// Nil fields are unconstrained. AccountNumber filters NULL-safe: a nil
// pointer means "any account", a pointer to "" matches rows with a NULL
// account number.
type TransactionFilter struct {
	Vendor        string
	AccountNumber *string
	StartDate     *time.Time
	EndDate       *time.Time
	OnlyExpenses  bool
	OnlyCompleted bool
	NamePatterns  []string // SQL LIKE fragments, OR-ed; coarse pre-filter
	Limit         int
}

// BankAccountRef identifies one bank vendor/account pair seen in the
// transaction table.
type BankAccountRef struct {
	AccountNumber *string
	Vendor        string
}

// CreatePairingParams is the payload for pairing creation.
type CreatePairingParams struct {
	CreditCardAccountNumber *string
	BankAccountNumber       *string
	CreditCardVendor        string
	BankVendor              string
	MatchPatterns           []string
	SelectedTransactionIDs  []string
}

// UpdatePairingParams is a partial pairing update; nil fields are left
// unchanged.
type UpdatePairingParams struct {
	MatchPatterns *[]string
	IsActive      *bool
}

// PairingUpdates carries the results of a create that also recategorized
// transactions.
type PairingUpdates struct {
	Pairing             *model.Pairing
	CategorizedCount    int64
	RepaymentCategoryID int64
}

// CycleException is a persisted pairing-scoped resolution for one cycle.
type CycleException struct {
	CreatedAt time.Time
	CycleDate string
	Kind      string // "ignore" or "fee"
	FeeTxnID  string // set for kind "fee"
	ID        int64
	PairingID int64
}

// Exception kinds.
const (
	ExceptionIgnore = "ignore"
	ExceptionFee    = "fee"
)

// Storage defines the contract for the persistence layer consumed by the
// pairing core.
type Storage interface {
	// Pairing operations
	CreatePairing(ctx context.Context, params CreatePairingParams) (*PairingUpdates, error)
	GetPairing(ctx context.Context, id int64) (*model.Pairing, error)
	ListPairings(ctx context.Context, includeInactive bool) ([]model.Pairing, error)
	UpdatePairing(ctx context.Context, id int64, params UpdatePairingParams) error
	DeletePairing(ctx context.Context, id int64) error
	SetDiscrepancyAcknowledged(ctx context.Context, id int64, acknowledged bool) error

	// Pairing audit log
	AppendPairingLog(ctx context.Context, pairingID int64, action string, params any) error
	GetPairingLog(ctx context.Context, pairingID int64) ([]model.PairingLogEntry, error)

	// Transaction queries (read-only contract with the ingestion layer)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetBankAccounts(ctx context.Context, excludeVendors []string) ([]BankAccountRef, error)
	GetEarliestBillingDate(ctx context.Context, vendor string, accountNumber *string, excludeCategoryID *int64) (*time.Time, error)

	// Category operations
	GetCategoryByName(ctx context.Context, names ...string) (*model.CategoryDefinition, error)
	BulkSetCategory(ctx context.Context, transactionIDs []string, categoryID int64) (int64, error)

	// Synthetic transactions (fee resolutions)
	InsertTransaction(ctx context.Context, txn *model.Transaction) error

	// Cycle exceptions
	AddCycleException(ctx context.Context, exc CycleException) error
	GetCycleExceptions(ctx context.Context, pairingID int64) ([]CycleException, error)

	// Expense matches
	SaveExpenseMatches(ctx context.Context, matches []model.ExpenseMatch) error
	GetMatchedExpenseIDs(ctx context.Context, expenseVendor string) (map[string]bool, error)
	ClearExpenseMatches(ctx context.Context) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction scoped over the Storage
// operations that participate in multi-statement mutations.
type Transaction interface {
	Commit() error
	Rollback() error
	Storage
}
