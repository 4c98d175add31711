package model

// AccountType is a coarse institutional classification used by the
// pattern catalog and the account matcher.
type AccountType string

// Known account types.
const (
	AccountTypeBank       AccountType = "bank"
	AccountTypeCreditCard AccountType = "creditCard"
	AccountTypePension    AccountType = "pension"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeInvestment AccountType = "investment"
)

// MatchType distinguishes which catalog list produced a match.
type MatchType string

// Match types.
const (
	MatchTypeKeyword MatchType = "keyword"
	MatchTypePattern MatchType = "pattern"
)

// TransactionMatch is one transaction that matched a catalog pattern.
type TransactionMatch struct {
	Transaction Transaction
	Pattern     string
	Confidence  float64
}

// MatchResult is the account matcher's verdict for a name or a set of
// transaction descriptions. Match is true iff Confidence > 0.5.
type MatchResult struct {
	Pattern    *string
	MatchType  MatchType
	Matches    []TransactionMatch
	Confidence float64
	Match      bool
}

// ExpenseMatch records that a specific card expense was covered by a
// specific bank repayment, as computed by the expense matcher.
type ExpenseMatch struct {
	RepaymentID     string
	RepaymentVendor string
	ExpenseID       string
	ExpenseVendor   string
	CardNumber      string
	Method          string // sauvage_payment, auto_chronological, carryover
	Confidence      float64
}

// Expense match methods.
const (
	MatchMethodSauvage       = "sauvage_payment"
	MatchMethodChronological = "auto_chronological"
	MatchMethodCarryover     = "carryover"
)
