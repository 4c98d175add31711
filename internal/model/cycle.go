package model

import "github.com/shopspring/decimal"

// CycleStatus classifies how well one billing cycle's bank repayments
// line up with the card statement they should be paying off.
type CycleStatus string

// Cycle statuses, ordered roughly by severity.
const (
	CycleMatched           CycleStatus = "matched"
	CycleMissingCCCycle    CycleStatus = "missing_cc_cycle"
	CycleFeeCandidate      CycleStatus = "fee_candidate"
	CycleCCOverBank        CycleStatus = "cc_over_bank"
	CycleLargeDiscrepancy  CycleStatus = "large_discrepancy"
	CycleIncompleteHistory CycleStatus = "incomplete_history"
)

// Actionable reports whether the status should surface as a discrepancy
// the user is expected to resolve.
func (s CycleStatus) Actionable() bool {
	switch s {
	case CycleFeeCandidate, CycleCCOverBank, CycleLargeDiscrepancy, CycleMissingCCCycle:
		return true
	}
	return false
}

// Cycle is one billing period's worth of bank repayments matched against
// the card-side statement total. CCTotal is nil when the card has no
// transactions billed in the period at all, which signals missing history
// rather than a zero balance.
type Cycle struct {
	CCTotal          *decimal.Decimal
	Difference       *decimal.Decimal // bank net minus card total; positive means the bank collected more
	CycleDate        string           // YYYY-MM-DD statement/cutoff date
	Status           CycleStatus
	BankRepayments   []Transaction
	BankPaymentTotal decimal.Decimal
	BankRefundTotal  decimal.Decimal
	Resolved         bool // an ignore exception suppresses this cycle from aggregates
}

// BankNetTotal is payments minus refunds for the cycle.
func (c *Cycle) BankNetTotal() decimal.Decimal {
	return c.BankPaymentTotal.Sub(c.BankRefundTotal)
}

// DiscrepancyReport aggregates cycle-level mismatches for one pairing.
type DiscrepancyReport struct {
	TotalBankRepayments  decimal.Decimal
	TotalCCExpenses      decimal.Decimal
	Difference           decimal.Decimal
	DifferencePercentage decimal.Decimal
	Reason               string
	Cycles               []Cycle
	MatchPatternsUsed    []string
	PeriodMonths         int
	MatchedCycleCount    int
	Exists               bool
	Acknowledged         bool
}
