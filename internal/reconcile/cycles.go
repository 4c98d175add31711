// Package reconcile matches credit-card billing cycles against the bank
// transactions that repay them and turns the differences into
// resolvable discrepancies.
package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/service"
	"github.com/clarify-app/settle/internal/textnorm"
)

// Classification thresholds, in shekels where absolute.
var (
	// toleranceAbs is the absolute gap still considered matched.
	toleranceAbs = decimal.NewFromInt(1)
	// tolerancePct is the relative gap still considered matched (0.5%).
	tolerancePct = decimal.NewFromFloat(0.005)
	// maxFeeAmount bounds what a plausible uncaptured fee looks like.
	maxFeeAmount = decimal.NewFromInt(200)
	// largeAbs and largePct mark the high-severity band.
	largeAbs = decimal.NewFromInt(500)
	largePct = decimal.NewFromFloat(0.20)
)

// graceDays is how long after the earliest known card history, and how
// close to now, a cycle is considered too young to judge.
const graceDays = 14

// ReconcileInput is everything the cycle reconciler needs. It is
// assembled by the resolver from the store; the reconciler itself never
// touches persistence.
type ReconcileInput struct {
	// MatchPatterns are the pairing's case-insensitive substrings. Empty
	// means the pairing matches no bank transactions at all.
	MatchPatterns []string
	// BankTransactions is the bank vendor/account side of the pairing.
	BankTransactions []model.Transaction
	// CardExpenses is the card side, outflows only.
	CardExpenses []model.Transaction
	// Exceptions are persisted per-cycle resolutions.
	Exceptions []service.CycleException
	// EarliestCardDate is the first billing date seen for the card, nil
	// when the card has no history at all.
	EarliestCardDate *time.Time
	// Now anchors the recent-cycle grace window.
	Now time.Time
}

// Reconciler computes billing cycles for one pairing. It is a pure
// function of its input and can be re-run as new transactions arrive.
type Reconciler struct{}

// NewReconciler creates a cycle reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// SelectRepayments filters the bank side down to transactions whose
// normalized name contains at least one match pattern.
func (r *Reconciler) SelectRepayments(patterns []string, bankTxns []model.Transaction) []model.Transaction {
	if len(patterns) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if np := textnorm.Normalize(p); np != "" {
			normalized = append(normalized, np)
		}
	}

	var repayments []model.Transaction
	for _, txn := range bankTxns {
		name := textnorm.Normalize(txn.Name)
		for _, p := range normalized {
			if strings.Contains(name, p) {
				repayments = append(repayments, txn)
				break
			}
		}
	}
	return repayments
}

// BuildCycles groups repayments into billing cycles, matches each cycle
// against the card-side statement total, and classifies the result.
// Cycles are returned oldest first.
func (r *Reconciler) BuildCycles(input ReconcileInput) []model.Cycle {
	repayments := r.SelectRepayments(input.MatchPatterns, input.BankTransactions)
	if len(repayments) == 0 {
		return nil
	}

	byCycle := make(map[string][]model.Transaction)
	for _, txn := range repayments {
		key := txn.CycleKey()
		byCycle[key] = append(byCycle[key], txn)
	}

	ccTotals := cardTotalsByCycle(input.CardExpenses)
	ignored := make(map[string]bool)
	for _, exc := range input.Exceptions {
		if exc.Kind == service.ExceptionIgnore {
			ignored[exc.CycleDate] = true
		}
	}

	keys := make([]string, 0, len(byCycle))
	for key := range byCycle {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	cycles := make([]model.Cycle, 0, len(keys))
	for _, key := range keys {
		cycle := r.buildCycle(key, byCycle[key], ccTotals, input)
		cycle.Resolved = ignored[key]
		cycles = append(cycles, cycle)
	}
	return cycles
}

func (r *Reconciler) buildCycle(cycleDate string, repayments []model.Transaction, ccTotals map[string]decimal.Decimal, input ReconcileInput) model.Cycle {
	cycle := model.Cycle{CycleDate: cycleDate, BankRepayments: repayments}

	for _, txn := range repayments {
		if txn.IsExpense() {
			cycle.BankPaymentTotal = cycle.BankPaymentTotal.Add(txn.Price.Abs())
		} else {
			cycle.BankRefundTotal = cycle.BankRefundTotal.Add(txn.Price)
		}
	}

	if total, ok := ccTotals[cycleDate]; ok {
		t := total
		cycle.CCTotal = &t
		diff := cycle.BankNetTotal().Sub(total)
		cycle.Difference = &diff
	}

	cycle.Status = r.classify(&cycle, input)
	return cycle
}

// classify decides the cycle status. History grace wins over everything
// so a card whose statements haven't arrived yet doesn't alarm; the
// large band supersedes the fee and under-payment bands.
func (r *Reconciler) classify(cycle *model.Cycle, input ReconcileInput) model.CycleStatus {
	if withinGrace(cycle.CycleDate, input.EarliestCardDate, input.Now) {
		return model.CycleIncompleteHistory
	}
	if cycle.CCTotal == nil {
		return model.CycleMissingCCCycle
	}

	diff := *cycle.Difference
	absDiff := diff.Abs()
	ccTotal := *cycle.CCTotal

	tolerance := toleranceAbs
	if relative := ccTotal.Mul(tolerancePct); relative.LessThan(tolerance) && relative.IsPositive() {
		tolerance = relative
	}
	if absDiff.LessThanOrEqual(tolerance) {
		return model.CycleMatched
	}

	large := absDiff.GreaterThan(largeAbs)
	if ccTotal.IsPositive() && absDiff.Div(ccTotal).GreaterThan(largePct) {
		large = true
	}
	if large {
		return model.CycleLargeDiscrepancy
	}

	if diff.IsPositive() {
		if diff.LessThanOrEqual(maxFeeAmount) {
			return model.CycleFeeCandidate
		}
		return model.CycleLargeDiscrepancy
	}
	return model.CycleCCOverBank
}

// cardTotalsByCycle sums card-side expenses per billing-cycle key. A
// cycle key absent from the map means the card has no rows billed on
// that date at all, which is the missing-history signal.
func cardTotalsByCycle(expenses []model.Transaction) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, txn := range expenses {
		if !txn.IsExpense() {
			continue
		}
		key := txn.CycleKey()
		totals[key] = totals[key].Add(txn.Price.Abs())
	}
	return totals
}

// withinGrace reports whether the cycle sits inside the early or recent
// grace window, where a missing or short card statement is expected
// rather than suspicious.
func withinGrace(cycleDate string, earliestCard *time.Time, now time.Time) bool {
	date, err := time.Parse("2006-01-02", cycleDate)
	if err != nil {
		return false
	}

	grace := graceDays * 24 * time.Hour
	if earliestCard != nil && date.Before(earliestCard.UTC().Add(grace)) {
		return true
	}
	return !now.IsZero() && date.After(now.UTC().Add(-grace))
}
