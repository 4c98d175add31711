package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clarify-app/settle/internal/match"
	"github.com/clarify-app/settle/internal/model"
)

// Expense-matching tuning.
var (
	// fillTolerance is how close the accumulated expense sum must get to
	// the repayment amount before the fill stops.
	fillTolerance = decimal.NewFromInt(2)
	// immediateMinAmount marks repayments large enough to be an
	// immediate (non-statement) payoff when an exact twin exists.
	immediateMinAmount = decimal.NewFromInt(1000)
)

const (
	// immediateDayCutoff: statement debits land early in the month, so a
	// repayment after this day of month is suspect of being immediate.
	immediateDayCutoff = 15
	// immediateWindowDays bounds how far back an exact-amount twin may be.
	immediateWindowDays = 7
	// carryoverDays is how long an unbilled expense stays eligible for a
	// later repayment.
	carryoverDays = 90
)

// ExpenseMatcher explains which card expenses a bank repayment covers.
// Each expense is covered at most once.
type ExpenseMatcher struct{}

// NewExpenseMatcher creates an expense matcher.
func NewExpenseMatcher() *ExpenseMatcher {
	return &ExpenseMatcher{}
}

// MatchExpenses walks repayments chronologically and attributes card
// expenses to each. Immediate payoffs (a single expense repaid directly,
// outside the statement rhythm) are detected first; the rest fill from
// the previous calendar month's expenses, with a carryover window for
// expenses the earlier statements never covered. alreadyMatched holds
// expense identifiers covered in previous runs.
func (m *ExpenseMatcher) MatchExpenses(repayments, expenses []model.Transaction, alreadyMatched map[string]bool) []model.ExpenseMatch {
	used := make(map[string]bool, len(alreadyMatched))
	for id := range alreadyMatched {
		used[id] = true
	}

	sortedRepayments := make([]model.Transaction, len(repayments))
	copy(sortedRepayments, repayments)
	sort.SliceStable(sortedRepayments, func(i, j int) bool {
		return sortedRepayments[i].Date.Before(sortedRepayments[j].Date)
	})

	sortedExpenses := make([]model.Transaction, len(expenses))
	copy(sortedExpenses, expenses)
	sort.SliceStable(sortedExpenses, func(i, j int) bool {
		return sortedExpenses[i].BillingDate().Before(sortedExpenses[j].BillingDate())
	})

	var matches []model.ExpenseMatch
	for _, repayment := range sortedRepayments {
		if twin := m.findImmediateTwin(repayment, sortedExpenses, used); twin != nil {
			used[twin.Identifier] = true
			matches = append(matches, newMatch(repayment, *twin, model.MatchMethodSauvage, 1.0))
			continue
		}
		matches = append(matches, m.fillStatement(repayment, sortedExpenses, used)...)
	}
	return matches
}

// findImmediateTwin looks for a single expense repaid directly rather
// than through a statement: the repayment lands late in the month and an
// unused expense of exactly the same amount exists, either inside a
// short window or large enough that coincidence is implausible.
func (m *ExpenseMatcher) findImmediateTwin(repayment model.Transaction, expenses []model.Transaction, used map[string]bool) *model.Transaction {
	if repayment.Date.Day() <= immediateDayCutoff {
		return nil
	}

	amount := repayment.Price.Abs()
	window := time.Duration(immediateWindowDays) * 24 * time.Hour

	for i := range expenses {
		expense := &expenses[i]
		if used[expense.Identifier] || !expense.Price.Abs().Equal(amount) {
			continue
		}
		gap := repayment.Date.Sub(expense.Date)
		if gap >= 0 && gap <= window {
			return expense
		}
		if amount.GreaterThan(immediateMinAmount) && gap >= 0 && gap <= time.Duration(carryoverDays)*24*time.Hour {
			return expense
		}
	}
	return nil
}

// fillStatement attributes expenses from the repayment's billing period,
// the previous calendar month, in chronological order until the
// repayment amount is covered. Unbilled expenses up to carryoverDays old
// may fill the remainder.
func (m *ExpenseMatcher) fillStatement(repayment model.Transaction, expenses []model.Transaction, used map[string]bool) []model.ExpenseMatch {
	periodStart, periodEnd := previousMonth(repayment.Date)
	carryoverStart := repayment.Date.AddDate(0, 0, -carryoverDays)

	amount := repayment.Price.Abs()
	target := amount.Sub(fillTolerance)
	var covered decimal.Decimal
	var matches []model.ExpenseMatch

	take := func(expense model.Transaction, method string, confidence float64) {
		used[expense.Identifier] = true
		covered = covered.Add(expense.Price.Abs())
		matches = append(matches, newMatch(repayment, expense, method, confidence))
	}

	for _, expense := range expenses {
		if covered.GreaterThanOrEqual(target) {
			break
		}
		if used[expense.Identifier] || !expense.IsExpense() {
			continue
		}

		billed := expense.BillingDate()
		switch {
		case !billed.Before(periodStart) && !billed.After(periodEnd):
			take(expense, model.MatchMethodChronological, 0.9)
		case billed.Before(periodStart) && !billed.Before(carryoverStart):
			take(expense, model.MatchMethodCarryover, 0.6)
		}
	}
	return matches
}

func newMatch(repayment, expense model.Transaction, method string, confidence float64) model.ExpenseMatch {
	return model.ExpenseMatch{
		RepaymentID:     repayment.Identifier,
		RepaymentVendor: repayment.Vendor,
		ExpenseID:       expense.Identifier,
		ExpenseVendor:   expense.Vendor,
		CardNumber:      match.AccountLast4(expense.AccountNumber),
		Method:          method,
		Confidence:      confidence,
	}
}

// previousMonth returns the first and last instant of the calendar month
// before the given date, in UTC.
func previousMonth(date time.Time) (time.Time, time.Time) {
	d := date.UTC()
	firstOfThis := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := firstOfThis.AddDate(0, -1, 0)
	end := firstOfThis.Add(-time.Nanosecond)
	return start, end
}

// RunExpenseMatching loads one pairing's repayments and card expenses,
// computes coverage, and persists the result. Returns the matches saved
// in this run.
func (r *Resolver) RunExpenseMatching(ctx context.Context, pairingID int64) ([]model.ExpenseMatch, error) {
	pairing, err := r.store.GetPairing(ctx, pairingID)
	if err != nil {
		return nil, err
	}
	if len(pairing.MatchPatterns) == 0 {
		return nil, nil
	}

	now := r.now().UTC()
	windowStart := now.AddDate(0, -r.periodMonths, 0)
	input, err := r.loadInput(ctx, pairing, windowStart, now)
	if err != nil {
		return nil, err
	}

	repayments := r.reconciler.SelectRepayments(pairing.MatchPatterns, input.BankTransactions)
	if len(repayments) == 0 {
		return nil, nil
	}

	alreadyMatched, err := r.store.GetMatchedExpenseIDs(ctx, pairing.CreditCardVendor)
	if err != nil {
		return nil, err
	}

	matcher := NewExpenseMatcher()
	matches := matcher.MatchExpenses(repayments, input.CardExpenses, alreadyMatched)
	if len(matches) == 0 {
		return nil, nil
	}

	if err := r.store.SaveExpenseMatches(ctx, matches); err != nil {
		return nil, fmt.Errorf("failed to save expense matches: %w", err)
	}
	return matches, nil
}
