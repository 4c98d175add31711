package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/match"
	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/service"
	"github.com/clarify-app/settle/internal/textnorm"
)

// DefaultPeriodMonths is the lookback window for discrepancy reports.
const DefaultPeriodMonths = 12

// Resolver computes discrepancy reports and applies user resolutions.
type Resolver struct {
	store        service.Storage
	reconciler   *Reconciler
	periodMonths int
	now          func() time.Time
}

// NewResolver creates a resolver over the given store.
func NewResolver(store service.Storage) *Resolver {
	return &Resolver{
		store:        store,
		reconciler:   NewReconciler(),
		periodMonths: DefaultPeriodMonths,
		now:          time.Now,
	}
}

// WithPeriodMonths overrides the lookback window.
func (r *Resolver) WithPeriodMonths(months int) *Resolver {
	if months > 0 {
		r.periodMonths = months
	}
	return r
}

// WithClock overrides the clock, for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Compute builds the discrepancy report for one pairing. A pairing with
// no bank-side matches yet yields an empty report, not an error.
func (r *Resolver) Compute(ctx context.Context, pairingID int64) (*model.DiscrepancyReport, error) {
	pairing, err := r.store.GetPairing(ctx, pairingID)
	if err != nil {
		return nil, err
	}

	report := &model.DiscrepancyReport{
		PeriodMonths:      r.periodMonths,
		MatchPatternsUsed: pairing.MatchPatterns,
		Acknowledged:      pairing.DiscrepancyAcknowledged,
	}
	if len(pairing.MatchPatterns) == 0 {
		return report, nil
	}

	now := r.now().UTC()
	windowStart := now.AddDate(0, -r.periodMonths, 0)

	input, err := r.loadInput(ctx, pairing, windowStart, now)
	if err != nil {
		return nil, err
	}
	if err := r.allocateSharedBank(ctx, pairing, &input, windowStart); err != nil {
		return nil, err
	}

	cycles := r.reconciler.BuildCycles(input)
	if len(cycles) == 0 {
		return report, nil
	}
	report.Cycles = cycles

	r.aggregate(report)
	return report, nil
}

func (r *Resolver) loadInput(ctx context.Context, pairing *model.Pairing, windowStart, now time.Time) (ReconcileInput, error) {
	sqlPatterns := make([]string, 0, len(pairing.MatchPatterns))
	for _, p := range pairing.MatchPatterns {
		sqlPatterns = append(sqlPatterns, textnorm.LikeContains(p))
	}

	bankTxns, err := r.store.GetTransactions(ctx, service.TransactionFilter{
		Vendor:        pairing.BankVendor,
		AccountNumber: accountFilter(pairing.BankAccountNumber),
		StartDate:     &windowStart,
		NamePatterns:  sqlPatterns,
		OnlyCompleted: true,
	})
	if err != nil {
		return ReconcileInput{}, fmt.Errorf("failed to load bank transactions: %w", err)
	}

	// The card window reaches one month further back so the first bank
	// cycle in the window still finds its statement.
	cardStart := windowStart.AddDate(0, -1, 0)
	cardExpenses, err := r.store.GetTransactions(ctx, service.TransactionFilter{
		Vendor:        pairing.CreditCardVendor,
		AccountNumber: accountFilter(pairing.CreditCardAccountNumber),
		StartDate:     &cardStart,
		OnlyExpenses:  true,
		OnlyCompleted: true,
	})
	if err != nil {
		return ReconcileInput{}, fmt.Errorf("failed to load card transactions: %w", err)
	}

	exceptions, err := r.store.GetCycleExceptions(ctx, pairing.ID)
	if err != nil {
		return ReconcileInput{}, fmt.Errorf("failed to load cycle exceptions: %w", err)
	}

	earliest, err := r.store.GetEarliestBillingDate(ctx, pairing.CreditCardVendor, pairing.CreditCardAccountNumber, nil)
	if err != nil {
		return ReconcileInput{}, fmt.Errorf("failed to load card history range: %w", err)
	}

	return ReconcileInput{
		MatchPatterns:    pairing.MatchPatterns,
		BankTransactions: bankTxns,
		CardExpenses:     cardExpenses,
		Exceptions:       exceptions,
		EarliestCardDate: earliest,
		Now:              now,
	}, nil
}

// allocateSharedBank handles pairings that settle from the same bank
// account. When other active pairings share this pairing's bank
// vendor/account, each bank debit must belong to exactly one pairing or
// the group's reports would double-count it. The repayments matching
// any group member's patterns are allocated across the group, and the
// input keeps only the ones this pairing wins. A lone pairing is left
// untouched.
func (r *Resolver) allocateSharedBank(ctx context.Context, pairing *model.Pairing, input *ReconcileInput, windowStart time.Time) error {
	pairings, err := r.store.ListPairings(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list pairings: %w", err)
	}

	group := make([]model.Pairing, 0, len(pairings))
	for i := range pairings {
		p := &pairings[i]
		if p.BankVendor == pairing.BankVendor && sameAccount(p.BankAccountNumber, pairing.BankAccountNumber) {
			group = append(group, *p)
		}
	}
	if len(group) < 2 {
		return nil
	}

	seen := make(map[string]bool)
	var sqlPatterns []string
	var patternUnion []string
	for _, p := range group {
		patternUnion = append(patternUnion, p.MatchPatterns...)
		for _, pat := range p.MatchPatterns {
			np := textnorm.Normalize(pat)
			if np == "" || seen[np] {
				continue
			}
			seen[np] = true
			sqlPatterns = append(sqlPatterns, textnorm.LikeContains(pat))
		}
	}

	bankTxns, err := r.store.GetTransactions(ctx, service.TransactionFilter{
		Vendor:        pairing.BankVendor,
		AccountNumber: accountFilter(pairing.BankAccountNumber),
		StartDate:     &windowStart,
		NamePatterns:  sqlPatterns,
		OnlyCompleted: true,
	})
	if err != nil {
		return fmt.Errorf("failed to load shared bank transactions: %w", err)
	}
	repayments := r.reconciler.SelectRepayments(patternUnion, bankTxns)

	cardStart := windowStart.AddDate(0, -1, 0)
	targets := make([]AllocationTarget, 0, len(group))
	for _, p := range group {
		expenses := input.CardExpenses
		if p.ID != pairing.ID {
			expenses, err = r.store.GetTransactions(ctx, service.TransactionFilter{
				Vendor:        p.CreditCardVendor,
				AccountNumber: accountFilter(p.CreditCardAccountNumber),
				StartDate:     &cardStart,
				OnlyExpenses:  true,
				OnlyCompleted: true,
			})
			if err != nil {
				return fmt.Errorf("failed to load card transactions for pairing %d: %w", p.ID, err)
			}
		}
		targets = append(targets, AllocationTarget{
			PairingID:      p.ID,
			CardLast4:      match.AccountLast4(p.CreditCardAccountNumber),
			VendorKeywords: p.MatchPatterns,
			CCTotals:       cardTotalsByCycle(expenses),
		})
	}

	allocations := AllocateBankGroup(repayments, targets)
	mine := make([]model.Transaction, 0, len(allocations))
	for _, a := range allocations {
		if a.PairingID == pairing.ID {
			mine = append(mine, a.Transaction)
		}
	}
	input.BankTransactions = mine
	return nil
}

func sameAccount(a, b *string) bool {
	return *accountFilter(a) == *accountFilter(b)
}

// aggregate rolls cycle results up to pairing level. Resolved and
// incomplete cycles stay visible but don't count toward the totals or
// the exists flag; cycles without a card statement can't contribute a
// comparable total either.
func (r *Resolver) aggregate(report *model.DiscrepancyReport) {
	var worst model.CycleStatus
	for i := range report.Cycles {
		cycle := &report.Cycles[i]

		if cycle.Status.Actionable() && !cycle.Resolved {
			report.Exists = true
			if severity(cycle.Status) > severity(worst) {
				worst = cycle.Status
			}
		}

		if cycle.Resolved || cycle.Status == model.CycleIncompleteHistory || cycle.CCTotal == nil {
			continue
		}
		report.TotalBankRepayments = report.TotalBankRepayments.Add(cycle.BankNetTotal())
		report.TotalCCExpenses = report.TotalCCExpenses.Add(*cycle.CCTotal)
		if cycle.Status == model.CycleMatched {
			report.MatchedCycleCount++
		}
	}

	report.Difference = report.TotalBankRepayments.Sub(report.TotalCCExpenses)
	if report.TotalCCExpenses.IsPositive() {
		report.DifferencePercentage = report.Difference.Abs().
			Div(report.TotalCCExpenses).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	if report.Exists {
		report.Reason = string(worst)
	}
}

func severity(status model.CycleStatus) int {
	switch status {
	case model.CycleLargeDiscrepancy:
		return 4
	case model.CycleCCOverBank:
		return 3
	case model.CycleMissingCCCycle:
		return 2
	case model.CycleFeeCandidate:
		return 1
	}
	return 0
}

// IgnoreCycle persists an exception so future reports suppress the
// cycle's contribution to aggregates. Repeated calls are no-ops.
func (r *Resolver) IgnoreCycle(ctx context.Context, pairingID int64, cycleDate string) error {
	if _, err := time.Parse("2006-01-02", cycleDate); err != nil {
		return common.NewValidationError("cycleDate", "must be YYYY-MM-DD")
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.GetPairing(ctx, pairingID); err != nil {
		return err
	}
	if err := tx.AddCycleException(ctx, service.CycleException{
		PairingID: pairingID,
		CycleDate: cycleDate,
		Kind:      service.ExceptionIgnore,
	}); err != nil {
		return err
	}
	if err := tx.AppendPairingLog(ctx, pairingID, model.LogActionIgnoreCycle, map[string]any{
		"cycleDate": cycleDate,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// AddFeeForCycle records an unexplained gap as a synthetic fee
// transaction on the card side. A second call for the same cycle is a
// no-op; re-running Compute afterwards sees the fee inside the card
// total and the cycle converges to matched.
func (r *Resolver) AddFeeForCycle(ctx context.Context, pairingID int64, cycleDate string, amount decimal.Decimal, feeName string) error {
	if !amount.IsPositive() {
		return common.NewValidationError("amount", "must be positive")
	}
	date, err := time.Parse("2006-01-02", cycleDate)
	if err != nil {
		return common.NewValidationError("cycleDate", "must be YYYY-MM-DD")
	}
	if feeName == "" {
		return common.NewValidationError("feeName", "required")
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	pairing, err := tx.GetPairing(ctx, pairingID)
	if err != nil {
		return err
	}

	exceptions, err := tx.GetCycleExceptions(ctx, pairingID)
	if err != nil {
		return err
	}
	for _, exc := range exceptions {
		if exc.CycleDate == cycleDate && exc.Kind == service.ExceptionFee {
			return nil
		}
	}

	feeCategory, err := tx.GetCategoryByName(ctx, model.CategoryFeesName, model.CategoryFeesNameEn)
	if err != nil {
		return err
	}

	feeDate := date.UTC()
	feeTxn := &model.Transaction{
		Identifier:           uuid.NewString(),
		Vendor:               pairing.CreditCardVendor,
		AccountNumber:        pairing.CreditCardAccountNumber,
		Date:                 feeDate,
		ProcessedDate:        &feeDate,
		Name:                 feeName,
		Price:                amount.Neg(),
		Status:               model.StatusCompleted,
		CategoryDefinitionID: &feeCategory.ID,
	}
	if err := tx.InsertTransaction(ctx, feeTxn); err != nil {
		return err
	}

	if err := tx.AddCycleException(ctx, service.CycleException{
		PairingID: pairingID,
		CycleDate: cycleDate,
		Kind:      service.ExceptionFee,
		FeeTxnID:  feeTxn.Identifier,
	}); err != nil {
		return err
	}
	if err := tx.AppendPairingLog(ctx, pairingID, model.LogActionAddFee, map[string]any{
		"cycleDate": cycleDate,
		"amount":    amount.String(),
		"feeName":   feeName,
		"feeTxnId":  feeTxn.Identifier,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Acknowledge marks the pairing's discrepancy report as seen without
// discarding any cycle data.
func (r *Resolver) Acknowledge(ctx context.Context, pairingID int64) error {
	return r.store.SetDiscrepancyAcknowledged(ctx, pairingID, true)
}

// accountFilter turns a pairing's nullable account number into the
// NULL-safe store filter: nil pairs with rows whose account number is
// NULL, matched as the empty string.
func accountFilter(accountNumber *string) *string {
	if accountNumber == nil {
		empty := ""
		return &empty
	}
	return accountNumber
}
