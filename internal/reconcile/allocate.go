package reconcile

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clarify-app/settle/internal/match"
	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/textnorm"
)

// Signal strengths for repayment allocation. Digits beat vendor
// keywords because several cards from the same issuer share keywords
// but never a last-4.
const (
	SignalNone   = 0
	SignalVendor = 1
	SignalDigits = 2
)

// AllocationTarget is one card competing for repayments drawn from a
// shared bank account.
type AllocationTarget struct {
	PairingID      int64
	CardLast4      string
	VendorKeywords []string
	// CCTotals maps cycle date to the card's statement total for that
	// cycle, used to place repayments that carry no textual signal.
	CCTotals map[string]decimal.Decimal
}

// Allocation assigns one repayment to a target.
type Allocation struct {
	Transaction model.Transaction
	PairingID   int64
	Signal      int
}

// AllocateBankGroup distributes repayment transactions from one bank
// account across the cards it settles. Repayments naming a card's last-4
// or vendor go to that card; the rest are placed greedily so each
// cycle's allocated sum tracks the card's statement total as closely as
// possible. Unplaceable repayments are dropped from the result.
func AllocateBankGroup(repayments []model.Transaction, targets []AllocationTarget) []Allocation {
	if len(targets) == 0 {
		return nil
	}

	sorted := make([]model.Transaction, len(repayments))
	copy(sorted, repayments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	// remaining[pairingID][cycleDate] tracks how much of each statement
	// is still unaccounted for.
	remaining := make(map[int64]map[string]decimal.Decimal, len(targets))
	for _, target := range targets {
		cycles := make(map[string]decimal.Decimal, len(target.CCTotals))
		for date, total := range target.CCTotals {
			cycles[date] = total
		}
		remaining[target.PairingID] = cycles
	}

	var allocations []Allocation
	for _, txn := range sorted {
		target, signal := bestTarget(txn, targets, remaining)
		if target == nil {
			continue
		}

		cycleKey := txn.CycleKey()
		if left, ok := remaining[target.PairingID][cycleKey]; ok {
			remaining[target.PairingID][cycleKey] = left.Sub(txn.Price.Abs())
		}
		allocations = append(allocations, Allocation{
			Transaction: txn,
			PairingID:   target.PairingID,
			Signal:      signal,
		})
	}
	return allocations
}

func bestTarget(txn model.Transaction, targets []AllocationTarget, remaining map[int64]map[string]decimal.Decimal) (*AllocationTarget, int) {
	digits := match.ExtractDigitSequences(txn.Name)
	normalized := textnorm.Normalize(txn.Name)
	amount := txn.Price.Abs()
	cycleKey := txn.CycleKey()

	var best *AllocationTarget
	bestSignal := -1
	var bestFit decimal.Decimal

	for i := range targets {
		target := &targets[i]
		signal := signalFor(target, digits, normalized)
		fit := amountFit(remaining[target.PairingID], cycleKey, amount)

		switch {
		case signal > bestSignal:
		case signal == bestSignal && fit.LessThan(bestFit):
		default:
			continue
		}
		best = target
		bestSignal = signal
		bestFit = fit
	}
	return best, bestSignal
}

func signalFor(target *AllocationTarget, digits []string, normalizedName string) int {
	if target.CardLast4 != "" {
		for _, run := range digits {
			if strings.HasSuffix(run, target.CardLast4) {
				return SignalDigits
			}
		}
	}
	for _, kw := range target.VendorKeywords {
		if strings.Contains(normalizedName, textnorm.Normalize(kw)) {
			return SignalVendor
		}
	}
	return SignalNone
}

// amountFit measures how far the cycle's remaining statement balance is
// from the repayment amount; smaller is better. A target with no
// statement for the cycle fits worst.
func amountFit(cycles map[string]decimal.Decimal, cycleKey string, amount decimal.Decimal) decimal.Decimal {
	left, ok := cycles[cycleKey]
	if !ok {
		return amount.Add(largeAbs)
	}
	return left.Sub(amount).Abs()
}
