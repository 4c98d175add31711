// Package autopair drives the unattended pairing flow: detect a new
// credit card, find the bank account that settles it, and create the
// pairing.
package autopair

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/match"
	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/reconcile"
	"github.com/clarify-app/settle/internal/service"
	"github.com/clarify-app/settle/internal/textnorm"
)

// Candidate confidence bands. A last-4 hit in a repayment name is near
// certain; a vendor keyword alone is strong; bare pattern traffic is
// weak evidence.
const (
	confidenceDigits  = 0.95
	confidenceVendor  = 0.75
	confidencePattern = 0.6

	// DefaultAcceptThreshold is the minimum candidate confidence for
	// unattended pairing creation.
	DefaultAcceptThreshold = 0.7

	// candidateScanLimit bounds how many bank rows are inspected per
	// candidate account.
	candidateScanLimit = 500
)

// Candidate is one bank account ranked as the possible settlement
// account for a card. TransactionIDs are the identifiers of the bank
// transactions that matched the card's patterns during scoring.
type Candidate struct {
	Account        service.BankAccountRef
	TransactionIDs []string
	Confidence     float64
	DigitHits      int
	VendorHits     int
	PatternHits    int
}

// Params identifies the card to pair. CategorizeMatches recategorizes
// the matched bank transactions as repayments/refunds when the pairing
// is created.
type Params struct {
	CreditCardVendor        string
	CreditCardAccountNumber *string
	ComputeReport           bool
	CategorizeMatches       bool
}

// Result reports the outcome of an auto-pair attempt. Success with
// WasCreated false means a matching pairing already existed.
type Result struct {
	Report           *model.DiscrepancyReport
	Reason           string
	PairingID        int64
	CategorizedCount int64
	Confidence       float64
	Success          bool
	WasCreated       bool
}

// Orchestrator composes the matcher, the store and the resolver.
type Orchestrator struct {
	store     service.Storage
	matcher   *match.Matcher
	resolver  *reconcile.Resolver
	threshold float64
}

// NewOrchestrator creates an orchestrator with the default acceptance
// threshold.
func NewOrchestrator(store service.Storage, matcher *match.Matcher, resolver *reconcile.Resolver) *Orchestrator {
	return &Orchestrator{
		store:     store,
		matcher:   matcher,
		resolver:  resolver,
		threshold: DefaultAcceptThreshold,
	}
}

// WithThreshold overrides the acceptance threshold.
func (o *Orchestrator) WithThreshold(threshold float64) *Orchestrator {
	if threshold > 0 {
		o.threshold = threshold
	}
	return o
}

// FindBestBankAccount ranks every known bank account by how strongly its
// transactions point at the given card, and returns the best candidate
// or nil when no account shows any signal.
func (o *Orchestrator) FindBestBankAccount(ctx context.Context, ccVendor string, ccAccountNumber *string) (*Candidate, error) {
	patterns := o.matcher.BuildMatchPatterns(ccVendor, ccAccountNumber)
	if len(patterns) == 0 {
		return nil, nil
	}
	sqlPatterns := make([]string, 0, len(patterns))
	for _, p := range patterns {
		sqlPatterns = append(sqlPatterns, textnorm.LikeContains(p))
	}

	accounts, err := o.store.GetBankAccounts(ctx, o.cardVendors())
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}

	last4 := match.AccountLast4(ccAccountNumber)
	var best *Candidate
	for _, account := range accounts {
		candidate, scoreErr := o.scoreAccount(ctx, account, ccVendor, last4, sqlPatterns)
		if scoreErr != nil {
			return nil, scoreErr
		}
		if candidate == nil {
			continue
		}
		if best == nil || betterCandidate(candidate, best) {
			best = candidate
		}
	}
	return best, nil
}

func (o *Orchestrator) scoreAccount(ctx context.Context, account service.BankAccountRef, ccVendor, last4 string, sqlPatterns []string) (*Candidate, error) {
	txns, err := o.store.GetTransactions(ctx, service.TransactionFilter{
		Vendor:        account.Vendor,
		AccountNumber: accountKey(account.AccountNumber),
		NamePatterns:  sqlPatterns,
		OnlyCompleted: true,
		Limit:         candidateScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan account %s: %w", account.Vendor, err)
	}
	if len(txns) == 0 {
		return nil, nil
	}

	candidate := &Candidate{Account: account, PatternHits: len(txns)}
	for _, txn := range txns {
		candidate.TransactionIDs = append(candidate.TransactionIDs, txn.Identifier)
		if last4 != "" {
			for _, run := range match.ExtractDigitSequences(txn.Name) {
				if strings.HasSuffix(run, last4) {
					candidate.DigitHits++
					break
				}
			}
		}
		if o.matcher.NameContainsVendor(txn.Name, ccVendor) {
			candidate.VendorHits++
		}
	}

	switch {
	case candidate.DigitHits > 0:
		candidate.Confidence = confidenceDigits
	case candidate.VendorHits > 0:
		candidate.Confidence = confidenceVendor
	default:
		candidate.Confidence = confidencePattern
	}
	return candidate, nil
}

// AutoPair finds the settlement account for a card and ensures a pairing
// exists. An existing pairing for the same tuple counts as success.
func (o *Orchestrator) AutoPair(ctx context.Context, params Params) (*Result, error) {
	if strings.TrimSpace(params.CreditCardVendor) == "" {
		return nil, common.NewValidationError("creditCardVendor", "required")
	}

	candidate, err := o.FindBestBankAccount(ctx, params.CreditCardVendor, params.CreditCardAccountNumber)
	if err != nil {
		return nil, err
	}
	if candidate == nil || candidate.Confidence < o.threshold {
		return &Result{Success: false, Reason: "no match"}, nil
	}

	patterns := o.matcher.BuildMatchPatterns(params.CreditCardVendor, params.CreditCardAccountNumber)
	result := &Result{Success: true, Confidence: candidate.Confidence}

	var selected []string
	if params.CategorizeMatches {
		selected = candidate.TransactionIDs
	}
	updates, err := o.store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor:        params.CreditCardVendor,
		CreditCardAccountNumber: params.CreditCardAccountNumber,
		BankVendor:              candidate.Account.Vendor,
		BankAccountNumber:       candidate.Account.AccountNumber,
		MatchPatterns:           patterns,
		SelectedTransactionIDs:  selected,
	})
	switch {
	case err == nil:
		result.WasCreated = true
		result.PairingID = updates.Pairing.ID
		result.CategorizedCount = updates.CategorizedCount
		if logErr := o.store.AppendPairingLog(ctx, result.PairingID, model.LogActionAutoPair, map[string]any{
			"confidence":       candidate.Confidence,
			"digitHits":        candidate.DigitHits,
			"vendorHits":       candidate.VendorHits,
			"categorizedCount": updates.CategorizedCount,
		}); logErr != nil {
			return nil, logErr
		}
	default:
		existingID, isConflict := common.ConflictingID(err)
		if !isConflict {
			return nil, err
		}
		result.PairingID = existingID
		slog.Debug("Pairing already exists, reusing",
			"pairingID", existingID,
			"creditCardVendor", params.CreditCardVendor)
	}

	if params.ComputeReport {
		report, reportErr := o.resolver.Compute(ctx, result.PairingID)
		if reportErr != nil {
			return nil, reportErr
		}
		result.Report = report
	}
	return result, nil
}

// betterCandidate reports whether a should outrank b. Confidence wins;
// within a band, more concrete evidence breaks the tie.
func betterCandidate(a, b *Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.DigitHits != b.DigitHits {
		return a.DigitHits > b.DigitHits
	}
	if a.VendorHits != b.VendorHits {
		return a.VendorHits > b.VendorHits
	}
	return a.PatternHits > b.PatternHits
}

func (o *Orchestrator) cardVendors() []string {
	return o.matcher.CardVendors()
}

func accountKey(accountNumber *string) *string {
	if accountNumber == nil {
		empty := ""
		return &empty
	}
	return accountNumber
}
