// Package match scores free-text account names and transaction
// descriptions against the pattern catalog, producing the confidence
// results the pairing flow is built on.
package match

import (
	"sort"
	"strings"

	"github.com/clarify-app/settle/internal/catalog"
	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/textnorm"
)

// Confidence thresholds used by the matcher.
const (
	// MatchThreshold is the minimum confidence for a positive match.
	MatchThreshold = 0.5
	// keywordSufficient skips the pattern search when a keyword already
	// scored this high.
	keywordSufficient = 0.7
	// detectThreshold is the minimum confidence for account-type detection.
	detectThreshold = 0.6
)

// Matcher evaluates names against a fixed catalog. It holds no mutable
// state and is safe for concurrent use.
type Matcher struct {
	catalog *catalog.Catalog
}

// NewMatcher creates a matcher over the given catalog.
func NewMatcher(c *catalog.Catalog) *Matcher {
	return &Matcher{catalog: c}
}

// MatchAccount scores an account name against the catalog entries for an
// account type. Keywords are the priority signal; patterns are consulted
// only when no keyword is convincing on its own.
func (m *Matcher) MatchAccount(accountName string, accountType model.AccountType) model.MatchResult {
	best := m.bestAgainst(accountName, m.catalog.KeywordsFor(accountType), model.MatchTypeKeyword)
	if best.Confidence < keywordSufficient {
		if patternBest := m.bestAgainst(accountName, m.catalog.PatternsFor(accountType), model.MatchTypePattern); patternBest.Confidence > best.Confidence {
			best = patternBest
		}
	}
	best.Match = best.Confidence > MatchThreshold
	return best
}

// MatchTransactions tests each transaction name against the patterns for
// an account type and keeps the first pattern scoring above the match
// threshold. First-match-wins per transaction bounds cost; the hits are
// then ranked by confidence and the top hit's confidence becomes the
// aggregate.
func (m *Matcher) MatchTransactions(accountType model.AccountType, txns []model.Transaction) model.MatchResult {
	patterns := m.catalog.PatternsFor(accountType)

	var hits []model.TransactionMatch
	for _, txn := range txns {
		for _, pattern := range patterns {
			confidence := textnorm.Similarity(txn.Name, pattern)
			if confidence > MatchThreshold {
				hits = append(hits, model.TransactionMatch{
					Transaction: txn,
					Pattern:     pattern,
					Confidence:  confidence,
				})
				break
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Confidence > hits[j].Confidence
	})

	result := model.MatchResult{MatchType: model.MatchTypePattern, Matches: hits}
	if len(hits) > 0 {
		result.Confidence = hits[0].Confidence
		result.Pattern = &hits[0].Pattern
	}
	result.Match = result.Confidence > MatchThreshold
	return result
}

// DetectAccountType guesses the account type of a free-text name by
// scoring it against every catalog pattern. Returns nil when nothing
// clears the detection threshold.
func (m *Matcher) DetectAccountType(accountName string) *model.AccountType {
	var bestType model.AccountType
	bestConfidence := 0.0

	for _, tp := range m.catalog.AllPatterns() {
		if confidence := textnorm.Similarity(accountName, tp.Pattern); confidence > bestConfidence {
			bestConfidence = confidence
			bestType = tp.Type
		}
	}

	if bestConfidence <= detectThreshold {
		return nil
	}
	return &bestType
}

// BuildSQLPatterns returns LIKE fragments ("%pattern%", normalized) for
// coarse SQL-side substring filtering. The store pre-filters candidate
// rows with these; precise ranking stays in memory with Similarity.
func (m *Matcher) BuildSQLPatterns(accountType model.AccountType) []string {
	patterns := m.catalog.PatternsFor(accountType)
	fragments := make([]string, 0, len(patterns))
	for _, p := range patterns {
		fragments = append(fragments, textnorm.LikeContains(p))
	}
	return fragments
}

// bestAgainst returns the highest-scoring candidate for a name.
func (m *Matcher) bestAgainst(name string, candidates []string, matchType model.MatchType) model.MatchResult {
	result := model.MatchResult{MatchType: matchType}
	for _, candidate := range candidates {
		if confidence := textnorm.Similarity(name, candidate); confidence > result.Confidence {
			result.Confidence = confidence
			pattern := candidate
			result.Pattern = &pattern
		}
	}
	return result
}

// NameContainsVendor reports whether a bank transaction name references a
// credit-card vendor, using the catalog's per-vendor keywords.
func (m *Matcher) NameContainsVendor(name, ccVendor string) bool {
	if name == "" || ccVendor == "" {
		return false
	}
	normalized := textnorm.Normalize(name)
	for _, kw := range m.catalog.VendorKeywords(ccVendor) {
		if strings.Contains(normalized, textnorm.Normalize(kw)) {
			return true
		}
	}
	return false
}

// CardVendors lists the credit-card vendors the catalog knows about.
func (m *Matcher) CardVendors() []string {
	return m.catalog.CardVendors()
}

// DetectCardVendor returns the credit-card vendor a repayment
// description references, or "" when none is recognized.
func (m *Matcher) DetectCardVendor(name string) string {
	normalized := textnorm.Normalize(name)
	for _, vendor := range m.catalog.CardVendors() {
		for _, kw := range m.catalog.VendorKeywords(vendor) {
			if strings.Contains(normalized, textnorm.Normalize(kw)) {
				return vendor
			}
		}
	}
	return ""
}
