package match

// BuildMatchPatterns assembles the match-pattern list for a new pairing:
// the card vendor's repayment keywords, then the full account number,
// then its last four digits. Order matters (strong signals first) and
// duplicates are dropped.
func (m *Matcher) BuildMatchPatterns(ccVendor string, ccAccountNumber *string) []string {
	var patterns []string
	patterns = append(patterns, m.catalog.VendorKeywords(ccVendor)...)

	if ccAccountNumber != nil && *ccAccountNumber != "" {
		patterns = append(patterns, *ccAccountNumber)
		if last4 := AccountLast4(ccAccountNumber); last4 != "" && last4 != *ccAccountNumber {
			patterns = append(patterns, last4)
		}
	}

	seen := make(map[string]struct{}, len(patterns))
	unique := patterns[:0]
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	return unique
}
