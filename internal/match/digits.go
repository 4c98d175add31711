package match

import (
	"regexp"
	"strings"
)

var digitRunRe = regexp.MustCompile(`\d{4,}`)

// ExtractDigitSequences pulls every run of 4+ digits out of a
// transaction name, plus the trailing 4 digits of each longer run.
// Statements reference cards by full number or by last-4, so both forms
// are candidate hints. The result is de-duplicated, in first-seen order.
func ExtractDigitSequences(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, run := range digitRunRe.FindAllString(text, -1) {
		add(run)
		if len(run) > 4 {
			add(run[len(run)-4:])
		}
	}
	return out
}

// AccountLast4 returns the last four characters of an account number,
// or the whole number when it is already four or fewer. Returns "" for
// nil or blank input.
func AccountLast4(accountNumber *string) string {
	if accountNumber == nil {
		return ""
	}
	trimmed := strings.TrimSpace(*accountNumber)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) > 4 {
		return trimmed[len(trimmed)-4:]
	}
	return trimmed
}
