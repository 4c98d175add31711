// Package textnorm provides locale-aware text normalization and fuzzy
// similarity scoring for account and transaction names. It handles the
// mix of Hebrew, English and transliterated descriptions that Israeli
// bank scrapes produce.
package textnorm

import (
	"strings"
	"unicode"
)

// Hebrew final letterforms fold to their medial forms so that a name
// ending mid-word in one source still matches the other.
var finalForms = map[rune]rune{
	'ך': 'כ',
	'ם': 'מ',
	'ן': 'נ',
	'ף': 'פ',
	'ץ': 'צ',
}

// Normalize canonicalizes a name for matching: lowercase, trimmed,
// Hebrew final forms folded, vowel/cantillation marks stripped, quote and
// abbreviation punctuation stripped, whitespace collapsed. Normalizing an
// already-normalized string is a no-op.
func Normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if folded, ok := finalForms[r]; ok {
			b.WriteRune(folded)
			continue
		}
		if isHebrewMark(r) || unicode.Is(unicode.Mn, r) {
			continue
		}
		if isStrippedPunct(r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikeContains builds a SQL LIKE fragment matching names that contain
// the normalized text. LIKE metacharacters in the text are escaped with
// backslash; the query must carry ESCAPE '\'.
func LikeContains(text string) string {
	return "%" + likeEscaper.Replace(Normalize(text)) + "%"
}

// isHebrewMark reports whether r is a niqqud or cantillation mark.
func isHebrewMark(r rune) bool {
	return r >= 0x0591 && r <= 0x05C7
}

// isStrippedPunct reports whether r is quote or abbreviation punctuation
// that scrapers insert inconsistently (geresh, gershayim, ASCII quotes,
// abbreviation periods).
func isStrippedPunct(r rune) bool {
	switch r {
	case '\'', '"', '`', '.', '׳', '״', '’', '‘', '“', '”':
		return true
	}
	return false
}
