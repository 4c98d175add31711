package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarify-app/settle/internal/catalog"
	"github.com/clarify-app/settle/internal/model"
)

func TestMatchAccount(t *testing.T) {
	matcher := NewMatcher(catalog.DefaultCatalog())

	t.Run("pattern beats weak keyword", func(t *testing.T) {
		result := matcher.MatchAccount("Bank Hapoalim", model.AccountTypeBank)
		assert.True(t, result.Match)
		assert.InDelta(t, 1.0, result.Confidence, 0.001)
		require.NotNil(t, result.Pattern)
		assert.Equal(t, "bank hapoalim", *result.Pattern)
	})

	t.Run("unrelated name does not match", func(t *testing.T) {
		result := matcher.MatchAccount("qwxz zxwq", model.AccountTypeBank)
		assert.False(t, result.Match)
	})
}

func TestMatchTransactionsNoFalsePositives(t *testing.T) {
	c := catalog.NewCatalog(
		map[model.AccountType][]string{model.AccountTypeBank: {"פועלים"}},
		nil, nil, nil,
	)
	matcher := NewMatcher(c)

	txns := []model.Transaction{
		{Identifier: "1", Name: "תשלום ויזה"},
		{Identifier: "2", Name: "קניה בסופר"},
	}

	result := matcher.MatchTransactions(model.AccountTypeBank, txns)
	assert.False(t, result.Match)
	assert.Empty(t, result.Matches)
}

func TestMatchTransactionsFirstMatchWins(t *testing.T) {
	// The first pattern clearing the threshold is kept even when a later
	// pattern would score higher.
	c := catalog.NewCatalog(
		map[model.AccountType][]string{
			model.AccountTypeCreditCard: {"ויזה כאל 1234", "ויזה כאל"},
		},
		nil, nil, nil,
	)
	matcher := NewMatcher(c)

	result := matcher.MatchTransactions(model.AccountTypeCreditCard, []model.Transaction{
		{Identifier: "1", Name: "ויזה כאל"},
	})

	require.Len(t, result.Matches, 1)
	assert.Equal(t, "ויזה כאל 1234", result.Matches[0].Pattern)
	assert.Less(t, result.Matches[0].Confidence, 1.0)
	assert.True(t, result.Match)
}

func TestDetectAccountType(t *testing.T) {
	matcher := NewMatcher(catalog.DefaultCatalog())

	t.Run("pension fund name", func(t *testing.T) {
		detected := matcher.DetectAccountType("קרן פנסיה מגדל")
		require.NotNil(t, detected)
		assert.Equal(t, model.AccountTypePension, *detected)
	})

	t.Run("gibberish returns nil", func(t *testing.T) {
		assert.Nil(t, matcher.DetectAccountType("qqq www zzz 777"))
	})
}

func TestBuildSQLPatterns(t *testing.T) {
	c := catalog.NewCatalog(
		map[model.AccountType][]string{
			model.AccountTypeCreditCard: {"כ.א.ל", "Visa CAL"},
		},
		nil, nil, nil,
	)
	matcher := NewMatcher(c)

	patterns := matcher.BuildSQLPatterns(model.AccountTypeCreditCard)
	assert.Equal(t, []string{"%כאל%", "%visa cal%"}, patterns)
}

func TestDetectCardVendor(t *testing.T) {
	matcher := NewMatcher(catalog.DefaultCatalog())

	assert.Equal(t, "visaCal", matcher.DetectCardVendor("ויזה כאל 1456"))
	assert.Equal(t, "isracard", matcher.DetectCardVendor("חיוב ישראכרט"))
	assert.Equal(t, "", matcher.DetectCardVendor("משכורת"))
}

func TestNameContainsVendor(t *testing.T) {
	matcher := NewMatcher(catalog.DefaultCatalog())

	assert.True(t, matcher.NameContainsVendor("ויזה כאל 1456", "visaCal"))
	assert.False(t, matcher.NameContainsVendor("ויזה כאל 1456", "isracard"))
	assert.False(t, matcher.NameContainsVendor("", "visaCal"))
}
