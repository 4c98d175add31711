package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarify-app/settle/internal/model"
)

func TestCatalogImmutable(t *testing.T) {
	source := map[model.AccountType][]string{
		model.AccountTypeBank: {"hapoalim"},
	}
	c := NewCatalog(source, nil, nil, nil)

	// Mutating the source map after construction must not leak in.
	source[model.AccountTypeBank][0] = "mutated"
	assert.Equal(t, []string{"hapoalim"}, c.PatternsFor(model.AccountTypeBank))

	// Mutating a returned slice must not leak back.
	got := c.PatternsFor(model.AccountTypeBank)
	got[0] = "mutated"
	assert.Equal(t, []string{"hapoalim"}, c.PatternsFor(model.AccountTypeBank))
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Contains(t, c.PatternsFor(model.AccountTypeBank), "hapoalim")
	assert.Contains(t, c.KeywordsFor(model.AccountTypeCreditCard), "אשראי")
	assert.Contains(t, c.VendorKeywords("visaCal"), "ויזה כאל")
	assert.Empty(t, c.VendorKeywords("unknownCard"))
	assert.Contains(t, c.RepaymentCategoryNames(), "פרעון כרטיס אשראי")
}

func TestAllPatternsDeterministic(t *testing.T) {
	c := DefaultCatalog()

	first := c.AllPatterns()
	second := c.AllPatterns()
	require.Equal(t, first, second)

	// Bank patterns come before pension patterns.
	indexOf := func(pattern string) int {
		for i, tp := range first {
			if tp.Pattern == pattern {
				return i
			}
		}
		return -1
	}
	assert.Less(t, indexOf("hapoalim"), indexOf("migdal"))
}

func TestCardVendorsOrdered(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{"amex", "diners", "isracard", "leumiCard", "max", "visaCal"}, c.CardVendors())
}
