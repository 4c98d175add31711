// Package catalog holds the static pattern and keyword data used to
// recognize financial institutions and credit-card vendors from free-text
// account and transaction names.
package catalog

import "github.com/clarify-app/settle/internal/model"

// TypedPattern pairs a name pattern with the account type it indicates.
type TypedPattern struct {
	Pattern string
	Type    model.AccountType
}

// Catalog is an immutable lookup of institution patterns, per-type
// keywords, and per-card-vendor repayment keywords. Construct one with
// DefaultCatalog (or NewCatalog in tests) and pass it into the matcher;
// there is deliberately no package-level mutable instance.
type Catalog struct {
	patterns       map[model.AccountType][]string
	keywords       map[model.AccountType][]string
	vendorKeywords map[string][]string
	repaymentNames []string
}

// NewCatalog builds a catalog from explicit data. The maps are copied so
// callers cannot mutate the catalog afterwards.
func NewCatalog(patterns, keywords map[model.AccountType][]string, vendorKeywords map[string][]string, repaymentNames []string) *Catalog {
	return &Catalog{
		patterns:       copyTypeMap(patterns),
		keywords:       copyTypeMap(keywords),
		vendorKeywords: copyStringMap(vendorKeywords),
		repaymentNames: append([]string(nil), repaymentNames...),
	}
}

// PatternsFor returns the institution name patterns for an account type.
func (c *Catalog) PatternsFor(t model.AccountType) []string {
	return append([]string(nil), c.patterns[t]...)
}

// KeywordsFor returns the priority keywords for an account type.
func (c *Catalog) KeywordsFor(t model.AccountType) []string {
	return append([]string(nil), c.keywords[t]...)
}

// AllPatterns returns every pattern across all account types.
func (c *Catalog) AllPatterns() []TypedPattern {
	var all []TypedPattern
	for _, t := range orderedTypes {
		for _, p := range c.patterns[t] {
			all = append(all, TypedPattern{Pattern: p, Type: t})
		}
	}
	return all
}

// VendorKeywords returns the repayment-description keywords for a
// credit-card vendor, or nil for an unknown vendor.
func (c *Catalog) VendorKeywords(ccVendor string) []string {
	return append([]string(nil), c.vendorKeywords[ccVendor]...)
}

// CardVendors returns all known credit-card vendor identifiers.
func (c *Catalog) CardVendors() []string {
	vendors := make([]string, 0, len(c.vendorKeywords))
	for _, v := range orderedVendors {
		if _, ok := c.vendorKeywords[v]; ok {
			vendors = append(vendors, v)
		}
	}
	return vendors
}

// RepaymentCategoryNames returns the category names (any language) that
// mark a bank transaction as a credit-card repayment.
func (c *Catalog) RepaymentCategoryNames() []string {
	return append([]string(nil), c.repaymentNames...)
}

// Deterministic iteration orders; map iteration would make results flap.
var orderedTypes = []model.AccountType{
	model.AccountTypeBank,
	model.AccountTypeCreditCard,
	model.AccountTypePension,
	model.AccountTypeSavings,
	model.AccountTypeInvestment,
}

var orderedVendors = []string{"amex", "diners", "isracard", "leumiCard", "max", "visaCal"}

func copyTypeMap(in map[model.AccountType][]string) map[model.AccountType][]string {
	out := make(map[model.AccountType][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func copyStringMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
