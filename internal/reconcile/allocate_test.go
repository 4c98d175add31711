package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarify-app/settle/internal/model"
)

func allocationTargets() []AllocationTarget {
	return []AllocationTarget{
		{
			PairingID:      1,
			CardLast4:      "5678",
			VendorKeywords: []string{"ויזה כאל", "כאל"},
			CCTotals: map[string]decimal.Decimal{
				"2025-01-10": decimal.NewFromInt(1000),
			},
		},
		{
			PairingID:      2,
			CardLast4:      "4321",
			VendorKeywords: []string{"מקס"},
			CCTotals: map[string]decimal.Decimal{
				"2025-01-10": decimal.NewFromInt(200),
			},
		},
	}
}

func TestAllocateBankGroupDigitSignal(t *testing.T) {
	repayments := []model.Transaction{
		bankTxn("b1", "ויזה כאל 5678", -900, "2025-01-10"),
		bankTxn("b2", "העברה 4321", -150, "2025-01-10"),
	}

	allocations := AllocateBankGroup(repayments, allocationTargets())
	require.Len(t, allocations, 2)

	byTxn := map[string]Allocation{}
	for _, a := range allocations {
		byTxn[a.Transaction.Identifier] = a
	}
	assert.Equal(t, int64(1), byTxn["b1"].PairingID)
	assert.Equal(t, SignalDigits, byTxn["b1"].Signal)
	assert.Equal(t, int64(2), byTxn["b2"].PairingID)
	assert.Equal(t, SignalDigits, byTxn["b2"].Signal)
}

func TestAllocateBankGroupVendorSignal(t *testing.T) {
	repayments := []model.Transaction{
		bankTxn("b1", "חיוב מקס", -180, "2025-01-10"),
	}

	allocations := AllocateBankGroup(repayments, allocationTargets())
	require.Len(t, allocations, 1)
	assert.Equal(t, int64(2), allocations[0].PairingID)
	assert.Equal(t, SignalVendor, allocations[0].Signal)
}

func TestAllocateBankGroupAmountFit(t *testing.T) {
	// No digits, no vendor words: placement follows whichever card's
	// statement the amount tracks best.
	repayments := []model.Transaction{
		bankTxn("b1", "חיוב כרטיס", -1000, "2025-01-10"),
		bankTxn("b2", "חיוב כרטיס", -200, "2025-01-10"),
	}

	allocations := AllocateBankGroup(repayments, allocationTargets())
	require.Len(t, allocations, 2)
	assert.Equal(t, int64(1), allocations[0].PairingID)
	assert.Equal(t, SignalNone, allocations[0].Signal)
	assert.Equal(t, int64(2), allocations[1].PairingID)
}

func TestAllocateBankGroupNoTargets(t *testing.T) {
	repayments := []model.Transaction{
		bankTxn("b1", "ויזה כאל", -100, "2025-01-10"),
	}
	assert.Nil(t, AllocateBankGroup(repayments, nil))
}
