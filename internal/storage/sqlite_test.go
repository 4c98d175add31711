package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/model"
	"github.com/clarify-app/settle/internal/service"
	"github.com/clarify-app/settle/internal/textnorm"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedTransaction(t *testing.T, store *SQLiteStorage, txn model.Transaction) {
	t.Helper()
	if txn.Status == "" {
		txn.Status = model.StatusCompleted
	}
	require.NoError(t, store.InsertTransaction(context.Background(), &txn))
}

func strPtr(s string) *string { return &s }

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCreatePairingConflict(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	params := service.CreatePairingParams{
		CreditCardVendor: "visaCal",
		BankVendor:       "hapoalim",
		MatchPatterns:    []string{"ויזה כאל"},
	}

	first, err := store.CreatePairing(ctx, params)
	require.NoError(t, err)

	_, err = store.CreatePairing(ctx, params)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConflict)

	existingID, ok := common.ConflictingID(err)
	require.True(t, ok)
	assert.Equal(t, first.Pairing.ID, existingID)

	// A different account number, NULL on one side, is a distinct tuple.
	withAccount := params
	withAccount.CreditCardAccountNumber = strPtr("1234")
	_, err = store.CreatePairing(ctx, withAccount)
	assert.NoError(t, err)
}

func TestCreatePairingAfterRetirement(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	params := service.CreatePairingParams{
		CreditCardVendor: "visaCal",
		BankVendor:       "hapoalim",
		MatchPatterns:    []string{"ויזה כאל"},
	}

	first, err := store.CreatePairing(ctx, params)
	require.NoError(t, err)

	inactive := false
	require.NoError(t, store.UpdatePairing(ctx, first.Pairing.ID, service.UpdatePairingParams{
		IsActive: &inactive,
	}))

	// A retired pairing no longer blocks the tuple.
	second, err := store.CreatePairing(ctx, params)
	require.NoError(t, err)
	assert.NotEqual(t, first.Pairing.ID, second.Pairing.ID)

	_, err = store.CreatePairing(ctx, params)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestCreatePairingValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.CreatePairing(ctx, service.CreatePairingParams{BankVendor: "hapoalim"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor: "visaCal",
		BankVendor:       "hapoalim",
		MatchPatterns:    []string{"  "},
	})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCreatePairingCategorizesSelected(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	seedTransaction(t, store, model.Transaction{
		Identifier: "t1", Vendor: "hapoalim", Date: day("2025-01-10"),
		Name: "ויזה כאל", Price: decimal.NewFromInt(-1200),
	})
	seedTransaction(t, store, model.Transaction{
		Identifier: "t2", Vendor: "hapoalim", Date: day("2025-01-12"),
		Name: "החזר ויזה כאל", Price: decimal.NewFromInt(80),
	})

	updates, err := store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor:       "visaCal",
		BankVendor:             "hapoalim",
		MatchPatterns:          []string{"ויזה כאל"},
		SelectedTransactionIDs: []string{"t1", "t2"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updates.CategorizedCount)

	repayment, err := store.GetCategoryByName(ctx, model.CategoryRepaymentName)
	require.NoError(t, err)
	refund, err := store.GetCategoryByName(ctx, model.CategoryRefundName)
	require.NoError(t, err)
	assert.Equal(t, repayment.ID, updates.RepaymentCategoryID)

	txns, err := store.GetTransactions(ctx, service.TransactionFilter{Vendor: "hapoalim"})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		require.NotNil(t, txn.CategoryDefinitionID)
		if txn.IsExpense() {
			assert.Equal(t, repayment.ID, *txn.CategoryDefinitionID)
		} else {
			assert.Equal(t, refund.ID, *txn.CategoryDefinitionID)
		}
	}
}

func TestUpdatePairing(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	created, err := store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor: "max",
		BankVendor:       "leumi",
		MatchPatterns:    []string{"מקס"},
	})
	require.NoError(t, err)
	id := created.Pairing.ID

	newPatterns := []string{"מקס", "5678"}
	inactive := false
	require.NoError(t, store.UpdatePairing(ctx, id, service.UpdatePairingParams{
		MatchPatterns: &newPatterns,
		IsActive:      &inactive,
	}))

	pairing, err := store.GetPairing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, newPatterns, pairing.MatchPatterns)
	assert.False(t, pairing.IsActive)

	// Inactive pairings are hidden unless asked for.
	active, err := store.ListPairings(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := store.ListPairings(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	t.Run("no fields", func(t *testing.T) {
		err := store.UpdatePairing(ctx, id, service.UpdatePairingParams{})
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("missing id", func(t *testing.T) {
		err := store.UpdatePairing(ctx, 9999, service.UpdatePairingParams{IsActive: &inactive})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestDeletePairing(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	created, err := store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor: "isracard",
		BankVendor:       "discount",
	})
	require.NoError(t, err)

	require.NoError(t, store.DeletePairing(ctx, created.Pairing.ID))

	_, err = store.GetPairing(ctx, created.Pairing.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, store.DeletePairing(ctx, created.Pairing.ID), common.ErrNotFound)
}

func TestSetDiscrepancyAcknowledged(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	created, err := store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor: "amex",
		BankVendor:       "mizrahi",
	})
	require.NoError(t, err)

	require.NoError(t, store.SetDiscrepancyAcknowledged(ctx, created.Pairing.ID, true))
	pairing, err := store.GetPairing(ctx, created.Pairing.ID)
	require.NoError(t, err)
	assert.True(t, pairing.DiscrepancyAcknowledged)

	assert.ErrorIs(t, store.SetDiscrepancyAcknowledged(ctx, 9999, true), common.ErrNotFound)
}

func TestPairingLogTrail(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	created, err := store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor: "visaCal",
		BankVendor:       "hapoalim",
	})
	require.NoError(t, err)
	id := created.Pairing.ID

	patterns := []string{"כאל"}
	require.NoError(t, store.UpdatePairing(ctx, id, service.UpdatePairingParams{MatchPatterns: &patterns}))
	require.NoError(t, store.DeletePairing(ctx, id))

	entries, err := store.GetPairingLog(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, model.LogActionCreate, entries[0].Action)
	assert.Equal(t, model.LogActionUpdate, entries[1].Action)
	assert.Equal(t, model.LogActionDelete, entries[2].Action)
	assert.Contains(t, entries[1].Params, "כאל")
}

func TestGetTransactionsFilters(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	seedTransaction(t, store, model.Transaction{
		Identifier: "b1", Vendor: "hapoalim", AccountNumber: strPtr("111"),
		Date: day("2025-01-10"), Name: "ויזה כאל 1456", Price: decimal.NewFromInt(-1200),
	})
	seedTransaction(t, store, model.Transaction{
		Identifier: "b2", Vendor: "hapoalim", AccountNumber: strPtr("111"),
		Date: day("2025-01-11"), Name: "משכורת", Price: decimal.NewFromInt(15000),
	})
	seedTransaction(t, store, model.Transaction{
		Identifier: "b3", Vendor: "hapoalim",
		Date: day("2025-02-01"), Name: "ויזה כאל 1456", Price: decimal.NewFromInt(-900),
		Status: model.StatusPending,
	})

	t.Run("name patterns", func(t *testing.T) {
		txns, err := store.GetTransactions(ctx, service.TransactionFilter{
			Vendor:       "hapoalim",
			NamePatterns: []string{"%ויזה כאל%"},
		})
		require.NoError(t, err)
		assert.Len(t, txns, 2)
	})

	t.Run("only expenses and completed", func(t *testing.T) {
		txns, err := store.GetTransactions(ctx, service.TransactionFilter{
			Vendor:        "hapoalim",
			OnlyExpenses:  true,
			OnlyCompleted: true,
		})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, "b1", txns[0].Identifier)
	})

	t.Run("null-safe account filter", func(t *testing.T) {
		txns, err := store.GetTransactions(ctx, service.TransactionFilter{
			Vendor:        "hapoalim",
			AccountNumber: strPtr(""),
		})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, "b3", txns[0].Identifier)
	})

	t.Run("date range", func(t *testing.T) {
		start := day("2025-01-11")
		txns, err := store.GetTransactions(ctx, service.TransactionFilter{
			Vendor:    "hapoalim",
			StartDate: &start,
		})
		require.NoError(t, err)
		assert.Len(t, txns, 2)
	})
}

func TestGetTransactionsLikeMetacharacters(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	seedTransaction(t, store, model.Transaction{
		Identifier: "t1", Vendor: "hapoalim", Date: day("2025-01-10"),
		Name: "one_two", Price: decimal.NewFromInt(-10),
	})
	seedTransaction(t, store, model.Transaction{
		Identifier: "t2", Vendor: "hapoalim", Date: day("2025-01-11"),
		Name: "onextwo", Price: decimal.NewFromInt(-10),
	})

	// An underscore in a pattern is a literal, not a wildcard.
	txns, err := store.GetTransactions(ctx, service.TransactionFilter{
		Vendor:       "hapoalim",
		NamePatterns: []string{textnorm.LikeContains("one_two")},
	})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "t1", txns[0].Identifier)
}

func TestGetBankAccounts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	seedTransaction(t, store, model.Transaction{
		Identifier: "b1", Vendor: "hapoalim", AccountNumber: strPtr("111"),
		Date: day("2025-01-10"), Name: "x", Price: decimal.NewFromInt(-1),
	})
	seedTransaction(t, store, model.Transaction{
		Identifier: "c1", Vendor: "visaCal", AccountNumber: strPtr("9999"),
		Date: day("2025-01-10"), Name: "y", Price: decimal.NewFromInt(-1),
	})

	accounts, err := store.GetBankAccounts(ctx, []string{"visaCal", "max"})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "hapoalim", accounts[0].Vendor)
	require.NotNil(t, accounts[0].AccountNumber)
	assert.Equal(t, "111", *accounts[0].AccountNumber)
}

func TestGetEarliestBillingDate(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	processed := day("2024-11-05")
	seedTransaction(t, store, model.Transaction{
		Identifier: "c1", Vendor: "visaCal", Date: day("2024-11-20"),
		ProcessedDate: &processed, Name: "x", Price: decimal.NewFromInt(-10),
	})
	seedTransaction(t, store, model.Transaction{
		Identifier: "c2", Vendor: "visaCal", Date: day("2024-12-01"),
		Name: "y", Price: decimal.NewFromInt(-10),
	})

	earliest, err := store.GetEarliestBillingDate(ctx, "visaCal", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, earliest)
	assert.Equal(t, "2024-11-05", earliest.UTC().Format("2006-01-02"))

	t.Run("no history", func(t *testing.T) {
		earliest, err := store.GetEarliestBillingDate(ctx, "max", nil, nil)
		require.NoError(t, err)
		assert.Nil(t, earliest)
	})
}

func TestGetCategoryByName(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Migration seeds the well-known categories.
	byHebrew, err := store.GetCategoryByName(ctx, model.CategoryFeesName)
	require.NoError(t, err)
	byEnglish, err := store.GetCategoryByName(ctx, model.CategoryFeesNameEn)
	require.NoError(t, err)
	assert.Equal(t, byHebrew.ID, byEnglish.ID)

	_, err = store.GetCategoryByName(ctx, "no such category")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCycleExceptionsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	exc := service.CycleException{PairingID: 1, CycleDate: "2025-01-10", Kind: service.ExceptionIgnore}
	require.NoError(t, store.AddCycleException(ctx, exc))
	require.NoError(t, store.AddCycleException(ctx, exc))

	got, err := store.GetCycleExceptions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	t.Run("invalid kind", func(t *testing.T) {
		err := store.AddCycleException(ctx, service.CycleException{PairingID: 1, CycleDate: "2025-01-10", Kind: "bogus"})
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestExpenseMatches(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	matches := []model.ExpenseMatch{
		{RepaymentID: "b1", RepaymentVendor: "hapoalim", ExpenseID: "c1", ExpenseVendor: "visaCal", Method: model.MatchMethodChronological, Confidence: 0.9},
		{RepaymentID: "b2", RepaymentVendor: "hapoalim", ExpenseID: "c1", ExpenseVendor: "visaCal", Method: model.MatchMethodCarryover, Confidence: 0.6},
	}
	require.NoError(t, store.SaveExpenseMatches(ctx, matches))

	// The second row targeted an already-covered expense and was dropped.
	ids, err := store.GetMatchedExpenseIDs(ctx, "visaCal")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"c1": true}, ids)

	require.NoError(t, store.ClearExpenseMatches(ctx))
	ids, err = store.GetMatchedExpenseIDs(ctx, "visaCal")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTransactionRollback(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	_, err = tx.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor: "visaCal",
		BankVendor:       "hapoalim",
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	pairings, err := store.ListPairings(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, pairings)
}
