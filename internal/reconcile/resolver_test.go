package reconcile

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
	"github.com/clarify-app/settle/internal/storage"
)

func newTestStore(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seed(t *testing.T, store service.Storage, txn model.Transaction) {
	t.Helper()
	if txn.Status == "" {
		txn.Status = model.StatusCompleted
	}
	require.NoError(t, store.InsertTransaction(context.Background(), &txn))
}

// seedPairingScenario stores a pairing plus one reconcilable cycle:
// bank collected 1250, the card billed 1200, all on 2025-01-10.
func seedPairingScenario(t *testing.T, store service.Storage) int64 {
	t.Helper()
	ctx := context.Background()

	created, err := store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor: "visaCal",
		BankVendor:       "hapoalim",
		MatchPatterns:    []string{"ויזה כאל"},
	})
	require.NoError(t, err)

	seed(t, store, model.Transaction{
		Identifier: "b1", Vendor: "hapoalim", Date: day("2025-01-10"),
		Name: "ויזה כאל", Price: decimal.NewFromInt(-1250),
	})
	// Early history so the January cycle clears the grace window.
	seed(t, store, cardTxn("c0", -100, "2024-09-10"))
	seed(t, store, cardTxn("c1", -700, "2025-01-10"))
	seed(t, store, cardTxn("c2", -500, "2025-01-10"))

	return created.Pairing.ID
}

func fixedClock() func() time.Time {
	return func() time.Time { return day("2025-03-01") }
}

func TestResolverCompute(t *testing.T) {
	store := newTestStore(t)
	id := seedPairingScenario(t, store)
	resolver := NewResolver(store).WithClock(fixedClock())

	report, err := resolver.Compute(context.Background(), id)
	require.NoError(t, err)

	assert.True(t, report.Exists)
	assert.False(t, report.Acknowledged)
	assert.Equal(t, string(model.CycleFeeCandidate), report.Reason)
	require.Len(t, report.Cycles, 1)
	assert.Equal(t, model.CycleFeeCandidate, report.Cycles[0].Status)
	assert.True(t, report.Difference.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, []string{"ויזה כאל"}, report.MatchPatternsUsed)
}

func TestResolverComputeNotFound(t *testing.T) {
	store := newTestStore(t)
	resolver := NewResolver(store)

	_, err := resolver.Compute(context.Background(), 42)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolverComputeNoPatterns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor: "visaCal",
		BankVendor:       "hapoalim",
	})
	require.NoError(t, err)

	report, err := NewResolver(store).Compute(ctx, created.Pairing.ID)
	require.NoError(t, err)
	assert.False(t, report.Exists)
	assert.Empty(t, report.Cycles)
}

func TestComputeSharedBankAccountNoDoubleCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cardA := "1111"
	cardB := "2222"
	first, err := store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor:        "visaCal",
		CreditCardAccountNumber: &cardA,
		BankVendor:              "hapoalim",
		MatchPatterns:           []string{"ויזה כאל"},
	})
	require.NoError(t, err)
	second, err := store.CreatePairing(ctx, service.CreatePairingParams{
		CreditCardVendor:        "visaCal",
		CreditCardAccountNumber: &cardB,
		BankVendor:              "hapoalim",
		MatchPatterns:           []string{"ויזה כאל"},
	})
	require.NoError(t, err)

	seed(t, store, model.Transaction{
		Identifier: "b1", Vendor: "hapoalim", Date: day("2025-01-10"),
		Name: "ויזה כאל", Price: decimal.NewFromInt(-1200),
	})
	// Only the first card has statements.
	for _, txn := range []model.Transaction{
		cardTxn("c0", -100, "2024-09-10"),
		cardTxn("c1", -700, "2025-01-10"),
		cardTxn("c2", -500, "2025-01-10"),
	} {
		txn.AccountNumber = &cardA
		seed(t, store, txn)
	}

	resolver := NewResolver(store).WithClock(fixedClock())

	reportA, err := resolver.Compute(ctx, first.Pairing.ID)
	require.NoError(t, err)
	reportB, err := resolver.Compute(ctx, second.Pairing.ID)
	require.NoError(t, err)

	// The single bank debit lands with the card whose statement it pays,
	// and only there.
	require.Len(t, reportA.Cycles, 1)
	assert.Equal(t, model.CycleMatched, reportA.Cycles[0].Status)
	assert.Empty(t, reportB.Cycles)

	combined := reportA.TotalBankRepayments.Add(reportB.TotalBankRepayments)
	assert.True(t, combined.Equal(decimal.NewFromInt(1200)))
}

func TestAddFeeConverges(t *testing.T) {
	store := newTestStore(t)
	id := seedPairingScenario(t, store)
	resolver := NewResolver(store).WithClock(fixedClock())
	ctx := context.Background()

	require.NoError(t, resolver.AddFeeForCycle(ctx, id, "2025-01-10", decimal.NewFromInt(50), "ויזה כאל fee"))

	report, err := resolver.Compute(ctx, id)
	require.NoError(t, err)
	assert.False(t, report.Exists)
	require.Len(t, report.Cycles, 1)
	assert.Equal(t, model.CycleMatched, report.Cycles[0].Status)
	assert.Equal(t, 1, report.MatchedCycleCount)
	assert.True(t, report.Difference.IsZero())

	t.Run("second call is a no-op", func(t *testing.T) {
		require.NoError(t, resolver.AddFeeForCycle(ctx, id, "2025-01-10", decimal.NewFromInt(50), "ויזה כאל fee"))

		fees, err := store.GetTransactions(ctx, service.TransactionFilter{
			Vendor:       "visaCal",
			NamePatterns: []string{"%fee%"},
		})
		require.NoError(t, err)
		assert.Len(t, fees, 1)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		err := resolver.AddFeeForCycle(ctx, id, "2025-01-10", decimal.Zero, "fee")
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("missing pairing", func(t *testing.T) {
		err := resolver.AddFeeForCycle(ctx, 42, "2025-01-10", decimal.NewFromInt(10), "fee")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestIgnoreCycle(t *testing.T) {
	store := newTestStore(t)
	id := seedPairingScenario(t, store)
	resolver := NewResolver(store).WithClock(fixedClock())
	ctx := context.Background()

	require.NoError(t, resolver.IgnoreCycle(ctx, id, "2025-01-10"))
	require.NoError(t, resolver.IgnoreCycle(ctx, id, "2025-01-10"))

	report, err := resolver.Compute(ctx, id)
	require.NoError(t, err)
	assert.False(t, report.Exists)
	require.Len(t, report.Cycles, 1)
	assert.True(t, report.Cycles[0].Resolved)

	t.Run("missing pairing", func(t *testing.T) {
		assert.ErrorIs(t, resolver.IgnoreCycle(ctx, 42, "2025-01-10"), common.ErrNotFound)
	})

	t.Run("malformed cycle date", func(t *testing.T) {
		assert.ErrorIs(t, resolver.IgnoreCycle(ctx, id, "January 10"), common.ErrValidation)
	})
}

func TestAcknowledge(t *testing.T) {
	store := newTestStore(t)
	id := seedPairingScenario(t, store)
	resolver := NewResolver(store).WithClock(fixedClock())
	ctx := context.Background()

	require.NoError(t, resolver.Acknowledge(ctx, id))

	report, err := resolver.Compute(ctx, id)
	require.NoError(t, err)
	assert.True(t, report.Acknowledged)
	// The underlying signal stays intact.
	assert.True(t, report.Exists)

	assert.ErrorIs(t, resolver.Acknowledge(ctx, 42), common.ErrNotFound)
}
