package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketintel/internal/apperr"
	"github.com/aristath/marketintel/internal/model"
)

func TestApplyTransaction_BuyOpensNewHoldingWithWeightedCostBasis(t *testing.T) {
	portfolio := model.Portfolio{Cash: 5000, Holdings: nil}
	txn := model.Transaction{Ticker: "MSFT", Action: model.TxnBuy, Quantity: 5, Price: 300, Fees: 10}

	updated, err := applyTransaction(portfolio, txn, NewHoldingDefaults{Sector: "Technology", Beta: 0.9})

	require.NoError(t, err)
	assert.InDelta(t, 3490, updated.Cash, 1e-9)
	require.Len(t, updated.Holdings, 1)
	h := updated.Holdings[0]
	assert.Equal(t, "MSFT", h.Ticker)
	assert.InDelta(t, 5, h.Quantity, 1e-9)
	assert.InDelta(t, 300, h.AvgCost, 1e-9)
	assert.InDelta(t, 1500, h.MarketValue, 1e-9)
	assert.InDelta(t, 1500.0/4990.0, h.Weight, 1e-9)
	assert.InDelta(t, 4990, updated.TotalValue, 1e-9)
	assert.InDelta(t, 1500.0/4990.0, updated.SectorExposures["Technology"], 1e-9)
}

func TestApplyTransaction_BuyAveragesCostOnExistingHolding(t *testing.T) {
	portfolio := model.Portfolio{
		Cash: 1000,
		Holdings: []model.Holding{
			{Ticker: "AAPL", Quantity: 10, AvgCost: 150, CurrentPrice: 150, Sector: "Technology"},
		},
	}
	portfolio.Holdings[0].Recompute()
	txn := model.Transaction{Ticker: "AAPL", Action: model.TxnBuy, Quantity: 10, Price: 170}

	updated, err := applyTransaction(portfolio, txn, NewHoldingDefaults{})

	require.NoError(t, err)
	require.Len(t, updated.Holdings, 1)
	assert.InDelta(t, 160, updated.Holdings[0].AvgCost, 1e-9)
	assert.InDelta(t, 20, updated.Holdings[0].Quantity, 1e-9)
}

func TestApplyTransaction_BuyRejectsWhenCashInsufficient(t *testing.T) {
	portfolio := model.Portfolio{Cash: 100}
	txn := model.Transaction{Ticker: "MSFT", Action: model.TxnBuy, Quantity: 5, Price: 300, Fees: 10}

	_, err := applyTransaction(portfolio, txn, NewHoldingDefaults{})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrCashConstraint)
}

func TestApplyTransaction_SellRejectsWhenHoldingAbsent(t *testing.T) {
	portfolio := model.Portfolio{Cash: 1000}
	txn := model.Transaction{Ticker: "MSFT", Action: model.TxnSell, Quantity: 1, Price: 300}

	_, err := applyTransaction(portfolio, txn, NewHoldingDefaults{})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientHoldings)
}

func TestApplyTransaction_SellRejectsWhenQuantityExceedsHolding(t *testing.T) {
	portfolio := model.Portfolio{
		Cash:     0,
		Holdings: []model.Holding{{Ticker: "MSFT", Quantity: 2, AvgCost: 300, CurrentPrice: 300}},
	}
	txn := model.Transaction{Ticker: "MSFT", Action: model.TxnSell, Quantity: 5, Price: 300}

	_, err := applyTransaction(portfolio, txn, NewHoldingDefaults{})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientHoldings)
}

func TestApplyTransaction_SellingEntirePositionRemovesHolding(t *testing.T) {
	portfolio := model.Portfolio{
		Cash: 0,
		Holdings: []model.Holding{
			{Ticker: "MSFT", Quantity: 5, AvgCost: 300, CurrentPrice: 300, Sector: "Technology"},
		},
	}
	txn := model.Transaction{Ticker: "MSFT", Action: model.TxnSell, Quantity: 5, Price: 320, Fees: 5}

	updated, err := applyTransaction(portfolio, txn, NewHoldingDefaults{})

	require.NoError(t, err)
	assert.Empty(t, updated.Holdings)
	assert.InDelta(t, 5*320-5, updated.Cash, 1e-9)
	assert.InDelta(t, updated.Cash, updated.TotalValue, 1e-9)
	assert.Empty(t, updated.SectorExposures)
}

func TestApplyTransaction_PartialSellReducesQuantityAndRecomputesWeights(t *testing.T) {
	portfolio := model.Portfolio{
		Cash: 1000,
		Holdings: []model.Holding{
			{Ticker: "MSFT", Quantity: 10, AvgCost: 300, CurrentPrice: 300, Sector: "Technology"},
		},
	}
	portfolio.Holdings[0].Recompute()
	txn := model.Transaction{Ticker: "MSFT", Action: model.TxnSell, Quantity: 4, Price: 310}

	updated, err := applyTransaction(portfolio, txn, NewHoldingDefaults{})

	require.NoError(t, err)
	require.Len(t, updated.Holdings, 1)
	assert.InDelta(t, 6, updated.Holdings[0].Quantity, 1e-9)
	assert.InDelta(t, 300, updated.Holdings[0].AvgCost, 1e-9, "avg cost is unchanged by a sell")

	wealthConservation := updated.Cash
	for _, h := range updated.Holdings {
		wealthConservation += h.MarketValue
	}
	assert.InDelta(t, updated.TotalValue, wealthConservation, 1e-9)
}

func TestApplyTransaction_RejectsUnsupportedAction(t *testing.T) {
	portfolio := model.Portfolio{Cash: 1000}
	txn := model.Transaction{Ticker: "MSFT", Action: model.TxnDividend, Quantity: 1, Price: 1}

	_, err := applyTransaction(portfolio, txn, NewHoldingDefaults{})

	assert.Error(t, err)
}

func TestApplyTransaction_DoesNotMutateCallersHoldingsSlice(t *testing.T) {
	original := []model.Holding{{Ticker: "MSFT", Quantity: 5, AvgCost: 300, CurrentPrice: 300}}
	portfolio := model.Portfolio{Cash: 1000, Holdings: original}
	txn := model.Transaction{Ticker: "MSFT", Action: model.TxnBuy, Quantity: 1, Price: 300}

	_, err := applyTransaction(portfolio, txn, NewHoldingDefaults{})

	require.NoError(t, err)
	assert.InDelta(t, 5, original[0].Quantity, 1e-9)
}
