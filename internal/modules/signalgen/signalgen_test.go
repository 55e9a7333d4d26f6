package signalgen

import (
	"testing"
	"time"

	"github.com/aristath/marketintel/internal/model"
	"github.com/stretchr/testify/assert"
)

func baseSnapshot() model.IndicatorSnapshot {
	return model.IndicatorSnapshot{
		Ticker: "ACME", WindowEnd: time.Date(2026, 1, 1, 9, 35, 0, 0, time.UTC),
		Close: 100, Open: 99, High: 101, Low: 98, Volume: 1000,
		MACD: model.Triplet{1, 0.5, 0.5}, RSI: 30, ADL: 0,
		SMA20: 105, SMA50: 95, Std20: 1, BB: model.Pair{99, 110},
		VWAP: 98, ATR14: 2, CMO: -35, CRSI: 20,
		Klinger: model.Triplet{1, 0.2, 0.8}, Keltner: model.Triplet{100, 110, 90},
		WindowMinLow: 80, WindowMaxHigh: 101, WindowAvgVolume: 900,
	}
}

func TestGenerate_GuardsOnPriceBelowWindowMinLow(t *testing.T) {
	snap := baseSnapshot()
	snap.WindowMinLow = 200
	g := New(Config{})
	signal := g.Generate("ACME", snap)
	assert.Equal(t, model.ActionHold, signal.Action)
}

func TestGenerate_GuardsOnZeroVolume(t *testing.T) {
	snap := baseSnapshot()
	snap.Volume = 0
	g := New(Config{})
	signal := g.Generate("ACME", snap)
	assert.Equal(t, model.ActionHold, signal.Action)
}

func TestGenerate_BuyWhenVotesMeetThreshold(t *testing.T) {
	snap := baseSnapshot()
	g := New(Config{BuyThreshold: 5, SellThreshold: 5})
	signal := g.Generate("ACME", snap)
	assert.Equal(t, model.ActionBuy, signal.Action)
	assert.Greater(t, signal.SignalStrength, 0)
	assert.Less(t, signal.StopLoss, signal.CurrentPrice)
	assert.Greater(t, signal.TakeProfit, signal.CurrentPrice)
}

func TestGenerate_SellWhenVotesMeetThreshold(t *testing.T) {
	snap := model.IndicatorSnapshot{
		Ticker: "ACME", WindowEnd: time.Now(),
		Close: 112, Open: 110, High: 115, Low: 90, Volume: 1000,
		MACD: model.Triplet{-1, 0.5, -1.5}, RSI: 60,
		SMA20: 95, SMA50: 105, BB: model.Pair{90, 110},
		VWAP: 115, ATR14: 2, CMO: 35, CRSI: 80,
		Klinger: model.Triplet{-1, 0.2, -1.2}, Keltner: model.Triplet{100, 110, 90},
		WindowMinLow: 80, WindowMaxHigh: 115,
	}
	g := New(Config{BuyThreshold: 5, SellThreshold: 5})
	signal := g.Generate("ACME", snap)
	assert.Equal(t, model.ActionSell, signal.Action)
}

type stubRegressor struct {
	prediction float64
}

func (s stubRegressor) Predict(features [11]float64) (float64, error) {
	return s.prediction, nil
}

func TestGenerate_RegressorTiltsVoteAndRaisesThreshold(t *testing.T) {
	snap := baseSnapshot()
	snap.RSI = 50 // neutral, so the RSI rule casts no vote
	g := New(Config{BuyThreshold: 1, SellThreshold: 1, Regressor: stubRegressor{prediction: 0.5}})
	signal := g.Generate("ACME", snap)
	assert.Contains(t, signal.Reason, "model says buy")
}
