package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/modules/indicators"
	"github.com/aristath/marketintel/internal/modules/signalgen"
)

func seedEngine(t *testing.T, engine *indicators.Engine, ticker string, closes []float64) {
	t.Helper()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, c := range closes {
		engine.Observe(model.Candle{
			Ticker: ticker, Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		})
	}
}

func TestTechnicalSpecialist_ReturnsSnapshotAndDerivedSignal(t *testing.T) {
	engine := indicators.New(indicators.Config{})
	seedEngine(t, engine, "AAPL", []float64{100, 101, 102, 103, 104, 105})

	spec := NewTechnicalSpecialist(engine, signalgen.New(signalgen.Config{}))
	out, err := spec.Run(context.Background(), "AAPL")
	require.NoError(t, err)

	result := out.(TechnicalOutput)
	assert.Equal(t, "AAPL", result.Snapshot.Ticker)
	assert.Equal(t, "AAPL", result.Signal.Ticker)
}

func TestTechnicalSpecialist_ErrorsWhenNoWindowState(t *testing.T) {
	engine := indicators.New(indicators.Config{})
	spec := NewTechnicalSpecialist(engine, signalgen.New(signalgen.Config{}))

	_, err := spec.Run(context.Background(), "UNKNOWN")
	assert.Error(t, err)
}

func TestFundamentalSpecialist_ComputesRatiosFromWindowState(t *testing.T) {
	engine := indicators.New(indicators.Config{})
	seedEngine(t, engine, "AAPL", []float64{100, 102, 104, 106, 108, 110})

	spec := NewFundamentalSpecialist(engine)
	out, err := spec.Run(context.Background(), "AAPL")
	require.NoError(t, err)

	result := out.(FundamentalOutput)
	assert.Equal(t, "AAPL", result.Ticker)
	assert.NotEmpty(t, result.Notes)
}

func TestMonteCarloSpecialist_ComputesProjectionFromReturns(t *testing.T) {
	engine := indicators.New(indicators.Config{})
	seedEngine(t, engine, "AAPL", []float64{100, 101, 99, 102, 98, 103, 97, 104})

	spec := NewMonteCarloSpecialist(engine)
	out, err := spec.Run(context.Background(), "AAPL")
	require.NoError(t, err)

	result := out.(MonteCarloOutput)
	assert.Equal(t, "AAPL", result.Ticker)
	assert.Greater(t, result.SampleSize, 0)
}

func TestMonteCarloSpecialist_ErrorsOnInsufficientHistory(t *testing.T) {
	engine := indicators.New(indicators.Config{})
	seedEngine(t, engine, "AAPL", []float64{100})

	spec := NewMonteCarloSpecialist(engine)
	_, err := spec.Run(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestMajoritySentiment_TiebreaksTowardNeutral(t *testing.T) {
	assert.Equal(t, model.SentimentPositive, majoritySentiment(3, 1, 5))
	assert.Equal(t, model.SentimentNegative, majoritySentiment(1, 3, 5))
	assert.Equal(t, model.SentimentNeutral, majoritySentiment(2, 2, 5))
	assert.Equal(t, model.SentimentNeutral, majoritySentiment(0, 0, 0))
}

func TestSentimentFromScore_Buckets(t *testing.T) {
	assert.Equal(t, model.SentimentPositive, sentimentFromScore(0.8))
	assert.Equal(t, model.SentimentNegative, sentimentFromScore(0.1))
	assert.Equal(t, model.SentimentNeutral, sentimentFromScore(0.5))
}
