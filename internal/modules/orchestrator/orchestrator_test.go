package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketintel/internal/model"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	idx, err := LoadInstrumentIndex(writeInstrumentsCSV(t), 0.8, nil)
	require.NoError(t, err)
	return New(nil, idx, zerolog.Nop())
}

func TestDecide_TechnicalKafkaShortCircuitsWithoutCallingLLM(t *testing.T) {
	o := newTestOrchestrator(t)

	decision, err := o.decide(context.Background(), "", model.MessageTechnicalKafka, &KafkaTrigger{Ticker: "RELIANCE"})
	require.NoError(t, err)

	assert.Equal(t, []string{"RELIANCE"}, decision.Tickers)
	assert.True(t, decision.RunNews)
	assert.True(t, decision.RunTwitter)
	assert.True(t, decision.RunMonteCarlo)
	assert.False(t, decision.RunTechnical)
}

func TestDecide_NewsKafkaShortCircuitsWithoutCallingLLM(t *testing.T) {
	o := newTestOrchestrator(t)

	decision, err := o.decide(context.Background(), "", model.MessageNewsKafka, &KafkaTrigger{Ticker: "TCS"})
	require.NoError(t, err)

	assert.Equal(t, []string{"TCS"}, decision.Tickers)
	assert.True(t, decision.RunTechnical)
	assert.True(t, decision.RunMonteCarlo)
	assert.False(t, decision.RunNews)
}

func TestParseQuery_ResolvesTickerAndKeepsSpecialistsEnabledForKafkaTrigger(t *testing.T) {
	o := newTestOrchestrator(t)

	decision, err := o.ParseQuery(context.Background(), "", model.MessageTechnicalKafka, &KafkaTrigger{Ticker: "RELIANCE INDUSTRIES LTD"})
	require.NoError(t, err)

	assert.Equal(t, []string{"RELIANCE"}, decision.Tickers)
	assert.True(t, decision.RunNews)
}

func TestParseQuery_DisablesSpecialistsWhenNoTickerResolves(t *testing.T) {
	o := newTestOrchestrator(t)

	decision, err := o.ParseQuery(context.Background(), "", model.MessageTechnicalKafka, &KafkaTrigger{Ticker: ""})
	require.NoError(t, err)

	assert.Empty(t, decision.Tickers)
	assert.False(t, decision.RunNews)
	assert.False(t, decision.RunTwitter)
	assert.False(t, decision.RunMonteCarlo)
}

func TestResolveStartDate_DefaultsByInterval(t *testing.T) {
	end := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, end.AddDate(0, 0, -365), resolveStartDate("", "day", end))
	assert.Equal(t, end.AddDate(0, 0, -60), resolveStartDate("", "60minute", end))
	assert.Equal(t, end.AddDate(0, 0, -5), resolveStartDate("", "5minute", end))
}

func TestParseISODateOrDefault_FallsBackOnEmptyOrInvalid(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, fallback, parseISODateOrDefault("", fallback))
	assert.Equal(t, fallback, parseISODateOrDefault("not-a-date", fallback))

	parsed := parseISODateOrDefault("2025-03-04", fallback)
	assert.Equal(t, 2025, parsed.Year())
}
