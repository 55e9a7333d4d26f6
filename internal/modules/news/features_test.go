package news

import (
	"testing"
	"time"

	"github.com/aristath/marketintel/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestLiquidityImpact_HighPositiveAboveCutoff(t *testing.T) {
	impact := liquidityImpact(model.Sentiment{Label: model.SentimentPositive, Score: 0.9})
	assert.Equal(t, model.ImpactHighPositive, impact)
}

func TestLiquidityImpact_ModerateNegativeBelowCutoff(t *testing.T) {
	impact := liquidityImpact(model.Sentiment{Label: model.SentimentNegative, Score: 0.6})
	assert.Equal(t, model.ImpactModerateNegative, impact)
}

func TestLiquidityImpact_NeutralLabelIsNeutralImpact(t *testing.T) {
	impact := liquidityImpact(model.Sentiment{Label: model.SentimentNeutral, Score: 0.5})
	assert.Equal(t, model.ImpactNeutral, impact)
}

func TestScanCriticalEvents_FindsEarningsBeat(t *testing.T) {
	events := scanCriticalEvents("The company beats estimates this quarter with record profit.")
	assert.Contains(t, events, "earnings_beat")
}

func TestScanCriticalEvents_NoKeywordsReturnsEmpty(t *testing.T) {
	events := scanCriticalEvents("A quiet day in the markets.")
	assert.Empty(t, events)
}

func TestDecisionTags_BullishFactorTag(t *testing.T) {
	tags := decisionTags(model.Sentiment{Confidence: model.ConfidenceHigh}, model.ImpactHighPositive, nil, "earnings")
	assert.Contains(t, tags, "bullish_earnings")
	assert.Contains(t, tags, "high_confidence")
}

func TestClusterID_IsStableForSameInputs(t *testing.T) {
	published := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	a := clusterID("ACME", "earnings", published, "Acme beats Q4 estimates by a wide margin")
	b := clusterID("ACME", "earnings", published, "Acme beats Q4 estimates by a wide margin")
	assert.Equal(t, a, b)
}

func TestClusterID_DiffersForDifferentTitles(t *testing.T) {
	published := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	a := clusterID("ACME", "earnings", published, "Acme beats Q4 estimates")
	b := clusterID("ACME", "earnings", published, "Acme misses Q4 estimates entirely")
	assert.NotEqual(t, a, b)
}

func TestContentQuality_Buckets(t *testing.T) {
	assert.Equal(t, model.ContentPoor, contentQuality("short"))
	assert.Equal(t, model.ContentFair, contentQuality(string(make([]byte, 300))))
	assert.Equal(t, model.ContentGood, contentQuality(string(make([]byte, 900))))
}
