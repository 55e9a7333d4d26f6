package agentrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/marketintel/internal/model"
)

func TestSentimentConflictPolicy_FlagsBuyAgainstBearishSentiment(t *testing.T) {
	policy := SentimentConflictPolicy{}

	conflict, reason := policy.Check(GraphResult{
		TechnicalAction: model.ActionBuy,
		NewsSentiment:   model.SentimentNegative,
	})

	assert.True(t, conflict)
	assert.Contains(t, reason, "BUY")
}

func TestSentimentConflictPolicy_FlagsSellAgainstBullishSentiment(t *testing.T) {
	policy := SentimentConflictPolicy{}

	conflict, _ := policy.Check(GraphResult{
		TechnicalAction:  model.ActionSell,
		TwitterSentiment: model.SentimentPositive,
	})

	assert.True(t, conflict)
}

func TestSentimentConflictPolicy_HoldNeverConflicts(t *testing.T) {
	policy := SentimentConflictPolicy{}

	conflict, _ := policy.Check(GraphResult{
		TechnicalAction: model.ActionHold,
		NewsSentiment:   model.SentimentNegative,
	})

	assert.False(t, conflict)
}

func TestSentimentConflictPolicy_AgreeingSignalsDoNotConflict(t *testing.T) {
	policy := SentimentConflictPolicy{}

	conflict, _ := policy.Check(GraphResult{
		TechnicalAction: model.ActionBuy,
		NewsSentiment:   model.SentimentPositive,
	})

	assert.False(t, conflict)
}
