package sentiment

import (
	"testing"

	"github.com/aristath/marketintel/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestSplitChunks_ShortTextReturnsHeadOnly(t *testing.T) {
	head, middle := splitChunks("short text")
	assert.Equal(t, "short text", head)
	assert.Equal(t, "", middle)
}

func TestSplitChunks_LongTextProducesHeadAndMiddle(t *testing.T) {
	text := make([]byte, 2000)
	for i := range text {
		text[i] = byte('a' + i%26)
	}
	head, middle := splitChunks(string(text))
	assert.Len(t, head, chunkSize)
	assert.NotEmpty(t, middle)
}

func TestConfidenceFor_Buckets(t *testing.T) {
	assert.Equal(t, model.ConfidenceHigh, confidenceFor(classification{Positive: 0.9, Negative: 0.05, Neutral: 0.05}))
	assert.Equal(t, model.ConfidenceMedium, confidenceFor(classification{Positive: 0.7, Negative: 0.2, Neutral: 0.1}))
	assert.Equal(t, model.ConfidenceLow, confidenceFor(classification{Positive: 0.4, Negative: 0.35, Neutral: 0.25}))
}

func TestToSentiment_PicksArgmaxLabel(t *testing.T) {
	s := toSentiment(classification{Positive: 0.2, Negative: 0.7, Neutral: 0.1}, model.ConfidenceHigh)
	assert.Equal(t, model.SentimentNegative, s.Label)
	assert.Equal(t, 0.7, s.Score)
}
