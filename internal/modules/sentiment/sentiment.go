// Package sentiment implements SentimentService: chunked financial
// sentiment classification with weighted aggregation across a head and
// middle chunk of article text.
package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/marketintel/internal/llm"
	"github.com/aristath/marketintel/internal/model"
)

const (
	shortTextThreshold = 200
	chunkSize          = 450
	headWeight         = 0.70
	middleWeight       = 0.30

	confidenceHighCutoff   = 0.85
	confidenceMediumCutoff = 0.65
)

// Service classifies article text into a model.Sentiment via the shared
// LLM client.
type Service struct {
	llm *llm.Client
}

// New constructs a Service.
func New(client *llm.Client) *Service {
	return &Service{llm: client}
}

type classification struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Classify runs the chunking/weighting policy and returns the aggregated
// Sentiment.
func (s *Service) Classify(ctx context.Context, title, text string) (model.Sentiment, error) {
	if len(text) < shortTextThreshold && title != "" {
		cls, err := s.classifyChunk(ctx, title)
		if err != nil {
			return model.Sentiment{}, err
		}
		return toSentiment(cls, model.ConfidenceLow), nil
	}

	head, middle := splitChunks(text)
	headCls, err := s.classifyChunk(ctx, head)
	if err != nil {
		return model.Sentiment{}, err
	}
	if middle == "" {
		return toSentiment(headCls, confidenceFor(headCls)), nil
	}
	middleCls, err := s.classifyChunk(ctx, middle)
	if err != nil {
		return toSentiment(headCls, confidenceFor(headCls)), nil
	}

	aggregated := classification{
		Positive: headCls.Positive*headWeight + middleCls.Positive*middleWeight,
		Negative: headCls.Negative*headWeight + middleCls.Negative*middleWeight,
		Neutral:  headCls.Neutral*headWeight + middleCls.Neutral*middleWeight,
	}
	return toSentiment(aggregated, confidenceFor(aggregated)), nil
}

func splitChunks(text string) (head, middle string) {
	if len(text) <= chunkSize {
		return text, ""
	}
	head = text[:chunkSize]
	mid := len(text) / 2
	start := mid - chunkSize/2
	if start < chunkSize {
		start = chunkSize
	}
	end := start + chunkSize
	if end > len(text) {
		end = len(text)
	}
	if start >= end {
		return head, ""
	}
	return head, text[start:end]
}

func (s *Service) classifyChunk(ctx context.Context, text string) (classification, error) {
	prompt := fmt.Sprintf(`Classify the financial sentiment of this text. Respond with strict JSON
{"positive": <0..1>, "negative": <0..1>, "neutral": <0..1>} where the three scores sum to 1.

Text:
%s`, strings.TrimSpace(text))

	var cls classification
	if err := s.llm.GenerateJSON(ctx, prompt, &cls); err != nil {
		return classification{}, fmt.Errorf("sentiment: classify chunk: %w", err)
	}
	return cls, nil
}

func confidenceFor(cls classification) model.Confidence {
	top := topScore(cls)
	switch {
	case top > confidenceHighCutoff:
		return model.ConfidenceHigh
	case top > confidenceMediumCutoff:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func topScore(cls classification) float64 {
	top := cls.Positive
	if cls.Negative > top {
		top = cls.Negative
	}
	if cls.Neutral > top {
		top = cls.Neutral
	}
	return top
}

func toSentiment(cls classification, confidence model.Confidence) model.Sentiment {
	label := model.SentimentNeutral
	score := cls.Neutral
	switch {
	case cls.Positive >= cls.Negative && cls.Positive >= cls.Neutral:
		label = model.SentimentPositive
		score = cls.Positive
	case cls.Negative >= cls.Positive && cls.Negative >= cls.Neutral:
		label = model.SentimentNegative
		score = cls.Negative
	}
	return model.Sentiment{
		Label:      label,
		Score:      score,
		Confidence: confidence,
		ClassScores: map[string]float64{
			"positive": cls.Positive,
			"negative": cls.Negative,
			"neutral":  cls.Neutral,
		},
	}
}
