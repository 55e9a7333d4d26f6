package agents

import (
	"context"
	"fmt"

	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/store/document"
)

// NewsOutput is NewsSpecialist's payload: the overall sentiment across a
// ticker's recent story clusters and the clusters it was computed from.
type NewsOutput struct {
	Ticker          string              `json:"ticker"`
	ClusterCount    int                 `json:"cluster_count"`
	OverallSentiment model.SentimentLabel `json:"overall_sentiment"`
	LiquidityImpact model.LiquidityImpact `json:"liquidity_impact"`
	Clusters        []model.StoryCluster `json:"clusters"`
}

const newsLookback = 50

// NewsSpecialist summarizes a ticker's most recent story clusters from the
// document store, rather than re-scraping or re-classifying anything:
// NewsEnricher has already done that work; this just aggregates it.
type NewsSpecialist struct {
	store *document.Store
}

// NewNewsSpecialist builds a NewsSpecialist over a shared document store.
func NewNewsSpecialist(store *document.Store) *NewsSpecialist {
	return &NewsSpecialist{store: store}
}

// Name implements Specialist.
func (s *NewsSpecialist) Name() string { return "news" }

// Run implements Specialist.
func (s *NewsSpecialist) Run(ctx context.Context, ticker string) (any, error) {
	clusters, err := document.Query[model.StoryCluster](ctx, s.store,
		"SELECT * FROM type::table($table) WHERE company = $company ORDER BY published_at DESC LIMIT $limit",
		map[string]any{"table": document.TableStoryClusters, "company": ticker, "limit": newsLookback})
	if err != nil {
		return nil, fmt.Errorf("news specialist: query story clusters for %s: %w", ticker, err)
	}

	out := NewsOutput{
		Ticker:           ticker,
		ClusterCount:     len(clusters),
		OverallSentiment: model.SentimentNeutral,
		LiquidityImpact:  model.ImpactNeutral,
		Clusters:         clusters,
	}
	if len(clusters) == 0 {
		return out, nil
	}

	var score float64
	positive, negative := 0, 0
	for _, c := range clusters {
		score += c.Sentiment.Score
		switch c.Sentiment.Label {
		case model.SentimentPositive:
			positive++
		case model.SentimentNegative:
			negative++
		}
	}
	out.OverallSentiment = majoritySentiment(positive, negative, len(clusters))
	out.LiquidityImpact = clusters[0].LiquidityImpact
	return out, nil
}

func majoritySentiment(positive, negative, total int) model.SentimentLabel {
	neutral := total - positive - negative
	switch {
	case positive > negative && positive >= neutral:
		return model.SentimentPositive
	case negative > positive && negative >= neutral:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}
