package agents

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/modules/agentrouter"
	"github.com/aristath/marketintel/internal/modules/explain"
)

// AnalysisPayload is the joined output AgentRouter publishes to the
// stock_analysis topic: every specialist's output keyed by name, plus
// ExplainabilityAgent's narrative summary.
type AnalysisPayload struct {
	Ticker      string         `json:"ticker"`
	Technical   *TechnicalOutput   `json:"technical,omitempty"`
	News        *NewsOutput        `json:"news,omitempty"`
	Twitter     *TwitterOutput     `json:"twitter,omitempty"`
	Fundamental *FundamentalOutput `json:"fundamental,omitempty"`
	MonteCarlo  *MonteCarloOutput  `json:"montecarlo,omitempty"`
	Explanation explain.Report     `json:"explanation"`
}

// Graph fans out to the specialist roster the routing decision enables,
// offloading each call to the shared worker pool, joins their outputs, and
// runs ExplainabilityAgent over the join. It implements agentrouter.Graph.
type Graph struct {
	technical   *TechnicalSpecialist
	news        *NewsSpecialist
	twitter     *TwitterSpecialist
	fundamental *FundamentalSpecialist
	montecarlo  *MonteCarloSpecialist
	explainer   *explain.Agent
	log         zerolog.Logger
}

// NewGraph builds a Graph from the specialist roster and ExplainabilityAgent.
// Any specialist may be nil, meaning its flag is treated as always-off.
func NewGraph(
	technical *TechnicalSpecialist,
	news *NewsSpecialist,
	twitter *TwitterSpecialist,
	fundamental *FundamentalSpecialist,
	montecarlo *MonteCarloSpecialist,
	explainer *explain.Agent,
	log zerolog.Logger,
) *Graph {
	return &Graph{
		technical: technical, news: news, twitter: twitter,
		fundamental: fundamental, montecarlo: montecarlo,
		explainer: explainer,
		log:       log.With().Str("component", "agent_graph").Logger(),
	}
}

// Run implements agentrouter.Graph.
func (g *Graph) Run(ctx context.Context, pool *agentrouter.Pool, ticker string, decision model.RoutingDecision) (agentrouter.GraphResult, error) {
	payload := AnalysisPayload{Ticker: ticker}
	contributions := make([]string, 0, 5)

	var mu sync.Mutex
	var wg sync.WaitGroup
	runIf := func(enabled bool, specialist Specialist, assign func(any)) {
		if !enabled || specialist == nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := pool.Submit(ctx, func(ctx context.Context) (any, error) {
				return specialist.Run(ctx, ticker)
			})
			if err != nil {
				g.log.Warn().Err(err).Str("ticker", ticker).Str("specialist", specialist.Name()).Msg("specialist failed")
				return
			}
			mu.Lock()
			assign(out)
			contributions = append(contributions, specialist.Name())
			mu.Unlock()
		}()
	}

	runIf(decision.RunTechnical, g.technical, func(v any) {
		out := v.(TechnicalOutput)
		payload.Technical = &out
	})
	runIf(decision.RunNews, g.news, func(v any) {
		out := v.(NewsOutput)
		payload.News = &out
	})
	runIf(decision.RunTwitter, g.twitter, func(v any) {
		out := v.(TwitterOutput)
		payload.Twitter = &out
	})
	runIf(decision.RunFundamental, g.fundamental, func(v any) {
		out := v.(FundamentalOutput)
		payload.Fundamental = &out
	})
	runIf(decision.RunMonteCarlo, g.montecarlo, func(v any) {
		out := v.(MonteCarloOutput)
		payload.MonteCarlo = &out
	})
	wg.Wait()

	if g.explainer != nil {
		report, err := g.explainer.Explain(ctx, explain.Input{
			Tickers:       decision.Tickers,
			Contributions: contributions,
			Payload:       payload,
		})
		if err != nil {
			return agentrouter.GraphResult{}, fmt.Errorf("agent graph: explainability failed for %s: %w", ticker, err)
		}
		payload.Explanation = report
	}

	result := agentrouter.GraphResult{
		Ticker:  ticker,
		Payload: payload,
	}
	if payload.Technical != nil {
		result.TechnicalAction = payload.Technical.Signal.Action
	}
	if payload.News != nil {
		result.NewsSentiment = payload.News.OverallSentiment
	}
	if payload.Twitter != nil {
		result.TwitterSentiment = sentimentFromScore(payload.Twitter.SentimentScore)
	}
	return result, nil
}

// sentimentFromScore buckets Twitter's [0,1] sentiment_score into the same
// three-way label news uses, so ConflictPolicy can compare them uniformly.
func sentimentFromScore(score float64) model.SentimentLabel {
	switch {
	case score >= 0.6:
		return model.SentimentPositive
	case score <= 0.4:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}
