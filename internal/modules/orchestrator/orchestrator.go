// Package orchestrator implements Orchestrator: LLM-based intent parsing of
// a free-text query (or a Kafka-triggered signal, which short-circuits the
// LLM call) into a RoutingDecision naming which specialist agents to run
// over which ticker(s).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/llm"
	"github.com/aristath/marketintel/internal/model"
)

const defaultTimeframeHours = 24

// llmDecision is the strict-JSON shape the routing LLM call must produce,
// mirroring AgentRoutingDecision's field set.
type llmDecision struct {
	Tickers        []string `json:"tickers"`
	TimeframeHours int      `json:"timeframe_hours"`
	Interval       string   `json:"interval"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	RunNews        bool     `json:"run_news"`
	RunTwitter     bool     `json:"run_twitter"`
	RunTechnical   bool     `json:"run_technical"`
	RunFundamental bool     `json:"run_fundamental"`
	RunMonteCarlo  bool     `json:"run_montecarlo"`
}

// KafkaTrigger carries the ticker a Kafka-originated message names, bypassing
// the LLM routing call entirely.
type KafkaTrigger struct {
	Ticker string
}

// Orchestrator parses queries into RoutingDecisions.
type Orchestrator struct {
	llm        *llm.Client
	instruments *InstrumentIndex
	log        zerolog.Logger
}

// New constructs an Orchestrator.
func New(client *llm.Client, instruments *InstrumentIndex, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{llm: client, instruments: instruments, log: log.With().Str("component", "orchestrator").Logger()}
}

// ParseQuery builds a RoutingDecision for a terminal/API query. trigger is
// nil for ordinary terminal queries.
func (o *Orchestrator) ParseQuery(ctx context.Context, query string, msgType model.MessageType, trigger *KafkaTrigger) (model.RoutingDecision, error) {
	decision, err := o.decide(ctx, query, msgType, trigger)
	if err != nil {
		return model.RoutingDecision{}, err
	}

	now := time.Now()
	endDate := parseISODateOrDefault(decision.EndDate, now)
	startDate := resolveStartDate(decision.StartDate, decision.Interval, endDate)
	if !startDate.Before(endDate) {
		startDate = endDate.Add(-24 * time.Hour)
	}

	resolved := o.instruments.ResolveAll(decision.Tickers)
	tickers := make([]string, 0, len(resolved))
	for _, r := range resolved {
		if r.MatchType != model.MatchUnresolved {
			tickers = append(tickers, r.Ticker)
		}
	}

	out := model.RoutingDecision{
		Tickers: tickers, TimeframeHours: decision.TimeframeHours, Interval: decision.Interval,
		StartDate: startDate, EndDate: endDate,
		RunNews: decision.RunNews, RunTwitter: decision.RunTwitter, RunTechnical: decision.RunTechnical,
		RunFundamental: decision.RunFundamental, RunMonteCarlo: decision.RunMonteCarlo,
	}

	// Disable all specialists when more than one (or zero) tickers
	// resolved: multi-ticker queries (comparisons) and unresolved queries
	// don't have a single well-defined subject for the per-ticker
	// specialist agents.
	if len(tickers) != 1 {
		o.log.Info().Int("ticker_count", len(tickers)).Msg("disabling specialist agents: ticker count is not exactly one")
		out.RunNews, out.RunTwitter, out.RunTechnical, out.RunFundamental, out.RunMonteCarlo = false, false, false, false, false
	}

	return out, nil
}

func (o *Orchestrator) decide(ctx context.Context, query string, msgType model.MessageType, trigger *KafkaTrigger) (llmDecision, error) {
	switch msgType {
	case model.MessageTechnicalKafka:
		ticker := ""
		if trigger != nil {
			ticker = trigger.Ticker
		}
		return llmDecision{
			Tickers: []string{ticker}, TimeframeHours: defaultTimeframeHours,
			RunNews: true, RunTwitter: true, RunMonteCarlo: true, Interval: "day",
		}, nil
	case model.MessageNewsKafka:
		ticker := ""
		if trigger != nil {
			ticker = trigger.Ticker
		}
		return llmDecision{
			Tickers: []string{ticker}, TimeframeHours: defaultTimeframeHours,
			RunTechnical: true, RunMonteCarlo: true, Interval: "day",
		}, nil
	}

	var decision llmDecision
	if err := o.llm.GenerateJSON(ctx, routingPrompt(query), &decision); err != nil {
		return fallbackDecision(query), nil
	}
	if decision.TimeframeHours <= 0 {
		decision.TimeframeHours = defaultTimeframeHours
	}
	if decision.Interval == "" {
		decision.Interval = "5minute"
	}
	return decision, nil
}

// fallbackDecision is used when the LLM routing call fails entirely: run
// news only, over whatever tickers a plain query implies (an empty ticker
// list rather than scanning for capitalized words, which produces false
// positives on ordinary capitalized words).
func fallbackDecision(_ string) llmDecision {
	return llmDecision{TimeframeHours: defaultTimeframeHours, Interval: "day", RunNews: true}
}

func routingPrompt(query string) string {
	now := time.Now()
	return fmt.Sprintf(`You are a financial query router. Parse the user query into strict JSON:
{"tickers": ["<str>", ...], "timeframe_hours": <int>, "interval": "<5minute|15minute|60minute|day>",
"start_date": "<ISO8601 or empty>", "end_date": "<ISO8601 or empty>",
"run_news": <bool>, "run_twitter": <bool>, "run_technical": <bool>, "run_fundamental": <bool>, "run_montecarlo": <bool>}

Rules:
- tickers: company names or ticker symbols mentioned; empty list if none.
- run_news: true for headlines/catalysts/"why is it moving" queries.
- run_twitter: true only for explicit social-sentiment/hype/Twitter/X requests.
- run_technical: true for price action, patterns, support/resistance, indicators.
- run_fundamental: true for fair value, intrinsic value, DCF, financial health.
- run_montecarlo: true for risk, probability, or a buy/sell recommendation request.
- "Should I buy X?" implies run_technical, run_news, and run_montecarlo at minimum.
- "Is X safe?" implies run_montecarlo and run_fundamental at minimum.
- Current date: %s

Query: %s`, now.Format("2006-01-02"), query)
}

func parseISODateOrDefault(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return fallback
}

// resolveStartDate applies an interval-based smart default when no
// explicit start_date is given: a year of history for daily charts, ~2
// months for swing intervals, 5 days for intraday.
func resolveStartDate(s, interval string, end time.Time) time.Time {
	if s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
	}
	switch interval {
	case "day":
		return end.AddDate(0, 0, -365)
	case "60minute", "30minute":
		return end.AddDate(0, 0, -60)
	default:
		return end.AddDate(0, 0, -5)
	}
}
