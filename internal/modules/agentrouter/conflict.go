package agentrouter

import "github.com/aristath/marketintel/internal/model"

// GraphResult is what a Graph implementation returns after fanning out to
// the enabled specialist agents, joining their outputs, and running
// ExplainabilityAgent: the technical/sentiment signals ConflictPolicy
// inspects, plus the final payload to publish if no conflict is found.
type GraphResult struct {
	Ticker           string
	TechnicalAction  model.Action
	NewsSentiment    model.SentimentLabel
	TwitterSentiment model.SentimentLabel
	Payload          any
}

// ConflictPolicy decides whether a ticker's joined specialist outputs
// conflict badly enough that the result must not be published: if the
// technical-signal path detects sentiment conflict with the news/twitter
// read, the policy vetoes publication and records a conflict reason.
// Pluggable so deployments can tune or replace the conflict rule without
// touching Router's dispatch logic.
type ConflictPolicy interface {
	Check(result GraphResult) (conflict bool, reason string)
}

// SentimentConflictPolicy is the default ConflictPolicy: a technical BUY
// against bearish news/twitter sentiment, or a technical SELL against
// bullish sentiment, is a conflict. A HOLD technical action never
// conflicts, since it recommends no action for sentiment to contradict.
type SentimentConflictPolicy struct{}

// Check implements ConflictPolicy.
func (SentimentConflictPolicy) Check(r GraphResult) (bool, string) {
	bearish := r.NewsSentiment == model.SentimentNegative || r.TwitterSentiment == model.SentimentNegative
	bullish := r.NewsSentiment == model.SentimentPositive || r.TwitterSentiment == model.SentimentPositive

	switch r.TechnicalAction {
	case model.ActionBuy:
		if bearish {
			return true, "technical signal says BUY but news/twitter sentiment is bearish"
		}
	case model.ActionSell:
		if bullish {
			return true, "technical signal says SELL but news/twitter sentiment is bullish"
		}
	}
	return false, ""
}
