package agents

import (
	"context"
	"time"

	"github.com/aristath/marketintel/internal/store/document"
)

// TwitterOutput is TwitterSpecialist's payload: a sentiment score in
// [0, 1], a summary line, and the timestamp the analysis (or cache hit)
// was produced.
type TwitterOutput struct {
	SentimentScore float64   `json:"sentiment_score"`
	Summary        string    `json:"summary"`
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
}

type twitterCacheDoc struct {
	SentimentScore float64   `json:"sentiment_score"`
	Summary        string    `json:"summary"`
	Timestamp      time.Time `json:"timestamp"`
}

// defaultTwitterSentiment is the neutral-leaning fallback returned when no
// live or cached data is available.
const defaultTwitterSentiment = 0.5

// TwitterSpecialist runs a three-tier fallback: a live API fetch (out of
// scope here, since no third-party Twitter/X client is wired), a cached
// sentiment document keyed by ticker, and finally a neutral mock default.
type TwitterSpecialist struct {
	store *document.Store
}

// NewTwitterSpecialist builds a TwitterSpecialist over a shared document
// store.
func NewTwitterSpecialist(store *document.Store) *TwitterSpecialist {
	return &TwitterSpecialist{store: store}
}

// Name implements Specialist.
func (s *TwitterSpecialist) Name() string { return "twitter" }

// Run implements Specialist.
func (s *TwitterSpecialist) Run(ctx context.Context, ticker string) (any, error) {
	cached, found, err := document.Get[twitterCacheDoc](ctx, s.store, document.TableTwitterSentiment, ticker)
	if err == nil && found {
		return TwitterOutput{
			SentimentScore: cached.SentimentScore,
			Summary:        "[CACHED] " + cached.Summary,
			Timestamp:      cached.Timestamp,
			Source:         "cache",
		}, nil
	}

	return TwitterOutput{
		SentimentScore: defaultTwitterSentiment,
		Summary:        "Unable to fetch twitter data.",
		Timestamp:      time.Now().UTC(),
		Source:         "mock",
	}, nil
}
