package explain

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePortfolioLookup struct {
	view  PortfolioView
	found bool
}

func (f fakePortfolioLookup) GetPortfolio(ctx context.Context, userID string) (PortfolioView, bool, error) {
	return f.view, f.found, nil
}

func TestExplain_ReturnsDeterministicFallbackWhenNoLLMConfigured(t *testing.T) {
	agent := New(nil, fakePortfolioLookup{}, zerolog.Nop())

	report, err := agent.Explain(context.Background(), Input{
		Query:         "should I sell AAPL?",
		Tickers:       []string{"AAPL"},
		Contributions: []string{"technical", "news"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, report.Tickers)
	assert.Equal(t, ActionManualReview, report.PortfolioContext.SuggestedAction)
	assert.Contains(t, report.Summary, "AAPL")
	assert.Contains(t, report.Summary, "technical, news")
}

func TestExplain_FallbackNotesNoAgentsWhenRosterEmpty(t *testing.T) {
	agent := New(nil, fakePortfolioLookup{}, zerolog.Nop())

	report, err := agent.Explain(context.Background(), Input{Query: "general market check"})

	require.NoError(t, err)
	assert.Empty(t, report.Tickers)
	assert.Contains(t, report.Summary, "Market")
	assert.Contains(t, report.Summary, "None")
}
