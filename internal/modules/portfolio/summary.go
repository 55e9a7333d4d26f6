package portfolio

import (
	"context"
	"fmt"

	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/modules/indicators"
	"github.com/aristath/marketintel/pkg/formulas"
)

// riskConfidence is the tail probability CVaR is computed at, matching the
// confidence level agents.MonteCarloSpecialist uses so the two risk figures
// a user sees (per-ticker projection, portfolio-level CVaR) are directly
// comparable.
const riskConfidence = 0.95

// Summary is PortfolioService's read-only report: the portfolio itself plus
// a portfolio-level risk figure derived from each holding's own historical
// returns and its current weight.
type Summary struct {
	Portfolio model.Portfolio `json:"portfolio"`
	CVaR95    float64         `json:"cvar_95"`
}

// Summary builds a Summary for portfolioID. engine supplies each holding's
// price history for the CVaR calculation; a nil engine or a ticker with
// fewer than two observed candles simply contributes zero weight to the
// risk figure rather than failing the whole report.
func (s *Service) Summary(ctx context.Context, portfolioID string, engine *indicators.Engine) (Summary, bool, error) {
	p, found, err := s.Get(ctx, portfolioID)
	if err != nil {
		return Summary{}, false, fmt.Errorf("portfolio: summary %s: %w", portfolioID, err)
	}
	if !found {
		return Summary{}, false, nil
	}

	if engine == nil || len(p.Holdings) == 0 {
		return Summary{Portfolio: p}, true, nil
	}

	weights := make(map[string]float64, len(p.Holdings))
	returns := make(map[string][]float64, len(p.Holdings))
	for _, h := range p.Holdings {
		weights[h.Ticker] = h.Weight

		rows := engine.Rows(h.Ticker)
		if len(rows) < 2 {
			continue
		}
		closes := make([]float64, len(rows))
		for i, row := range rows {
			closes[i] = row.Close
		}
		returns[h.Ticker] = formulas.CalculateReturns(closes)
	}

	cvar := formulas.CalculatePortfolioCVaR(weights, returns, riskConfidence)
	return Summary{Portfolio: p, CVaR95: cvar}, true, nil
}
