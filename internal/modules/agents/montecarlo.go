package agents

import (
	"context"
	"fmt"

	"github.com/aristath/marketintel/internal/modules/indicators"
	"github.com/aristath/marketintel/pkg/formulas"
)

const (
	monteCarloSimulations = 10_000
	monteCarloConfidence  = 0.95
)

// MonteCarloOutput is MonteCarloSpecialist's payload: the simulated
// expected return, its standard deviation, and the CVaR of the simulated
// distribution at monteCarloConfidence.
type MonteCarloOutput struct {
	Ticker         string `json:"ticker"`
	SampleSize     int    `json:"sample_size"`
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	CVaR95         float64 `json:"cvar_95"`
}

// MonteCarloSpecialist runs a single-asset normal-distribution simulation
// driven by IndicatorEngine's own window history, reusing the same CVaR
// machinery PortfolioService uses for risk reporting.
type MonteCarloSpecialist struct {
	engine *indicators.Engine
}

// NewMonteCarloSpecialist builds a MonteCarloSpecialist over a shared
// engine.
func NewMonteCarloSpecialist(engine *indicators.Engine) *MonteCarloSpecialist {
	return &MonteCarloSpecialist{engine: engine}
}

// Name implements Specialist.
func (s *MonteCarloSpecialist) Name() string { return "montecarlo" }

// Run implements Specialist.
func (s *MonteCarloSpecialist) Run(ctx context.Context, ticker string) (any, error) {
	rows := s.engine.Rows(ticker)
	if len(rows) < 2 {
		return nil, fmt.Errorf("montecarlo: insufficient window history for %s", ticker)
	}

	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r.Close
	}
	returns := formulas.CalculateReturns(closes)

	mu := formulas.Mean(returns)
	variance := formulas.Variance(returns)

	covMatrix := [][]float64{{variance}}
	expectedReturns := map[string]float64{ticker: mu}
	weights := map[string]float64{ticker: 1.0}
	symbols := []string{ticker}

	cvar := formulas.MonteCarloCVaRWithWeights(covMatrix, expectedReturns, weights, symbols, monteCarloSimulations, monteCarloConfidence)

	return MonteCarloOutput{
		Ticker:         ticker,
		SampleSize:     len(returns),
		ExpectedReturn: mu,
		Volatility:     formulas.StdDev(returns),
		CVaR95:         cvar,
	}, nil
}
