package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// CalculateCVaR computes Conditional Value at Risk: the average loss in the
// tail beyond the (1-confidence) worst returns.
func CalculateCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	if len(returns) == 1 {
		return returns[0]
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	tailProbability := 1.0 - confidence
	tailCount := int(math.Ceil(float64(len(sorted)) * tailProbability))
	if tailCount == 0 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	tailReturns := sorted[:tailCount]
	sum := 0.0
	for _, r := range tailReturns {
		sum += r
	}
	return sum / float64(len(tailReturns))
}

// CalculatePortfolioCVaR aggregates per-symbol CVaR by portfolio weight.
func CalculatePortfolioCVaR(weights map[string]float64, returns map[string][]float64, confidence float64) float64 {
	if len(weights) == 0 {
		return 0.0
	}
	cvarBySymbol := make(map[string]float64)
	for symbol, rets := range returns {
		cvarBySymbol[symbol] = CalculateCVaR(rets, confidence)
	}
	portfolioCVaR := 0.0
	for symbol, weight := range weights {
		if cvar, hasCVaR := cvarBySymbol[symbol]; hasCVaR {
			portfolioCVaR += weight * cvar
		}
	}
	return portfolioCVaR
}

// MonteCarloCVaRWithWeights simulates portfolio returns from a covariance
// matrix, expected returns, and explicit weights, then computes CVaR over
// the simulated distribution.
func MonteCarloCVaRWithWeights(
	covMatrix [][]float64,
	expectedReturns map[string]float64,
	weights map[string]float64,
	symbols []string,
	numSimulations int,
	confidence float64,
) float64 {
	if len(covMatrix) == 0 || len(symbols) == 0 {
		return 0.0
	}
	n := len(symbols)
	if len(covMatrix) != n {
		return 0.0
	}

	mu := make([]float64, n)
	w := make([]float64, n)
	for i, symbol := range symbols {
		if ret, hasRet := expectedReturns[symbol]; hasRet {
			mu[i] = ret
		}
		if weight, hasWeight := weights[symbol]; hasWeight {
			w[i] = weight
		}
	}

	portfolioMu := 0.0
	for i := 0; i < n; i++ {
		portfolioMu += w[i] * mu[i]
	}

	portfolioVariance := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			portfolioVariance += w[i] * w[j] * covMatrix[i][j]
		}
	}
	portfolioStdDev := math.Sqrt(math.Max(portfolioVariance, 1e-10))

	normal := distuv.Normal{Mu: portfolioMu, Sigma: portfolioStdDev}
	simulatedReturns := make([]float64, numSimulations)
	for i := 0; i < numSimulations; i++ {
		simulatedReturns[i] = normal.Rand()
	}

	return CalculateCVaR(simulatedReturns, confidence)
}
