package formulas

import (
	"fmt"
	"math"
)

// CorrelationMatrixFromCovariance derives a correlation matrix from a
// covariance matrix: corr(i,j) = cov(i,j) / sqrt(cov(i,i) * cov(j,j)).
func CorrelationMatrixFromCovariance(cov [][]float64) ([][]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	for i := 0; i < n; i++ {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance matrix is not square")
		}
	}

	vars := make([]float64, n)
	for i := 0; i < n; i++ {
		v := cov[i][i]
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid variance on diagonal at %d: %v", i, v)
		}
		vars[i] = v
	}

	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		corr[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			den := math.Sqrt(vars[i] * vars[j])
			val := 0.0
			if den > 0 {
				val = cov[i][j] / den
			}
			val = math.Max(-1.0, math.Min(1.0, val))
			corr[i][j] = val
			corr[j][i] = val
		}
	}
	return corr, nil
}

// CorrelationToDistance converts a correlation matrix to a distance matrix
// via d_ij = sqrt(2 * (1 - corr_ij)), for hierarchical-clustering risk
// parity.
func CorrelationToDistance(corrMatrix [][]float64) [][]float64 {
	n := len(corrMatrix)
	distMatrix := make([][]float64, n)
	for i := 0; i < n; i++ {
		distMatrix[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			corr := math.Max(-1.0, math.Min(1.0, corrMatrix[i][j]))
			distMatrix[i][j] = math.Sqrt(2.0 * (1.0 - corr))
		}
	}
	return distMatrix
}

// InverseVarianceWeights computes risk-parity weights via inverse-variance
// weighting: w_i = (1/v_i) / sum(1/v_j).
func InverseVarianceWeights(variances []float64) []float64 {
	n := len(variances)
	weights := make([]float64, n)

	var totalInvVariance float64
	for _, v := range variances {
		if v > 0 {
			totalInvVariance += 1.0 / v
		}
	}

	if totalInvVariance == 0 {
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}
		return weights
	}

	for i, v := range variances {
		if v > 0 {
			weights[i] = (1.0 / v) / totalInvVariance
		}
	}
	return weights
}
