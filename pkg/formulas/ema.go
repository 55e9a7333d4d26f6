package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateEMA returns the latest Exponential Moving Average over length
// periods, falling back to a plain mean when there isn't enough data for a
// proper EMA warmup.
func CalculateEMA(closes []float64, length int) *float64 {
	if len(closes) == 0 {
		return nil
	}
	if len(closes) < length {
		sma := Mean(closes)
		return &sma
	}
	ema := talib.Ema(closes, length)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}
	sma := Mean(closes[len(closes)-length:])
	return &sma
}

// CalculateSMA returns the latest Simple Moving Average over length
// periods, or nil if there isn't enough data.
func CalculateSMA(closes []float64, length int) *float64 {
	if len(closes) < length {
		return nil
	}
	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}
	return nil
}

// EMASeries returns the full Exponential Moving Average series over length
// periods, for callers that need more than the latest value (e.g. deriving
// a signal line from a spread of two EMAs).
func EMASeries(closes []float64, length int) []float64 {
	return talib.Ema(closes, length)
}

// CalculateDistanceFromEMA returns the percentage distance of the latest
// price from its EMA: (price - ema) / ema.
func CalculateDistanceFromEMA(closes []float64, length int) *float64 {
	if len(closes) == 0 {
		return nil
	}
	ema := CalculateEMA(closes, length)
	if ema == nil || *ema == 0 {
		return nil
	}
	distance := (closes[len(closes)-1] - *ema) / *ema
	return &distance
}
