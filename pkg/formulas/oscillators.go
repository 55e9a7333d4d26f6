package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateRSI returns the latest Wilder RSI over length periods. Below 2
// closes there are no deltas to smooth, so it returns 50 (neutral); with
// fewer than length+1 closes it still computes a genuine partial Wilder
// value over whatever deltas exist, dividing by the fixed period length.
func CalculateRSI(closes []float64, length int) float64 {
	if len(closes) < 2 {
		return 50.0
	}
	if len(closes) < length+1 {
		return partialRSI(closes, length)
	}
	rsi := talib.Rsi(closes, length)
	if len(rsi) == 0 || isNaN(rsi[len(rsi)-1]) {
		return 50.0
	}
	return rsi[len(rsi)-1]
}

// partialRSI computes Wilder RSI over whatever deltas are available
// (fewer than length), still dividing by the fixed period length rather
// than the count of deltas, mirroring the original's partial-window math.
func partialRSI(closes []float64, length int) float64 {
	var gainSum, lossSum float64
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / float64(length)
	avgLoss := lossSum / float64(length)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// CalculateCMO returns the latest Chande Momentum Oscillator over length
// periods.
func CalculateCMO(closes []float64, length int) float64 {
	if len(closes) < length+1 {
		return 0.0
	}
	cmo := talib.Cmo(closes, length)
	if len(cmo) == 0 || isNaN(cmo[len(cmo)-1]) {
		return 0.0
	}
	return cmo[len(cmo)-1]
}

// CalculateATR returns the latest Average True Range over length periods.
// With fewer than length+1 bars, talib.Atr can't smooth a full window, so
// it degrades to the mean of whatever true ranges are available (capped
// to the most recent length of them), rather than reporting zero.
func CalculateATR(highs, lows, closes []float64, length int) float64 {
	if len(closes) < 2 {
		return 0.0
	}
	if len(closes) < length+1 {
		return meanOfAvailableTrueRanges(highs, lows, closes, length)
	}
	atr := talib.Atr(highs, lows, closes, length)
	if len(atr) == 0 || isNaN(atr[len(atr)-1]) {
		return 0.0
	}
	return atr[len(atr)-1]
}

// meanOfAvailableTrueRanges computes the plain True Range series and
// averages the most recent min(length, len(trs)) of them.
func meanOfAvailableTrueRanges(highs, lows, closes []float64, length int) float64 {
	n := len(closes)
	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr := hl
		if hc > tr {
			tr = hc
		}
		if lc > tr {
			tr = lc
		}
		trs = append(trs, tr)
	}
	if len(trs) == 0 {
		return 0.0
	}
	if len(trs) > length {
		trs = trs[len(trs)-length:]
	}
	var sum float64
	for _, v := range trs {
		sum += v
	}
	return sum / float64(len(trs))
}

// CalculateOBV returns the latest On-Balance Volume accumulation.
func CalculateOBV(closes, volumes []float64) float64 {
	obv := talib.Obv(closes, volumes)
	if len(obv) == 0 {
		return 0.0
	}
	return obv[len(obv)-1]
}

// CalculateADL returns the latest Chaikin Accumulation/Distribution Line
// value.
func CalculateADL(highs, lows, closes, volumes []float64) float64 {
	adl := talib.Ad(highs, lows, closes, volumes)
	if len(adl) == 0 {
		return 0.0
	}
	return adl[len(adl)-1]
}

// MACDResult holds the MACD line, signal line, and histogram at the latest
// bar.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD returns the latest MACD(12,26,9) line/signal/histogram.
func CalculateMACD(closes []float64) MACDResult {
	if len(closes) == 0 {
		return MACDResult{}
	}
	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	n := len(macd)
	if n == 0 {
		return MACDResult{}
	}
	return MACDResult{MACD: macd[n-1], Signal: signal[n-1], Histogram: hist[n-1]}
}
