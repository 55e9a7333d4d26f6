package indicators

import (
	"math"
	"sort"

	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/pkg/formulas"
)

func removeRow(rows []Row, target Row) []Row {
	for i, r := range rows {
		if r == target {
			return append(rows[:i], rows[i+1:]...)
		}
	}
	return rows
}

func sortedByTime(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func closes(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Close
	}
	return out
}

func highs(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.High
	}
	return out
}

func lows(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Low
	}
	return out
}

func volumes(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Volume
	}
	return out
}

// wilderRSI is kept as a from-scratch Wilder smoothing implementation for
// CRSI's composite sub-components (RSI over a streak series isn't a price
// series go-talib's Rsi can be handed directly, since streaks can be
// negative run-lengths rather than prices).
func wilderRSI(prices []float64, period int) float64 {
	if len(prices) < 2 {
		return 50.0
	}
	deltas := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		deltas[i-1] = prices[i] - prices[i-1]
	}
	n := period
	if n > len(deltas) {
		n = len(deltas)
	}
	var gainSum, lossSum float64
	for _, d := range deltas[:n] {
		if d > 0 {
			gainSum += d
		} else {
			lossSum += -d
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	for i := n; i < len(deltas); i++ {
		d := deltas[i]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// ---- MACD ----

type macdAccumulator struct{ rows []Row }

func newMACDAccumulator(row Row) Accumulator  { return &macdAccumulator{rows: []Row{row}} }
func (a *macdAccumulator) Merge(o Accumulator)   { a.rows = append(a.rows, o.(*macdAccumulator).rows...) }
func (a *macdAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*macdAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *macdAccumulator) Compute() any {
	prices := closes(sortedByTime(a.rows))
	if len(prices) == 0 {
		return model.Triplet{}
	}
	r := formulas.CalculateMACD(prices)
	return model.Triplet{r.MACD, r.Signal, r.Histogram}
}

// ---- RSI (Wilder, 14) ----

type rsiAccumulator struct{ rows []Row }

func newRSIAccumulator(row Row) Accumulator    { return &rsiAccumulator{rows: []Row{row}} }
func (a *rsiAccumulator) Merge(o Accumulator)    { a.rows = append(a.rows, o.(*rsiAccumulator).rows...) }
func (a *rsiAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*rsiAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *rsiAccumulator) Compute() any {
	return formulas.CalculateRSI(closes(sortedByTime(a.rows)), 14)
}

// ---- SMA (generic period) ----

type smaAccumulator struct {
	rows   []Row
	period int
}

func newSMAAccumulator(period int) FromRowFunc {
	return func(row Row) Accumulator { return &smaAccumulator{rows: []Row{row}, period: period} }
}
func (a *smaAccumulator) Merge(o Accumulator)    { a.rows = append(a.rows, o.(*smaAccumulator).rows...) }
func (a *smaAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*smaAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *smaAccumulator) Compute() any {
	sma := formulas.CalculateSMA(closes(sortedByTime(a.rows)), a.period)
	if sma == nil {
		return 0.0
	}
	return *sma
}

// ---- Std20 ----

type std20Accumulator struct{ rows []Row }

func newStd20Accumulator(row Row) Accumulator { return &std20Accumulator{rows: []Row{row}} }
func (a *std20Accumulator) Merge(o Accumulator) {
	a.rows = append(a.rows, o.(*std20Accumulator).rows...)
}
func (a *std20Accumulator) Retract(o Accumulator) {
	for _, r := range o.(*std20Accumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *std20Accumulator) Compute() any {
	tail := closes(sortedByTime(a.rows))
	if len(tail) < 20 {
		return 0.0
	}
	tail = tail[len(tail)-20:]
	return formulas.StdDev(tail)
}

// ---- Bollinger(20, 2) ----

type bollingerAccumulator struct{ rows []Row }

func newBollingerAccumulator(row Row) Accumulator { return &bollingerAccumulator{rows: []Row{row}} }
func (a *bollingerAccumulator) Merge(o Accumulator) {
	a.rows = append(a.rows, o.(*bollingerAccumulator).rows...)
}
func (a *bollingerAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*bollingerAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *bollingerAccumulator) Compute() any {
	bands := formulas.CalculateBollingerBands(closes(sortedByTime(a.rows)), 20, 2)
	if bands == nil {
		return model.Pair{}
	}
	return model.Pair{bands.Lower, bands.Upper}
}

// ---- VWAP ----

type vwapAccumulator struct{ rows []Row }

func newVWAPAccumulator(row Row) Accumulator   { return &vwapAccumulator{rows: []Row{row}} }
func (a *vwapAccumulator) Merge(o Accumulator)   { a.rows = append(a.rows, o.(*vwapAccumulator).rows...) }
func (a *vwapAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*vwapAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *vwapAccumulator) Compute() any {
	var pv, vSum float64
	for _, r := range a.rows {
		pv += ((r.High + r.Low + r.Close) / 3) * r.Volume
		vSum += r.Volume
	}
	if vSum == 0 {
		return 0.0
	}
	return pv / vSum
}

// ---- ATR(14) ----

type atrAccumulator struct{ rows []Row }

func newATRAccumulator(row Row) Accumulator   { return &atrAccumulator{rows: []Row{row}} }
func (a *atrAccumulator) Merge(o Accumulator)   { a.rows = append(a.rows, o.(*atrAccumulator).rows...) }
func (a *atrAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*atrAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *atrAccumulator) Compute() any {
	sorted := sortedByTime(a.rows)
	return formulas.CalculateATR(highs(sorted), lows(sorted), closes(sorted), 14)
}

// ---- OBV ----

type obvAccumulator struct{ rows []Row }

func newOBVAccumulator(row Row) Accumulator   { return &obvAccumulator{rows: []Row{row}} }
func (a *obvAccumulator) Merge(o Accumulator)   { a.rows = append(a.rows, o.(*obvAccumulator).rows...) }
func (a *obvAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*obvAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *obvAccumulator) Compute() any {
	sorted := sortedByTime(a.rows)
	return formulas.CalculateOBV(closes(sorted), volumes(sorted))
}

// ---- ADL ----

type adlAccumulator struct{ rows []Row }

func newADLAccumulator(row Row) Accumulator   { return &adlAccumulator{rows: []Row{row}} }
func (a *adlAccumulator) Merge(o Accumulator)   { a.rows = append(a.rows, o.(*adlAccumulator).rows...) }
func (a *adlAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*adlAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *adlAccumulator) Compute() any {
	sorted := sortedByTime(a.rows)
	return formulas.CalculateADL(highs(sorted), lows(sorted), closes(sorted), volumes(sorted))
}

// ---- CMO(14) ----

type cmoAccumulator struct{ rows []Row }

func newCMOAccumulator(row Row) Accumulator   { return &cmoAccumulator{rows: []Row{row}} }
func (a *cmoAccumulator) Merge(o Accumulator)   { a.rows = append(a.rows, o.(*cmoAccumulator).rows...) }
func (a *cmoAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*cmoAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *cmoAccumulator) Compute() any {
	return formulas.CalculateCMO(closes(sortedByTime(a.rows)), 14)
}

// ---- CRSI (composite) ----

type crsiAccumulator struct{ rows []Row }

func newCRSIAccumulator(row Row) Accumulator { return &crsiAccumulator{rows: []Row{row}} }
func (a *crsiAccumulator) Merge(o Accumulator) {
	a.rows = append(a.rows, o.(*crsiAccumulator).rows...)
}
func (a *crsiAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*crsiAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *crsiAccumulator) Compute() any {
	closesList := closes(sortedByTime(a.rows))
	n := len(closesList)
	if n < 3 {
		return 50.0
	}
	rsi3 := wilderRSI(closesList, 3)

	streaks := make([]float64, n)
	for i := 1; i < n; i++ {
		switch {
		case closesList[i] > closesList[i-1]:
			streaks[i] = math.Max(1, streaks[i-1]+1)
		case closesList[i] < closesList[i-1]:
			streaks[i] = math.Min(-1, streaks[i-1]-1)
		}
	}
	rsiStreak := wilderRSI(streaks, 2)

	roc := 0.0
	if closesList[n-2] != 0 {
		roc = (closesList[n-1] - closesList[n-2]) / closesList[n-2] * 100
	}

	start := n - 100
	if start < 1 {
		start = 1
	}
	var window []float64
	for i := start; i < n; i++ {
		if closesList[i-1] != 0 {
			window = append(window, (closesList[i]-closesList[i-1])/closesList[i-1]*100)
		}
	}
	rank := 50.0
	if len(window) > 0 {
		var below int
		for _, x := range window {
			if x < roc {
				below++
			}
		}
		rank = float64(below) / float64(len(window)) * 100
	}
	return (rsi3 + rsiStreak + rank) / 3
}

// ---- Klinger Volume Oscillator ----

type klingerAccumulator struct{ rows []Row }

func newKlingerAccumulator(row Row) Accumulator {
	return &klingerAccumulator{rows: []Row{row}}
}
func (a *klingerAccumulator) Merge(o Accumulator) {
	a.rows = append(a.rows, o.(*klingerAccumulator).rows...)
}
func (a *klingerAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*klingerAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *klingerAccumulator) Compute() any {
	sorted := sortedByTime(a.rows)
	if len(sorted) < 3 {
		return model.Triplet{}
	}
	vf := make([]float64, 0, len(sorted))
	var prevSum float64
	havePrev := false
	for _, r := range sorted {
		sum := r.High + r.Low + r.Close
		if havePrev {
			dm := sum - prevSum
			trend := 1.0
			if dm < 0 {
				trend = -1.0
			}
			vf = append(vf, trend*r.Volume)
		}
		prevSum = sum
		havePrev = true
	}
	if len(vf) == 0 {
		return model.Triplet{}
	}
	e34 := formulas.EMASeries(vf, 34)
	e55 := formulas.EMASeries(vf, 55)
	minLen := len(e34)
	if len(e55) < minLen {
		minLen = len(e55)
	}
	ko := make([]float64, minLen)
	for i := 0; i < minLen; i++ {
		ko[i] = e34[len(e34)-minLen+i] - e55[len(e55)-minLen+i]
	}
	sig := formulas.EMASeries(ko, 13)
	k := ko[len(ko)-1]
	s := 0.0
	if len(sig) > 0 {
		s = sig[len(sig)-1]
	}
	return model.Triplet{k, s, k - s}
}

// ---- Keltner Channel (EMA(21) mid, ATR(14)*2 bands) ----

type keltnerAccumulator struct{ rows []Row }

func newKeltnerAccumulator(row Row) Accumulator {
	return &keltnerAccumulator{rows: []Row{row}}
}
func (a *keltnerAccumulator) Merge(o Accumulator) {
	a.rows = append(a.rows, o.(*keltnerAccumulator).rows...)
}
func (a *keltnerAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*keltnerAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *keltnerAccumulator) Compute() any {
	sorted := sortedByTime(a.rows)
	prices := closes(sorted)
	if len(prices) == 0 {
		return model.Triplet{}
	}
	mid := formulas.EMASeries(prices, 21)[len(prices)-1]
	atr := formulas.CalculateATR(highs(sorted), lows(sorted), prices, 14)
	return model.Triplet{mid, mid + 2*atr, mid - 2*atr}
}

// ---- DayChange (abs + pct change vs start-of-day close) ----

type dayChangeAccumulator struct{ rows []Row }

func newDayChangeAccumulator(row Row) Accumulator {
	return &dayChangeAccumulator{rows: []Row{row}}
}
func (a *dayChangeAccumulator) Merge(o Accumulator) {
	a.rows = append(a.rows, o.(*dayChangeAccumulator).rows...)
}
func (a *dayChangeAccumulator) Retract(o Accumulator) {
	for _, r := range o.(*dayChangeAccumulator).rows {
		a.rows = removeRow(a.rows, r)
	}
}
func (a *dayChangeAccumulator) Compute() any {
	if len(a.rows) == 0 {
		return model.Pair{}
	}
	sorted := sortedByTime(a.rows)
	latest := sorted[len(sorted)-1]
	currentDay := latest.Timestamp.Format("2006-01-02")

	var dayStart float64
	found := false
	for _, r := range sorted {
		if r.Timestamp.Format("2006-01-02") == currentDay {
			dayStart = r.Close
			found = true
			break
		}
	}
	if !found || dayStart == 0 {
		return model.Pair{}
	}
	absChange := latest.Close - dayStart
	pctChange := absChange / dayStart * 100
	return model.Pair{round2(absChange), round2(pctChange)}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
