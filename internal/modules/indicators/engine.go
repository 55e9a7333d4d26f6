package indicators

import (
	"sync"
	"time"

	"github.com/aristath/marketintel/internal/model"
)

// kinds lists every registered accumulator kind, in the order fields are
// populated on model.IndicatorSnapshot.
var kinds = []string{
	"macd", "rsi", "adl", "sma20", "sma50", "std20", "bollinger",
	"vwap", "atr14", "cmo", "crsi", "klinger", "keltner", "obv", "daychange",
}

func newAccumulator(kind string, row Row) Accumulator {
	switch kind {
	case "macd":
		return newMACDAccumulator(row)
	case "rsi":
		return newRSIAccumulator(row)
	case "adl":
		return newADLAccumulator(row)
	case "sma20":
		return newSMAAccumulator(20)(row)
	case "sma50":
		return newSMAAccumulator(50)(row)
	case "std20":
		return newStd20Accumulator(row)
	case "bollinger":
		return newBollingerAccumulator(row)
	case "vwap":
		return newVWAPAccumulator(row)
	case "atr14":
		return newATRAccumulator(row)
	case "cmo":
		return newCMOAccumulator(row)
	case "crsi":
		return newCRSIAccumulator(row)
	case "klinger":
		return newKlingerAccumulator(row)
	case "keltner":
		return newKeltnerAccumulator(row)
	case "obv":
		return newOBVAccumulator(row)
	case "daychange":
		return newDayChangeAccumulator(row)
	}
	return nil
}

// Window folds every registered accumulator kind over the same rows,
// mirroring how PipelineRuntime's reducer API registers one accumulator
// per indicator on the same sliding window.
type Window struct {
	mu    sync.Mutex
	accs  map[string]Accumulator
	rows  []Row
}

// NewWindow constructs an empty per-ticker window.
func NewWindow() *Window {
	return &Window{accs: make(map[string]Accumulator)}
}

// Merge folds row into the window: every accumulator kind absorbs it.
func (w *Window) Merge(row Row) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, row)
	for _, kind := range kinds {
		next := newAccumulator(kind, row)
		if existing, ok := w.accs[kind]; ok {
			existing.Merge(next)
		} else {
			w.accs[kind] = next
		}
	}
}

// Retract removes a row that has slid out of the window, per accumulator.
func (w *Window) Retract(row Row) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range w.rows {
		if r == row {
			w.rows = append(w.rows[:i], w.rows[i+1:]...)
			break
		}
	}
	for _, kind := range kinds {
		if existing, ok := w.accs[kind]; ok {
			existing.Retract(newAccumulator(kind, row))
		}
	}
}

// Snapshot computes the window's emission: one value per accumulator plus
// the OHLCV of the most recent row.
func (w *Window) Snapshot(ticker string, windowEnd time.Time) model.IndicatorSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := model.IndicatorSnapshot{Ticker: ticker, WindowEnd: windowEnd}
	if len(w.rows) == 0 {
		return snap
	}
	latest := sortedByTime(w.rows)[len(w.rows)-1]
	snap.Close = latest.Close
	snap.Open = latest.Open
	snap.High = latest.High
	snap.Low = latest.Low
	snap.Volume = latest.Volume

	if v, ok := w.accs["macd"]; ok {
		snap.MACD = v.Compute().(model.Triplet)
	}
	if v, ok := w.accs["rsi"]; ok {
		snap.RSI = v.Compute().(float64)
	}
	if v, ok := w.accs["adl"]; ok {
		snap.ADL = v.Compute().(float64)
	}
	if v, ok := w.accs["sma20"]; ok {
		snap.SMA20 = v.Compute().(float64)
	}
	if v, ok := w.accs["sma50"]; ok {
		snap.SMA50 = v.Compute().(float64)
	}
	if v, ok := w.accs["std20"]; ok {
		snap.Std20 = v.Compute().(float64)
	}
	if v, ok := w.accs["bollinger"]; ok {
		snap.BB = v.Compute().(model.Pair)
	}
	if v, ok := w.accs["vwap"]; ok {
		snap.VWAP = v.Compute().(float64)
	}
	if v, ok := w.accs["atr14"]; ok {
		snap.ATR14 = v.Compute().(float64)
	}
	if v, ok := w.accs["cmo"]; ok {
		snap.CMO = v.Compute().(float64)
	}
	if v, ok := w.accs["crsi"]; ok {
		snap.CRSI = v.Compute().(float64)
	}
	if v, ok := w.accs["klinger"]; ok {
		snap.Klinger = v.Compute().(model.Triplet)
	}
	if v, ok := w.accs["keltner"]; ok {
		snap.Keltner = v.Compute().(model.Triplet)
	}
	if v, ok := w.accs["daychange"]; ok {
		snap.DayChange = v.Compute().(model.Pair)
	}

	var minLow = latest.Low
	var maxHigh = latest.High
	var volSum float64
	for _, r := range w.rows {
		if r.Low < minLow {
			minLow = r.Low
		}
		if r.High > maxHigh {
			maxHigh = r.High
		}
		volSum += r.Volume
	}
	snap.WindowMinLow = minLow
	snap.WindowMaxHigh = maxHigh
	snap.WindowAvgVolume = volSum / float64(len(w.rows))
	return snap
}

// Engine owns one Window per ticker and applies the window duration (15h by
// default): on each Observe, rows older than the duration before the new
// candle are retracted. The hop is stored but not used; windows do not
// advance on a fixed hop schedule.
type Engine struct {
	mu       sync.Mutex
	windows  map[string]*Window
	duration time.Duration
	hop      time.Duration
}

// Config configures the sliding window's duration and hop.
type Config struct {
	WindowDuration time.Duration
	WindowHop      time.Duration
}

// New constructs an Engine, defaulting to the spec's 15h duration / 5m hop.
func New(cfg Config) *Engine {
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = 15 * time.Hour
	}
	if cfg.WindowHop <= 0 {
		cfg.WindowHop = 5 * time.Minute
	}
	return &Engine{windows: make(map[string]*Window), duration: cfg.WindowDuration, hop: cfg.WindowHop}
}

// Observe merges a new candle into its ticker's window and retracts any
// rows that have aged out, returning the window's current emission stamped
// with the candle's timestamp. Every call yields a snapshot, so a window
// emits once per observed candle; emissions are not deduplicated per
// window end.
func (e *Engine) Observe(candle model.Candle) model.IndicatorSnapshot {
	e.mu.Lock()
	win, ok := e.windows[candle.Ticker]
	if !ok {
		win = NewWindow()
		e.windows[candle.Ticker] = win
	}
	e.mu.Unlock()

	win.Merge(candle)

	cutoff := candle.Timestamp.Add(-e.duration)
	win.mu.Lock()
	var expired []Row
	for _, r := range win.rows {
		if r.Timestamp.Before(cutoff) {
			expired = append(expired, r)
		}
	}
	win.mu.Unlock()
	for _, r := range expired {
		win.Retract(r)
	}

	return win.Snapshot(candle.Ticker, candle.Timestamp)
}

// Tickers returns every ticker the engine currently tracks a window for.
func (e *Engine) Tickers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.windows))
	for t := range e.windows {
		out = append(out, t)
	}
	return out
}

// Rows returns a copy of ticker's current window rows, for PipelineRuntime's
// periodic snapshot persistence. Accumulator state itself isn't serialized;
// Restore rebuilds it by replaying rows through Observe.
func (e *Engine) Rows(ticker string) []Row {
	e.mu.Lock()
	win, ok := e.windows[ticker]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	win.mu.Lock()
	defer win.mu.Unlock()
	out := make([]Row, len(win.rows))
	copy(out, win.rows)
	return out
}

// Restore rebuilds window state by replaying a prior snapshot's rows, in
// timestamp order, through Observe. Used on startup recovery.
func (e *Engine) Restore(rows map[string][]Row) {
	for _, candles := range rows {
		for _, c := range sortedByTime(candles) {
			e.Observe(c)
		}
	}
}

// LatestSnapshot recomputes ticker's current window emission without
// merging a new candle, for read-only consumers (the technical specialist
// agent) that need the engine's current state between observations.
func (e *Engine) LatestSnapshot(ticker string) (model.IndicatorSnapshot, bool) {
	e.mu.Lock()
	win, ok := e.windows[ticker]
	e.mu.Unlock()
	if !ok {
		return model.IndicatorSnapshot{}, false
	}

	win.mu.Lock()
	if len(win.rows) == 0 {
		win.mu.Unlock()
		return model.IndicatorSnapshot{}, false
	}
	windowEnd := win.rows[len(win.rows)-1].Timestamp
	win.mu.Unlock()

	return win.Snapshot(ticker, windowEnd), true
}
