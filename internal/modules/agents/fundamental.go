package agents

import (
	"context"
	"fmt"

	"github.com/aristath/marketintel/internal/modules/indicators"
)

// FundamentalOutput is FundamentalSpecialist's payload: valuation ratios
// derived from the indicator window rather than income-statement data; a
// full discounted-cash-flow pipeline is out of scope.
type FundamentalOutput struct {
	Ticker               string  `json:"ticker"`
	PriceToSMA20         float64 `json:"price_to_sma20"`
	PriceToSMA50         float64 `json:"price_to_sma50"`
	DistanceFromWindowLow float64 `json:"distance_from_window_low"`
	Volatility20         float64 `json:"volatility_20"`
	Notes                string  `json:"notes"`
}

// FundamentalSpecialist computes deterministic ratios from the same window
// data IndicatorEngine already maintains: price relative to its moving
// averages, distance from the window's low, and a 20-period volatility
// proxy. No DCF or bond/equity valuation model is in scope.
type FundamentalSpecialist struct {
	engine *indicators.Engine
}

// NewFundamentalSpecialist builds a FundamentalSpecialist over a shared
// engine.
func NewFundamentalSpecialist(engine *indicators.Engine) *FundamentalSpecialist {
	return &FundamentalSpecialist{engine: engine}
}

// Name implements Specialist.
func (s *FundamentalSpecialist) Name() string { return "fundamental" }

// Run implements Specialist.
func (s *FundamentalSpecialist) Run(ctx context.Context, ticker string) (any, error) {
	snap, ok := s.engine.LatestSnapshot(ticker)
	if !ok {
		return nil, fmt.Errorf("fundamental: no window state for %s", ticker)
	}

	out := FundamentalOutput{Ticker: ticker, Volatility20: snap.Std20}

	if snap.SMA20 != 0 {
		out.PriceToSMA20 = snap.Close / snap.SMA20
	}
	if snap.SMA50 != 0 {
		out.PriceToSMA50 = snap.Close / snap.SMA50
	}
	if snap.WindowMinLow != 0 {
		out.DistanceFromWindowLow = (snap.Close - snap.WindowMinLow) / snap.WindowMinLow
	}

	switch {
	case out.PriceToSMA50 > 1.1:
		out.Notes = "trading well above its 50-period average"
	case out.PriceToSMA50 < 0.9 && out.PriceToSMA50 != 0:
		out.Notes = "trading well below its 50-period average"
	default:
		out.Notes = "trading near its 50-period average"
	}
	return out, nil
}
