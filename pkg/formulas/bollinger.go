package formulas

import (
	"github.com/markcheno/go-talib"
)

// BollingerBands holds the upper/middle/lower band values at the latest bar.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// BollingerPosition is where the latest price sits within its Bollinger
// Bands, 0.0 at the lower band through 1.0 at the upper band.
type BollingerPosition struct {
	Position float64        `json:"position"`
	Bands    BollingerBands `json:"bands"`
}

// CalculateBollingerBands returns the latest Bollinger Bands computed over
// length periods at stdDevMultiplier standard deviations, or nil if there
// isn't enough data.
func CalculateBollingerBands(closes []float64, length int, stdDevMultiplier float64) *BollingerBands {
	if len(closes) < length {
		return nil
	}
	// MAType 0 = SMA middle band.
	upper, middle, lower := talib.BBands(closes, length, stdDevMultiplier, stdDevMultiplier, 0)
	if len(upper) > 0 && !isNaN(upper[len(upper)-1]) {
		return &BollingerBands{
			Upper:  upper[len(upper)-1],
			Middle: middle[len(middle)-1],
			Lower:  lower[len(lower)-1],
		}
	}
	return nil
}

// CalculateBollingerPosition locates the latest price within its Bollinger
// Bands: (price - lower) / (upper - lower), clamped to [0, 1].
func CalculateBollingerPosition(closes []float64, length int, stdDevMultiplier float64) *BollingerPosition {
	if len(closes) == 0 {
		return nil
	}
	bands := CalculateBollingerBands(closes, length, stdDevMultiplier)
	if bands == nil {
		return nil
	}
	currentPrice := closes[len(closes)-1]
	bandWidth := bands.Upper - bands.Lower
	if bandWidth == 0 {
		return &BollingerPosition{Position: 0.5, Bands: *bands}
	}
	position := (currentPrice - bands.Lower) / bandWidth
	if position < 0.0 {
		position = 0.0
	}
	if position > 1.0 {
		position = 1.0
	}
	return &BollingerPosition{Position: position, Bands: *bands}
}
