// Package signalgen implements SignalGenerator: threshold-voting trading
// signal generation over an IndicatorSnapshot, with optional ML regressor
// augmentation.
package signalgen

import (
	"fmt"
	"strings"

	"github.com/aristath/marketintel/internal/model"
)

const (
	slATRMult       = 1.0
	tpATRMult       = 1.5
	limitOrderMult  = 0.25
	mlWeight        = 3
	mlThreshold     = 0.0
	mlThresholdBump = 2.0
)

// Regressor augments the threshold vote with a numeric prediction; a
// positive value tilts the vote toward BUY, negative toward SELL.
// Implementations wrap whatever model format is loaded (gonum-backed, or
// absent: a nil Regressor disables ML augmentation entirely).
type Regressor interface {
	Predict(features [11]float64) (float64, error)
}

// Generator votes across ~18 threshold rules per snapshot and produces a
// TradeSignal, optionally blended with a Regressor's prediction.
type Generator struct {
	buyThreshold  int
	sellThreshold int
	regressor     Regressor
}

// Config configures vote thresholds and an optional regressor.
type Config struct {
	BuyThreshold  int
	SellThreshold int
	Regressor     Regressor
}

// New constructs a Generator, defaulting both the buy and sell vote
// thresholds to 5.
func New(cfg Config) *Generator {
	if cfg.BuyThreshold <= 0 {
		cfg.BuyThreshold = 5
	}
	if cfg.SellThreshold <= 0 {
		cfg.SellThreshold = 5
	}
	return &Generator{buyThreshold: cfg.BuyThreshold, sellThreshold: cfg.SellThreshold, regressor: cfg.Regressor}
}

// Generate evaluates snap against the threshold-voting rule set (and, if a
// Regressor is configured, blends its prediction in) and returns the
// resulting TradeSignal.
func (g *Generator) Generate(ticker string, snap model.IndicatorSnapshot) model.TradeSignal {
	var reason strings.Builder

	macd, macdSig, macdHist := snap.MACD[0], snap.MACD[1], snap.MACD[2]
	bbLow, bbHigh := snap.BB[0], snap.BB[1]
	klinger, klingerSig, klingerHist := snap.Klinger[0], snap.Klinger[1], snap.Klinger[2]
	keltMid, keltUp, keltLow := snap.Keltner[0], snap.Keltner[1], snap.Keltner[2]

	currentPrice := snap.Close
	currentVolume := snap.Volume

	signal := model.TradeSignal{
		Ticker: ticker, Date: snap.WindowEnd.Format("2006-01-02 15:04:05"),
		ClosePrice: snap.Close, OpenPrice: snap.Open,
		Volume: snap.Volume, HighPrice: snap.High, LowPrice: snap.Low,
		Action: model.ActionHold, CurrentPrice: currentPrice,
		RSI: snap.RSI, MACD: macd, MACDSignal: macdSig, MACDHist: macdHist,
		VWAP: snap.VWAP, BolBands: snap.BB, SMA: model.Pair{snap.SMA20, snap.SMA50},
		CRSI: snap.CRSI, Klinger: snap.Klinger, Keltner: snap.Keltner, CMO: snap.CMO,
		AbsChange: snap.DayChange[0], PctChange: snap.DayChange[1],
	}

	if currentPrice < snap.WindowMinLow || currentVolume == 0 {
		return signal
	}

	buyConditions := 0
	sellConditions := 0

	// BUY rules
	if macd > macdSig && macdHist > 0 {
		buyConditions++
		reason.WriteString("macd says BUY, ")
	}
	if snap.RSI > 25 && snap.RSI < 45 {
		buyConditions++
		reason.WriteString("rsi says BUY, ")
	}
	if snap.CRSI < 25 {
		buyConditions++
		reason.WriteString("crsi says BUY, ")
	}
	if bbLow != 0 && currentPrice <= bbLow {
		buyConditions++
		reason.WriteString("bb_low says BUY, ")
	}
	if snap.VWAP != 0 && currentPrice >= snap.VWAP*1.01 {
		buyConditions++
		reason.WriteString("vwap says BUY, ")
	}
	if keltLow != 0 && currentPrice <= keltLow {
		buyConditions++
		reason.WriteString("keltner_low says BUY, ")
	}
	if klinger > klingerSig && klingerHist > 0 {
		buyConditions++
		reason.WriteString("klinger says BUY, ")
	}
	if snap.SMA20 != 0 && snap.SMA50 != 0 && snap.SMA20 > snap.SMA50 {
		buyConditions++
		reason.WriteString("sma_trend says BUY, ")
	}
	if snap.CMO < -30 {
		buyConditions++
		reason.WriteString("cmo says BUY, ")
	}

	// SELL rules
	if macd < macdSig && macdHist < 0 {
		sellConditions++
		reason.WriteString("macd says SELL, ")
	}
	if snap.RSI > 55 && snap.RSI < 75 {
		sellConditions++
		reason.WriteString("rsi says SELL, ")
	}
	if snap.CRSI > 75 {
		sellConditions++
		reason.WriteString("crsi says SELL, ")
	}
	if currentPrice < snap.WindowMaxHigh*0.99 {
		sellConditions++
	}
	if bbHigh != 0 && currentPrice >= bbHigh {
		sellConditions++
		reason.WriteString("bb_high says SELL, ")
	}
	if snap.VWAP != 0 && currentPrice <= 0.99*snap.VWAP {
		sellConditions++
		reason.WriteString("vwap says SELL, ")
	}
	if keltUp != 0 && currentPrice >= keltUp {
		sellConditions++
		reason.WriteString("kelt_up says SELL, ")
	}
	if klinger < klingerSig && klingerHist < 0 {
		sellConditions++
		reason.WriteString("klinger says SELL, ")
	}
	if snap.SMA20 != 0 && snap.SMA50 != 0 && snap.SMA20 < snap.SMA50 {
		sellConditions++
		reason.WriteString("sma says SELL, ")
	}
	if snap.CMO > 30 {
		sellConditions++
		reason.WriteString("cmo says SELL, ")
	}

	buyThreshold := float64(g.buyThreshold)
	sellThreshold := float64(g.sellThreshold)

	if g.regressor != nil {
		if pred, err := g.regressor.Predict(buildFeatures(snap, keltMid, keltUp, keltLow)); err == nil {
			switch {
			case pred > mlThreshold:
				buyConditions += mlWeight
				reason.WriteString(fmt.Sprintf("model says buy with confidence (%.4f), ", pred))
			case pred < -mlThreshold:
				sellConditions += mlWeight
				reason.WriteString(fmt.Sprintf("model says sell with confidence (%.4f), ", pred))
			}
			buyThreshold += mlThresholdBump
			sellThreshold += mlThresholdBump
		}
	}

	if float64(buyConditions) >= buyThreshold {
		signal.Action = model.ActionBuy
		signal.StopLoss = currentPrice - slATRMult*snap.ATR14
		signal.TakeProfit = currentPrice + tpATRMult*snap.ATR14
		signal.SignalStrength = buyConditions
		signal.LimitOrder = currentPrice - limitOrderMult*snap.ATR14
	}

	if float64(sellConditions) >= sellThreshold && signal.Action != model.ActionBuy {
		signal.Action = model.ActionSell
		signal.StopLoss = 0
		signal.TakeProfit = 0
		signal.SignalStrength = sellConditions
		signal.LimitOrder = currentPrice - limitOrderMult*snap.ATR14
	}

	signal.Reason = reason.String()
	return signal
}

// buildFeatures constructs the 11-feature vector the regressor consumes:
// RSI, CMO, CRSI, MACD% of price, ATR% of price, SMA20/SMA50 distance,
// VWAP distance, Bollinger position, Keltner position, and relative volume.
func buildFeatures(snap model.IndicatorSnapshot, keltMid, keltUp, keltLow float64) [11]float64 {
	price := snap.Close
	pct := func(v float64) float64 {
		if price == 0 {
			return 0
		}
		return v / price * 100
	}
	distPct := func(v float64) float64 {
		if v == 0 {
			return 0
		}
		return (price - v) / v * 100
	}

	bbRange := snap.BB[1] - snap.BB[0]
	bbPos := 0.5
	if bbRange != 0 {
		bbPos = (price - snap.BB[0]) / bbRange
	}

	keltRange := keltUp - keltLow
	keltPos := 0.5
	if keltRange != 0 {
		keltPos = (price - keltLow) / keltRange
	}

	volRel := 1.0
	if snap.WindowAvgVolume != 0 {
		volRel = snap.Volume / snap.WindowAvgVolume
	}

	return [11]float64{
		snap.RSI, snap.CMO, snap.CRSI, pct(snap.MACD[0]), pct(snap.ATR14),
		distPct(snap.SMA20), distPct(snap.SMA50), distPct(snap.VWAP),
		bbPos, keltPos, volRel,
	}
}
