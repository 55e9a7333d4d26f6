package portfolio

import (
	"fmt"

	"github.com/aristath/marketintel/internal/apperr"
	"github.com/aristath/marketintel/internal/model"
)

// NewHoldingDefaults supplies sector/beta metadata when a BUY transaction
// opens a position in a ticker the portfolio does not yet hold. Zero values
// fall back to "Unknown"/1.0.
type NewHoldingDefaults struct {
	Sector string
	Beta   float64
}

// applyTransaction runs the read-modify-write holdings math against an
// in-memory copy of portfolio and returns the updated copy.
// It never mutates portfolio.Holdings in place, so a failed validation
// leaves the caller's copy untouched.
func applyTransaction(portfolio model.Portfolio, txn model.Transaction, defaults NewHoldingDefaults) (model.Portfolio, error) {
	if txn.Action != model.TxnBuy && txn.Action != model.TxnSell {
		return model.Portfolio{}, fmt.Errorf("portfolio: unsupported transaction action %q", txn.Action)
	}

	holdings := make([]model.Holding, len(portfolio.Holdings))
	copy(holdings, portfolio.Holdings)

	idx := -1
	for i, h := range holdings {
		if h.Ticker == txn.Ticker {
			idx = i
			break
		}
	}

	switch txn.Action {
	case model.TxnSell:
		if idx == -1 {
			return model.Portfolio{}, fmt.Errorf("portfolio: sell %s: not held: %w", txn.Ticker, apperr.ErrInsufficientHoldings)
		}
		if holdings[idx].Quantity < txn.Quantity {
			return model.Portfolio{}, fmt.Errorf("portfolio: sell %s: has %.4f, requested %.4f: %w",
				txn.Ticker, holdings[idx].Quantity, txn.Quantity, apperr.ErrInsufficientHoldings)
		}

	case model.TxnBuy:
		costWithFees := txn.Quantity*txn.Price + txn.Fees
		if portfolio.Cash < costWithFees {
			return model.Portfolio{}, fmt.Errorf("portfolio: buy %s: has $%.2f cash, needs $%.2f: %w",
				txn.Ticker, portfolio.Cash, costWithFees, apperr.ErrCashConstraint)
		}
		if idx == -1 {
			sector := defaults.Sector
			if sector == "" {
				sector = "Unknown"
			}
			beta := defaults.Beta
			if beta == 0 {
				beta = 1.0
			}
			holdings = append(holdings, model.Holding{
				Ticker:       txn.Ticker,
				CurrentPrice: txn.Price,
				Sector:       sector,
				Beta:         beta,
			})
			idx = len(holdings) - 1
		}
	}

	cash := portfolio.Cash
	removed := false

	switch txn.Action {
	case model.TxnBuy:
		h := holdings[idx]
		newQty := h.Quantity + txn.Quantity
		newCostBasis := h.Quantity*h.AvgCost + txn.Quantity*txn.Price
		if newQty > 0 {
			h.AvgCost = newCostBasis / newQty
		}
		h.Quantity = newQty
		cash -= txn.Quantity*txn.Price + txn.Fees
		holdings[idx] = h

	case model.TxnSell:
		h := holdings[idx]
		h.Quantity -= txn.Quantity
		cash += txn.Quantity*txn.Price - txn.Fees
		if h.Quantity == 0 {
			holdings = append(holdings[:idx], holdings[idx+1:]...)
			removed = true
		} else {
			holdings[idx] = h
		}
	}

	if !removed {
		h := holdings[idx]
		h.CurrentPrice = txn.Price
		h.Recompute()
		holdings[idx] = h
	}

	holdingsValue := 0.0
	for _, h := range holdings {
		holdingsValue += h.MarketValue
	}
	totalValue := cash + holdingsValue

	sectorExposure := make(map[string]float64)
	for i := range holdings {
		if totalValue > 0 {
			holdings[i].Weight = holdings[i].MarketValue / totalValue
		} else {
			holdings[i].Weight = 0
		}
		if holdings[i].Sector != "" {
			sectorExposure[holdings[i].Sector] += holdings[i].MarketValue
		}
	}

	normalizedSectors := make(map[string]float64, len(sectorExposure))
	if totalValue > 0 {
		for sector, value := range sectorExposure {
			normalizedSectors[sector] = value / totalValue
		}
	}

	portfolio.Cash = cash
	portfolio.Holdings = holdings
	portfolio.TotalValue = totalValue
	portfolio.SectorExposures = normalizedSectors
	return portfolio, nil
}
