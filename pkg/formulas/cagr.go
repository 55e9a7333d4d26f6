package formulas

import "math"

// MonthlyPrice is a single monthly price observation.
type MonthlyPrice struct {
	YearMonth   string  `json:"year_month"`
	AvgAdjClose float64 `json:"avg_adj_close"`
}

// CalculateCAGR computes the Compound Annual Growth Rate from monthly
// prices: (ending/beginning)^(1/years) - 1.
func CalculateCAGR(prices []MonthlyPrice, months int) *float64 {
	const minMonthsForCAGR = 12
	if len(prices) < minMonthsForCAGR {
		return nil
	}

	useMonths := months
	if useMonths > len(prices) {
		useMonths = len(prices)
	}
	priceSlice := prices[len(prices)-useMonths:]

	startPrice := priceSlice[0].AvgAdjClose
	endPrice := priceSlice[len(priceSlice)-1].AvgAdjClose
	if startPrice <= 0 || endPrice <= 0 {
		return nil
	}

	years := float64(useMonths) / 12.0
	if years < 0.25 {
		result := (endPrice / startPrice) - 1
		return &result
	}

	cagr := math.Pow(endPrice/startPrice, 1/years) - 1
	return &cagr
}

// CalculateCAGRFromPrices is a convenience wrapper taking raw prices instead
// of MonthlyPrice structs.
func CalculateCAGRFromPrices(prices []float64, months int) *float64 {
	if len(prices) == 0 {
		return nil
	}
	monthlyPrices := make([]MonthlyPrice, len(prices))
	for i, price := range prices {
		monthlyPrices[i] = MonthlyPrice{AvgAdjClose: price}
	}
	return CalculateCAGR(monthlyPrices, months)
}
