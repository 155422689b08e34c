package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i] - Price[i-1]) / Price[i-1]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// CalculateVolatility calculates annualized volatility from the daily
// returns of the trailing window of closes.
//
// Formula: StdDev of daily returns over the window x sqrt(252)
//
// Returns nil if the window cannot be filled (needs window+1 closes).
func CalculateVolatility(closes []float64, window int) *float64 {
	if window < 2 || len(closes) < window+1 {
		return nil
	}

	recent := closes[len(closes)-window-1:]
	returns := CalculateReturns(recent)
	if len(returns) < 2 {
		return nil
	}

	result := stat.StdDev(returns, nil) * math.Sqrt(252)
	if isNaN(result) {
		return nil
	}
	return &result
}
