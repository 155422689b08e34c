package formulas

// CalculateMomentum calculates the trailing price return over a lookback
// window of trading days.
//
// Momentum = (Close[t] - Close[t-lookback]) / Close[t-lookback]
//
// A 3-month momentum uses lookback=63 (21 trading days per month).
//
// Returns nil if there are not enough closes to span the window or the
// reference price is zero.
func CalculateMomentum(closes []float64, lookback int) *float64 {
	if lookback < 1 || len(closes) < lookback+1 {
		return nil
	}

	last := closes[len(closes)-1]
	ref := closes[len(closes)-1-lookback]
	if ref == 0 {
		return nil
	}

	result := (last - ref) / ref
	return &result
}
