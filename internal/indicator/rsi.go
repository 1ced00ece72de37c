package indicator

import "cryptopaper/internal/model"

// RSI computes the Relative Strength Index from the most recent period price
// changes. The average gain and average loss are recomputed fresh from that
// single window on every call; no smoothed running average is carried between
// calls. Requires period+1 points (period deltas).
//
// Edge case: a window with no losses yields RSI=100, not a division error.
func RSI(s model.PriceSeries, period int) (float64, bool) {
	if period <= 0 || len(s) < period+1 {
		return 0, false
	}

	gains := 0.0
	losses := 0.0
	for i := len(s) - period; i < len(s); i++ {
		change := s[i].Price - s[i-1].Price
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}
