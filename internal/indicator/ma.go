package indicator

import "cryptopaper/internal/model"

// SMA computes the Simple Moving Average: the arithmetic mean of the last
// period prices. Returns ok=false when the series is shorter than period.
func SMA(s model.PriceSeries, period int) (float64, bool) {
	if period <= 0 || len(s) < period {
		return 0, false
	}
	return sum(s.Tail(period)) / float64(period), true
}

// EMA computes the Exponential Moving Average. The seed is the SMA of the
// first period points; the recurrence
//
//	ema = (price - ema_prev) * k + ema_prev,  k = 2/(period+1)
//
// is then applied left-to-right over the remaining points.
// Returns ok=false when the series is shorter than period.
func EMA(s model.PriceSeries, period int) (float64, bool) {
	if period <= 0 || len(s) < period {
		return 0, false
	}

	k := 2.0 / float64(period+1)
	ema := sum(s[:period]) / float64(period)
	for i := period; i < len(s); i++ {
		ema = (s[i].Price-ema)*k + ema
	}
	return ema, true
}
