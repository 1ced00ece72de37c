package indicator

import "cryptopaper/internal/model"

// BandPosition classifies where the current price sits inside the bands.
type BandPosition string

const (
	BandUpper  BandPosition = "UPPER"
	BandMiddle BandPosition = "MIDDLE"
	BandLower  BandPosition = "LOWER"
)

// BollingerResult holds the band values for the trailing window.
//
// PercentB is 0 at the lower band and 1 at the upper band, and deliberately
// unclamped: a price outside the bands yields a value outside [0,1], which
// downstream threshold comparisons still handle sensibly.
type BollingerResult struct {
	Middle           float64      `json:"middle"`
	Upper            float64      `json:"upper"`
	Lower            float64      `json:"lower"`
	Bandwidth        float64      `json:"bandwidth"`
	BandwidthPercent float64      `json:"bandwidth_percent"`
	PercentB         float64      `json:"percent_b"`
	Position         BandPosition `json:"position"`
}

// Bollinger computes Bollinger Bands over the trailing period:
// middle = SMA(period), upper/lower = middle ± mult*stddev (population).
// Position is UPPER above percentB 0.8, LOWER below 0.2, else MIDDLE.
func Bollinger(s model.PriceSeries, period int, mult float64) *BollingerResult {
	if period <= 0 || len(s) < period {
		return nil
	}

	middle, _ := SMA(s, period)
	sd := stddev(s, period)
	upper := middle + sd*mult
	lower := middle - sd*mult

	current := s.LastPrice()
	bandwidth := 0.0
	if middle != 0 {
		bandwidth = (upper - lower) / middle
	}

	// Zero-width bands (flat window) put the price exactly at the middle.
	percentB := 0.5
	if upper != lower {
		percentB = (current - lower) / (upper - lower)
	}

	position := BandMiddle
	switch {
	case percentB > 0.8:
		position = BandUpper
	case percentB < 0.2:
		position = BandLower
	}

	return &BollingerResult{
		Middle:           middle,
		Upper:            upper,
		Lower:            lower,
		Bandwidth:        bandwidth,
		BandwidthPercent: bandwidth * 100,
		PercentB:         percentB,
		Position:         position,
	}
}
