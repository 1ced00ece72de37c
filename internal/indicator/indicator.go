// Package indicator provides technical indicator calculations over price
// series data.
//
// All functions are pure: they take an ascending PriceSeries plus period
// parameters and return a value, or a tagged "not ok" / nil result when the
// series is shorter than the required window. They never mutate the series.
package indicator

import (
	"math"

	"cryptopaper/internal/model"
)

// Direction classifies a trend.
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// Side is the direction of a crossover signal.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Crossover reports a fast/slow line cross with a normalized strength.
type Crossover struct {
	Signal   Side    `json:"signal"`
	Strength float64 `json:"strength"`
}

// Trend is the direction and strength of the SMA slope.
type Trend struct {
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"` // [0,1] for directional, unbounded-small for neutral
}

// sum adds the prices of all points in the series.
func sum(s model.PriceSeries) float64 {
	total := 0.0
	for _, p := range s {
		total += p.Price
	}
	return total
}

// stddev computes the population standard deviation of the last period prices
// around their mean. Caller guarantees len(s) >= period.
func stddev(s model.PriceSeries, period int) float64 {
	window := s.Tail(period)
	mean := sum(window) / float64(period)
	variance := 0.0
	for _, p := range window {
		d := p.Price - mean
		variance += d * d
	}
	variance /= float64(period)
	return math.Sqrt(variance)
}
