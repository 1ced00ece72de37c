// Package model defines the core data types shared across the engine:
// price samples, portfolio snapshots, trade decisions, and daily trading state.
package model

import "time"

// PricePoint is a single sampled price for one asset.
// TS is epoch milliseconds. Immutable once recorded.
type PricePoint struct {
	TS    int64   `json:"ts"`
	Price float64 `json:"price"`
}

// PriceSeries is an ordered sequence of price samples for one asset,
// ascending by timestamp. Duplicate timestamps are allowed and treated as
// distinct samples. Callers own ordering; the indicator functions only read.
type PriceSeries []PricePoint

// Len returns the number of samples.
func (s PriceSeries) Len() int { return len(s) }

// Last returns the most recent sample. Zero value if the series is empty.
func (s PriceSeries) Last() PricePoint {
	if len(s) == 0 {
		return PricePoint{}
	}
	return s[len(s)-1]
}

// LastPrice returns the most recent price, or 0 for an empty series.
func (s PriceSeries) LastPrice() float64 { return s.Last().Price }

// DropLast returns the series without its trailing n samples.
// Used by crossover detection to recompute indicators "one step back".
func (s PriceSeries) DropLast(n int) PriceSeries {
	if n >= len(s) {
		return nil
	}
	return s[:len(s)-n]
}

// Tail returns the most recent n samples (the whole series if shorter).
func (s PriceSeries) Tail(n int) PriceSeries {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// At wraps a timestamp for building series in tests and recorders.
func At(t time.Time, price float64) PricePoint {
	return PricePoint{TS: t.UnixMilli(), Price: price}
}
