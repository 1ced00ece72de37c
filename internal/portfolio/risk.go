// Package portfolio provides risk parameters, daily P&L tracking, and the
// daily-loss soft stop that gates the decision engine.
package portfolio

import "fmt"

// RiskParams defines the configurable risk management thresholds.
type RiskParams struct {
	MaxPositionSizePercent float64 `json:"maxPositionSizePercent"` // max percent of portfolio in one asset
	MinTradePercent        float64 `json:"minTradePercent"`        // smallest trade worth acting on
	MaxDailyTrades         int     `json:"maxDailyTrades"`
	MaxDailyLossPercent    float64 `json:"maxDailyLossPercent"` // daily soft stop
	TakeProfitPercent      float64 `json:"takeProfitPercent"`
	StopLossPercent        float64 `json:"stopLossPercent"`

	// Composite score weights. Conventionally sum to 1.
	AllocationWeight float64 `json:"allocationWeight"`
	TechnicalWeight  float64 `json:"technicalWeight"`
}

// DefaultRiskParams returns the conservative defaults.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		MaxPositionSizePercent: 30,
		MinTradePercent:        1,
		MaxDailyTrades:         5,
		MaxDailyLossPercent:    2,
		TakeProfitPercent:      5,
		StopLossPercent:        3,
		AllocationWeight:       0.4,
		TechnicalWeight:        0.6,
	}
}

// Validate fails fast on out-of-range parameters. Malformed risk config is
// the only fatal error class; everything downstream assumes sane params.
func (p RiskParams) Validate() error {
	if p.MaxPositionSizePercent <= 0 || p.MaxPositionSizePercent > 100 {
		return fmt.Errorf("risk params: maxPositionSizePercent %v outside (0,100]", p.MaxPositionSizePercent)
	}
	if p.MinTradePercent < 0 || p.MinTradePercent > p.MaxPositionSizePercent {
		return fmt.Errorf("risk params: minTradePercent %v outside [0, maxPositionSizePercent]", p.MinTradePercent)
	}
	if p.MaxDailyTrades <= 0 {
		return fmt.Errorf("risk params: maxDailyTrades must be positive, got %d", p.MaxDailyTrades)
	}
	if p.MaxDailyLossPercent <= 0 {
		return fmt.Errorf("risk params: maxDailyLossPercent must be positive, got %v", p.MaxDailyLossPercent)
	}
	if p.AllocationWeight < 0 || p.TechnicalWeight < 0 {
		return fmt.Errorf("risk params: negative weights (alloc=%v, tech=%v)", p.AllocationWeight, p.TechnicalWeight)
	}
	if p.AllocationWeight == 0 && p.TechnicalWeight == 0 {
		return fmt.Errorf("risk params: both weights zero")
	}
	return nil
}
