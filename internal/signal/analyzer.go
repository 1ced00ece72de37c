// Package signal converts a bundle of technical indicators into a single
// normalized per-asset trading signal.
//
// The score starts neutral at 50 and accumulates additive adjustments from
// RSI extremes, trend, EMA/MACD crossovers, Bollinger band position, and the
// price deviation from the medium SMA, in that fixed order. The result is
// clamped to [0,100] and mapped to a categorical label.
package signal

import (
	"fmt"
	"math"

	"cryptopaper/internal/indicator"
	"cryptopaper/internal/model"
)

// minDataPoints is the minimum series length the analyzer accepts.
// Below it the analyzer refuses to score rather than return a partial score.
const minDataPoints = 6

// Label is a categorical trading signal.
type Label string

const (
	StrongBuy  Label = "STRONG_BUY"
	Buy        Label = "BUY"
	Hold       Label = "HOLD"
	Sell       Label = "SELL"
	StrongSell Label = "STRONG_SELL"
)

// Periods configures the lookback windows for every indicator.
type Periods struct {
	SMAShort  int
	SMAMedium int
	SMALong   int
	EMAFast   int
	EMASlow   int
	RSI       int

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	BollingerPeriod int
	BollingerStdDev float64
}

// DefaultPeriods mirrors the 2-hourly sampling cadence: short ≈ 12h,
// medium ≈ 24h, long ≈ 3 days.
func DefaultPeriods() Periods {
	return Periods{
		SMAShort: 6, SMAMedium: 12, SMALong: 36,
		EMAFast: 6, EMASlow: 12,
		RSI:      14,
		MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
		BollingerPeriod: 20, BollingerStdDev: 2,
	}
}

// Thresholds configures the score adjustments' trigger levels.
type Thresholds struct {
	RSIOversold           float64 // RSI below this adds to the score
	RSIOverbought         float64 // RSI above this subtracts
	BollingerUpperPercent float64 // percentB*100 above this subtracts
	BollingerLowerPercent float64 // percentB*100 below this adds
}

// DefaultThresholds returns the conservative defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:           30,
		RSIOverbought:         70,
		BollingerUpperPercent: 80,
		BollingerLowerPercent: 20,
	}
}

// Scalar is a float indicator value that may be missing.
type Scalar struct {
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
}

func scalar(v float64, ok bool) Scalar { return Scalar{Value: v, OK: ok} }

// IndicatorSet bundles every computed indicator for one asset. Indicators
// lacking enough history carry OK=false or nil; they contribute nothing to
// the score.
type IndicatorSet struct {
	SMAShort  Scalar `json:"sma_short"`
	SMAMedium Scalar `json:"sma_medium"`
	SMALong   Scalar `json:"sma_long"`
	EMAShort  Scalar `json:"ema_short"`
	RSI       Scalar `json:"rsi"`

	Volatility        Scalar `json:"volatility"`
	VolatilityPercent Scalar `json:"volatility_percent"`

	Trend         indicator.Trend            `json:"trend"`
	Crossover     *indicator.Crossover       `json:"crossover,omitempty"`
	MACD          *indicator.MACDResult      `json:"macd,omitempty"`
	MACDCrossover *indicator.Crossover       `json:"macd_crossover,omitempty"`
	Bollinger     *indicator.BollingerResult `json:"bollinger,omitempty"`
}

// Result is the per-asset analysis outcome. Recomputed fresh on every call.
type Result struct {
	Asset        string       `json:"asset"`
	CurrentPrice float64      `json:"current_price"`
	DataPoints   int          `json:"data_points"`
	Indicators   IndicatorSet `json:"indicators"`
	Signal       Label        `json:"signal"`
	Score        float64      `json:"signal_score"` // clamped to [0,100]
	Confidence   float64      `json:"confidence"`   // |score-50|/50
}

// InsufficientDataError reports a series too short to score.
type InsufficientDataError struct {
	Asset      string
	DataPoints int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data (%d points, need %d)", e.Asset, e.DataPoints, minDataPoints)
}

// Analyzer scores assets from their price history.
type Analyzer struct {
	periods    Periods
	thresholds Thresholds
}

// NewAnalyzer creates an analyzer. Non-positive periods or inverted
// thresholds are configuration errors and fail construction.
func NewAnalyzer(periods Periods, thresholds Thresholds) (*Analyzer, error) {
	for name, p := range map[string]int{
		"sma short": periods.SMAShort, "sma medium": periods.SMAMedium, "sma long": periods.SMALong,
		"ema fast": periods.EMAFast, "ema slow": periods.EMASlow, "rsi": periods.RSI,
		"macd fast": periods.MACDFast, "macd slow": periods.MACDSlow, "macd signal": periods.MACDSignal,
		"bollinger": periods.BollingerPeriod,
	} {
		if p <= 0 {
			return nil, fmt.Errorf("analyzer config: %s period must be positive, got %d", name, p)
		}
	}
	if periods.BollingerStdDev <= 0 {
		return nil, fmt.Errorf("analyzer config: bollinger stddev multiplier must be positive, got %v", periods.BollingerStdDev)
	}
	if thresholds.RSIOversold >= thresholds.RSIOverbought {
		return nil, fmt.Errorf("analyzer config: rsi oversold (%v) must be below overbought (%v)",
			thresholds.RSIOversold, thresholds.RSIOverbought)
	}
	return &Analyzer{periods: periods, thresholds: thresholds}, nil
}

// Analyze computes the full indicator set and signal score for one asset.
// Series shorter than 6 points return an InsufficientDataError instead of a
// partial score; the caller treats this as a per-asset skip, not a failure.
func (a *Analyzer) Analyze(asset string, prices model.PriceSeries) (*Result, error) {
	if len(prices) < minDataPoints {
		return nil, &InsufficientDataError{Asset: asset, DataPoints: len(prices)}
	}

	p := a.periods
	currentPrice := prices.LastPrice()

	set := IndicatorSet{
		SMAShort:      scalar(indicator.SMA(prices, p.SMAShort)),
		SMAMedium:     scalar(indicator.SMA(prices, p.SMAMedium)),
		SMALong:       scalar(indicator.SMA(prices, p.SMALong)),
		EMAShort:      scalar(indicator.EMA(prices, p.EMAFast)),
		RSI:           scalar(indicator.RSI(prices, p.RSI)),
		Volatility:    scalar(indicator.Volatility(prices, p.SMAMedium)),
		Trend:         indicator.DetectTrend(prices, p.SMAMedium),
		Crossover:     indicator.DetectCrossover(prices, p.EMAFast, p.EMASlow),
		MACD:          indicator.MACD(prices, p.MACDFast, p.MACDSlow, p.MACDSignal),
		MACDCrossover: indicator.DetectMACDCrossover(prices, p.MACDFast, p.MACDSlow, p.MACDSignal),
		Bollinger:     indicator.Bollinger(prices, p.BollingerPeriod, p.BollingerStdDev),
	}
	if set.Volatility.OK && currentPrice != 0 {
		set.VolatilityPercent = scalar(set.Volatility.Value/currentPrice*100, true)
	}

	score := a.score(currentPrice, set)

	return &Result{
		Asset:        asset,
		CurrentPrice: currentPrice,
		DataPoints:   len(prices),
		Indicators:   set,
		Signal:       labelFor(score),
		Score:        score,
		Confidence:   math.Abs(score-50) / 50,
	}, nil
}

// score applies the additive adjustments in their fixed order and clamps.
func (a *Analyzer) score(currentPrice float64, set IndicatorSet) float64 {
	th := a.thresholds
	score := 50.0

	// RSI extremes.
	if set.RSI.OK {
		if set.RSI.Value < th.RSIOversold {
			score += 20
		}
		if set.RSI.Value > th.RSIOverbought {
			score -= 20
		}
	}

	// Trend slope.
	switch set.Trend.Direction {
	case indicator.Bullish:
		score += 15 * set.Trend.Strength
	case indicator.Bearish:
		score -= 15 * set.Trend.Strength
	}

	// EMA crossover.
	if c := set.Crossover; c != nil {
		switch c.Signal {
		case indicator.SideBuy:
			score += 25 * c.Strength
		case indicator.SideSell:
			score -= 25 * c.Strength
		}
	}

	// MACD crossover, falling back to a flat trend bias without one.
	if c := set.MACDCrossover; c != nil {
		switch c.Signal {
		case indicator.SideBuy:
			score += 20 * c.Strength
		case indicator.SideSell:
			score -= 20 * c.Strength
		}
	} else if m := set.MACD; m != nil && m.HasSignal {
		switch m.Trend {
		case indicator.Bullish:
			score += 10
		case indicator.Bearish:
			score -= 10
		}
	}

	// Bollinger extreme-band proximity. Thresholds are on the percent
	// scale, percentB on the 0..1 scale.
	if b := set.Bollinger; b != nil {
		pb := b.PercentB * 100
		if b.Position == indicator.BandLower && pb < th.BollingerLowerPercent {
			score += 15
		} else if b.Position == indicator.BandUpper && pb > th.BollingerUpperPercent {
			score -= 15
		}
	}

	// Price deviation from the medium SMA: ±5 points per percent.
	if set.SMAMedium.OK && set.SMAMedium.Value != 0 {
		vsSMA := (currentPrice - set.SMAMedium.Value) / set.SMAMedium.Value * 100
		score += vsSMA * 5
	}

	return math.Max(0, math.Min(100, score))
}

func labelFor(score float64) Label {
	switch {
	case score >= 70:
		return StrongBuy
	case score >= 60:
		return Buy
	case score <= 30:
		return StrongSell
	case score <= 40:
		return Sell
	default:
		return Hold
	}
}
