package indicator

import (
	"math"

	"cryptopaper/internal/model"
)

// Volatility computes the population standard deviation of the trailing
// period prices. Returns ok=false when the series is shorter than period.
func Volatility(s model.PriceSeries, period int) (float64, bool) {
	if period <= 0 || len(s) < period {
		return 0, false
	}
	return stddev(s, period), true
}

// DetectTrend classifies the SMA slope by comparing the SMA of the full
// series against the SMA of the series with its last 6 points dropped.
// A percent change beyond ±1.5% is directional; strength is min(|chg|/3, 1)
// for directional trends and |chg|/1.5 for neutral ones.
//
// Short series degrade to a zero-strength NEUTRAL trend, never nil.
func DetectTrend(s model.PriceSeries, period int) Trend {
	if period <= 0 || len(s) < period+6 {
		return Trend{Direction: Neutral}
	}

	current, okCur := SMA(s, period)
	old, okOld := SMA(s.DropLast(6), period)
	if !okCur || !okOld || old == 0 {
		return Trend{Direction: Neutral}
	}

	change := (current - old) / old * 100
	switch {
	case change > 1.5:
		return Trend{Direction: Bullish, Strength: math.Min(change/3, 1)}
	case change < -1.5:
		return Trend{Direction: Bearish, Strength: math.Min(math.Abs(change)/3, 1)}
	default:
		return Trend{Direction: Neutral, Strength: math.Abs(change) / 1.5}
	}
}

// DetectCrossover reports an EMA fast/slow cross between the series as given
// and the series with its last point removed. BUY when the fast line moves
// from at-or-below to above the slow line, SELL on the mirror condition.
// Strength is the normalized separation of the lines, with 0.5 substituted
// when the reference line is zero.
func DetectCrossover(s model.PriceSeries, fastPeriod, slowPeriod int) *Crossover {
	if len(s) < slowPeriod+2 {
		return nil
	}

	fast, okF := EMA(s, fastPeriod)
	slow, okS := EMA(s, slowPeriod)
	if !okF || !okS {
		return nil
	}

	prev := s.DropLast(1)
	prevFast, okPF := EMA(prev, fastPeriod)
	prevSlow, okPS := EMA(prev, slowPeriod)
	if !okPF || !okPS {
		return nil
	}

	crossedUp := fast > slow && prevFast <= prevSlow
	crossedDown := fast < slow && prevFast >= prevSlow

	switch {
	case crossedUp:
		strength := 0.5
		if slow != 0 {
			strength = (fast - slow) / slow
		}
		return &Crossover{Signal: SideBuy, Strength: strength}
	case crossedDown:
		strength := 0.5
		if fast != 0 {
			strength = (slow - fast) / fast
		}
		return &Crossover{Signal: SideSell, Strength: strength}
	default:
		return nil
	}
}
