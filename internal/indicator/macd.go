package indicator

import (
	"math"

	"cryptopaper/internal/model"
)

// MACDResult holds the MACD line plus the signal line and histogram when
// enough history exists for them. HasSignal tags the optional fields.
type MACDResult struct {
	Value        float64   `json:"macd"`
	Signal       float64   `json:"signal"`
	Histogram    float64   `json:"histogram"`
	Trend        Direction `json:"trend"`
	HasSignal    bool      `json:"has_signal"`
	FastPeriod   int       `json:"fast_period"`
	SlowPeriod   int       `json:"slow_period"`
	SignalPeriod int       `json:"signal_period"`
}

// MACD computes Moving Average Convergence Divergence:
//
//	macd      = EMA(fast) - EMA(slow)
//	signal    = EMA of the trailing MACD values
//	histogram = macd - signal
//
// Each historical MACD value is recomputed by re-running EMA over a growing
// prefix of the series. This is deliberately the expensive-but-simple
// formulation; its output is the reference for any future incremental
// variant. Requires slow+signalPeriod points; with fewer MACD values than
// signalPeriod the result carries only the MACD line (HasSignal=false).
func MACD(s model.PriceSeries, fast, slow, signalPeriod int) *MACDResult {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 || len(s) < slow+signalPeriod {
		return nil
	}

	fastEMA, okF := EMA(s, fast)
	slowEMA, okS := EMA(s, slow)
	if !okF || !okS {
		return nil
	}
	macd := fastEMA - slowEMA

	// MACD value per growing prefix, from the first prefix long enough to
	// carry a signal line up to the full series.
	minPoints := slow + signalPeriod
	macdValues := make([]float64, 0, len(s)-minPoints+1)
	for i := minPoints; i <= len(s); i++ {
		f, okF := EMA(s[:i], fast)
		sl, okS := EMA(s[:i], slow)
		if okF && okS {
			macdValues = append(macdValues, f-sl)
		}
	}

	res := &MACDResult{
		Value:        macd,
		FastPeriod:   fast,
		SlowPeriod:   slow,
		SignalPeriod: signalPeriod,
	}
	if len(macdValues) < signalPeriod {
		return res
	}

	// Signal line: EMA over the MACD values, SMA seed then recurrence.
	k := 2.0 / float64(signalPeriod+1)
	signal := 0.0
	for _, v := range macdValues[:signalPeriod] {
		signal += v
	}
	signal /= float64(signalPeriod)
	for i := signalPeriod; i < len(macdValues); i++ {
		signal = (macdValues[i]-signal)*k + signal
	}

	res.Signal = signal
	res.Histogram = macd - signal
	res.HasSignal = true
	if macd > signal {
		res.Trend = Bullish
	} else {
		res.Trend = Bearish
	}
	return res
}

// DetectMACDCrossover reports a MACD/signal line cross between the series as
// given and the series with its last point removed. Strength is
// |histogram|/|signal|, with 0.5 substituted when the signal line is zero.
func DetectMACDCrossover(s model.PriceSeries, fast, slow, signalPeriod int) *Crossover {
	if len(s) < slow+signalPeriod+2 {
		return nil
	}

	cur := MACD(s, fast, slow, signalPeriod)
	if cur == nil || !cur.HasSignal {
		return nil
	}
	prev := MACD(s.DropLast(1), fast, slow, signalPeriod)
	if prev == nil || !prev.HasSignal {
		return nil
	}

	crossedUp := cur.Value > cur.Signal && prev.Value <= prev.Signal
	crossedDown := cur.Value < cur.Signal && prev.Value >= prev.Signal
	if !crossedUp && !crossedDown {
		return nil
	}

	strength := 0.5
	if cur.Signal != 0 {
		strength = math.Abs(cur.Histogram) / math.Abs(cur.Signal)
	}

	if crossedUp {
		return &Crossover{Signal: SideBuy, Strength: strength}
	}
	return &Crossover{Signal: SideSell, Strength: strength}
}
