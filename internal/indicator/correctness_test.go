package indicator

import (
	"math"
	"testing"

	"cryptopaper/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func series(prices ...float64) model.PriceSeries {
	s := make(model.PriceSeries, 0, len(prices))
	for i, p := range prices {
		s = append(s, model.PricePoint{TS: int64(i) * 1000, Price: p})
	}
	return s
}

func flatSeries(n int, price float64) model.PriceSeries {
	s := make(model.PriceSeries, 0, n)
	for i := 0; i < n; i++ {
		s = append(s, model.PricePoint{TS: int64(i) * 1000, Price: price})
	}
	return s
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

// ────────────────────────────────────────────────────────────
// SMA / EMA
// ────────────────────────────────────────────────────────────

func TestSMA_SingleWindow(t *testing.T) {
	// len(series) == period: SMA equals the plain arithmetic mean.
	s := series(100, 102, 104)
	got, ok := SMA(s, 3)
	if !ok {
		t.Fatal("SMA(3) not ok on 3-point series")
	}
	assertClose(t, "SMA(3)", got, 102.0, 1e-9)
}

func TestSMA_TrailingWindow(t *testing.T) {
	// SMA(5) of 10..16 uses only the last five points: (12+13+14+15+16)/5.
	s := series(10, 11, 12, 13, 14, 15, 16)
	got, ok := SMA(s, 5)
	if !ok {
		t.Fatal("SMA(5) not ok")
	}
	assertClose(t, "SMA(5)", got, 14.0, 1e-9)
}

func TestSMA_InsufficientData(t *testing.T) {
	if _, ok := SMA(series(100, 101), 3); ok {
		t.Error("SMA(3) on 2 points: want ok=false")
	}
	if _, ok := SMA(nil, 1); ok {
		t.Error("SMA on empty series: want ok=false")
	}
}

func TestEMA_HandCalculated(t *testing.T) {
	// EMA(3) over 100,102,104,103,105 with k=0.5:
	// seed = (100+102+104)/3 = 102
	// t3: (103-102)*0.5 + 102    = 102.5
	// t4: (105-102.5)*0.5 + 102.5 = 103.75
	got, ok := EMA(series(100, 102, 104, 103, 105), 3)
	if !ok {
		t.Fatal("EMA(3) not ok")
	}
	assertClose(t, "EMA(3)", got, 103.75, 1e-9)
}

func TestEMA_SeedEqualsSMA(t *testing.T) {
	// len == period: EMA is just the SMA seed.
	got, ok := EMA(series(10, 20, 30), 3)
	if !ok {
		t.Fatal("EMA(3) not ok")
	}
	assertClose(t, "EMA seed", got, 20.0, 1e-9)
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_HandCalculated(t *testing.T) {
	// Deltas over the last 3 changes: +2, -1, +2.
	// avgGain = 4/3, avgLoss = 1/3, RS = 4, RSI = 100 - 100/5 = 80.
	got, ok := RSI(series(100, 102, 101, 103), 3)
	if !ok {
		t.Fatal("RSI(3) not ok")
	}
	assertClose(t, "RSI(3)", got, 80.0, 1e-9)
}

func TestRSI_Extremes(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"all gains", []float64{100, 101, 102, 103}, 100},
		{"all losses", []float64{103, 102, 101, 100}, 0},
		{"flat (avgLoss=0)", []float64{100, 100, 100, 100}, 100},
	}
	for _, tt := range tests {
		got, ok := RSI(series(tt.prices...), 3)
		if !ok {
			t.Fatalf("%s: RSI not ok", tt.name)
		}
		assertClose(t, tt.name, got, tt.want, 1e-9)
	}
}

func TestRSI_Bounded(t *testing.T) {
	s := series(100, 95, 103, 99, 110, 104, 108, 101, 99, 105, 112, 90, 95, 97, 101)
	for period := 2; period < len(s); period++ {
		got, ok := RSI(s, period)
		if !ok {
			t.Fatalf("RSI(%d) not ok", period)
		}
		if got < 0 || got > 100 {
			t.Errorf("RSI(%d) = %.4f outside [0,100]", period, got)
		}
	}
}

func TestRSI_InsufficientData(t *testing.T) {
	// Needs period+1 points.
	if _, ok := RSI(series(100, 101, 102), 3); ok {
		t.Error("RSI(3) on 3 points: want ok=false")
	}
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_InsufficientData(t *testing.T) {
	if got := MACD(series(100, 101, 102, 103), 2, 3, 2); got != nil {
		t.Errorf("MACD on 4 points (need 5): want nil, got %+v", got)
	}
}

func TestMACD_Invariants(t *testing.T) {
	s := series(100, 102, 101, 105, 104, 108, 107, 111, 110, 114)
	res := MACD(s, 2, 3, 2)
	if res == nil {
		t.Fatal("MACD returned nil")
	}
	if !res.HasSignal {
		t.Fatal("MACD signal line missing with sufficient history")
	}
	assertClose(t, "histogram = macd - signal", res.Histogram, res.Value-res.Signal, 1e-12)

	wantTrend := Bearish
	if res.Value > res.Signal {
		wantTrend = Bullish
	}
	if res.Trend != wantTrend {
		t.Errorf("trend = %s, want %s", res.Trend, wantTrend)
	}
}

func TestMACD_RisingSeriesIsPositive(t *testing.T) {
	// Steadily rising prices: the fast EMA leads the slow EMA.
	s := series(100, 102, 104, 106, 108, 110, 112, 114, 116, 118)
	res := MACD(s, 2, 4, 2)
	if res == nil {
		t.Fatal("MACD returned nil")
	}
	if res.Value <= 0 {
		t.Errorf("MACD on rising series = %.6f, want > 0", res.Value)
	}
}

// ────────────────────────────────────────────────────────────
// Crossovers
// ────────────────────────────────────────────────────────────

func TestDetectCrossover_Buy(t *testing.T) {
	// Declining series, then a sharp up-tick: fast EMA was at-or-below the
	// slow EMA and is now above it.
	s := series(12, 11, 10, 9, 15)
	cross := DetectCrossover(s, 2, 3)
	if cross == nil {
		t.Fatal("expected BUY crossover, got nil")
	}
	if cross.Signal != SideBuy {
		t.Errorf("signal = %s, want BUY", cross.Signal)
	}
	if cross.Strength <= 0 {
		t.Errorf("strength = %.6f, want > 0", cross.Strength)
	}
}

func TestDetectCrossover_Sell(t *testing.T) {
	s := series(9, 10, 11, 12, 5)
	cross := DetectCrossover(s, 2, 3)
	if cross == nil {
		t.Fatal("expected SELL crossover, got nil")
	}
	if cross.Signal != SideSell {
		t.Errorf("signal = %s, want SELL", cross.Signal)
	}
}

func TestDetectCrossover_NoCross(t *testing.T) {
	// Monotonic series: the fast line never changes sides.
	if cross := DetectCrossover(series(10, 11, 12, 13, 14, 15), 2, 3); cross != nil {
		t.Errorf("monotonic series: want nil, got %+v", cross)
	}
}

func TestDetectMACDCrossover_NilWhenShort(t *testing.T) {
	if cross := DetectMACDCrossover(series(100, 101, 102, 103, 104, 105), 2, 3, 2); cross == nil {
		return // needs slow+signal+2 = 7 points, nil is correct
	} else {
		t.Errorf("want nil on short series, got %+v", cross)
	}
}

func TestDetectMACDCrossover_DirectionMatchesHistogramFlip(t *testing.T) {
	// A steady decline keeps the MACD under its lagging signal line; the
	// final sharp jump flips it above at exactly the last point.
	s := series(120, 115, 110, 105, 100, 95, 90, 85, 80, 75, 140)
	cross := DetectMACDCrossover(s, 2, 4, 2)
	if cross == nil {
		t.Fatal("expected BUY crossover at the final point, got nil")
	}
	if cross.Signal != SideBuy {
		t.Errorf("signal = %s, want BUY after reversal jump", cross.Signal)
	}
	if cross.Strength <= 0 {
		t.Errorf("strength = %.6f, want > 0", cross.Strength)
	}
}

// ────────────────────────────────────────────────────────────
// Bollinger Bands
// ────────────────────────────────────────────────────────────

func TestBollinger_PercentBAtMiddle(t *testing.T) {
	// Last price equals the window mean exactly: percentB = 0.5.
	s := series(98, 102, 102, 98, 100)
	res := Bollinger(s, 5, 2)
	if res == nil {
		t.Fatal("Bollinger returned nil")
	}
	assertClose(t, "middle", res.Middle, 100.0, 1e-9)
	assertClose(t, "percentB", res.PercentB, 0.5, 1e-9)
	if res.Position != BandMiddle {
		t.Errorf("position = %s, want MIDDLE", res.Position)
	}
}

func TestBollinger_HandCalculated(t *testing.T) {
	// Window 2,4,4,4,5,5,7,9: mean=5, population stddev=2.
	s := series(2, 4, 4, 4, 5, 5, 7, 9)
	res := Bollinger(s, 8, 2)
	if res == nil {
		t.Fatal("Bollinger returned nil")
	}
	assertClose(t, "middle", res.Middle, 5.0, 1e-9)
	assertClose(t, "upper", res.Upper, 9.0, 1e-9)
	assertClose(t, "lower", res.Lower, 1.0, 1e-9)
	// Last price 9 sits on the upper band: percentB = 1.
	assertClose(t, "percentB", res.PercentB, 1.0, 1e-9)
	if res.Position != BandUpper {
		t.Errorf("position = %s, want UPPER", res.Position)
	}
}

func TestBollinger_PercentBUnclamped(t *testing.T) {
	// A final price far outside the bands pushes percentB beyond [0,1].
	s := series(100, 101, 99, 100, 101, 99, 100, 150)
	res := Bollinger(s, 8, 2)
	if res == nil {
		t.Fatal("Bollinger returned nil")
	}
	if res.PercentB <= 1 {
		t.Errorf("percentB = %.4f, want > 1 for a breakout price", res.PercentB)
	}
}

// ────────────────────────────────────────────────────────────
// Volatility / Trend
// ────────────────────────────────────────────────────────────

func TestVolatility_HandCalculated(t *testing.T) {
	got, ok := Volatility(series(2, 4, 4, 4, 5, 5, 7, 9), 8)
	if !ok {
		t.Fatal("Volatility not ok")
	}
	assertClose(t, "population stddev", got, 2.0, 1e-9)
}

func TestDetectTrend_Directions(t *testing.T) {
	rising := series(100, 102, 104, 106, 108, 110, 112, 114, 116, 118)
	falling := series(118, 116, 114, 112, 110, 108, 106, 104, 102, 100)

	if tr := DetectTrend(rising, 3); tr.Direction != Bullish {
		t.Errorf("rising series: direction = %s, want BULLISH", tr.Direction)
	} else if tr.Strength <= 0 || tr.Strength > 1 {
		t.Errorf("bullish strength = %.4f, want (0,1]", tr.Strength)
	}
	if tr := DetectTrend(falling, 3); tr.Direction != Bearish {
		t.Errorf("falling series: direction = %s, want BEARISH", tr.Direction)
	}
}

func TestDetectTrend_ShortSeriesIsNeutral(t *testing.T) {
	tr := DetectTrend(series(100, 101, 102), 3) // needs period+6
	if tr.Direction != Neutral || tr.Strength != 0 {
		t.Errorf("short series: got %+v, want zero-strength NEUTRAL", tr)
	}
}

// ────────────────────────────────────────────────────────────
// Scenario and property tests
// ────────────────────────────────────────────────────────────

func TestFlatSeriesScenario(t *testing.T) {
	// 20 identical prices: RSI takes the avgLoss=0 path, the trend is
	// neutral, and the Bollinger bands collapse to zero width.
	s := flatSeries(20, 100)

	rsi, ok := RSI(s, 14)
	if !ok {
		t.Fatal("RSI not ok on 20 flat points")
	}
	assertClose(t, "flat RSI", rsi, 100.0, 1e-9)

	if tr := DetectTrend(s, 12); tr.Direction != Neutral {
		t.Errorf("flat trend = %s, want NEUTRAL", tr.Direction)
	}

	bb := Bollinger(s, 20, 2)
	if bb == nil {
		t.Fatal("Bollinger returned nil")
	}
	assertClose(t, "flat bandwidth", bb.BandwidthPercent, 0.0, 1e-9)
	if bb.Position != BandMiddle {
		t.Errorf("flat position = %s, want MIDDLE", bb.Position)
	}
}

func TestIdempotence(t *testing.T) {
	// Two calls over the same unmutated series are bit-identical.
	s := series(100, 95, 103, 99, 110, 104, 108, 101, 99, 105, 112, 90, 95, 97, 101,
		103, 99, 106, 108, 104, 107, 110, 105, 109, 111, 108, 112, 115, 113, 117)

	sma1, _ := SMA(s, 12)
	sma2, _ := SMA(s, 12)
	ema1, _ := EMA(s, 6)
	ema2, _ := EMA(s, 6)
	rsi1, _ := RSI(s, 14)
	rsi2, _ := RSI(s, 14)
	if sma1 != sma2 || ema1 != ema2 || rsi1 != rsi2 {
		t.Error("scalar indicators differ between identical calls")
	}

	m1 := MACD(s, 12, 26, 9)
	m2 := MACD(s, 12, 26, 9)
	if m1 != nil || m2 != nil {
		t.Fatal("MACD(12,26,9) should be nil on 30 points (needs 35)")
	}

	b1 := Bollinger(s, 20, 2)
	b2 := Bollinger(s, 20, 2)
	if *b1 != *b2 {
		t.Error("Bollinger results differ between identical calls")
	}
}
