package allocation

import (
	"math"
	"testing"
)

func TestCompare(t *testing.T) {
	current := map[string]float64{"BTC": 50, "ETH": 24.5, "SOL": 10}
	target := map[string]float64{"BTC": 0.40, "ETH": 0.25, "SOL": 0.15, "USDC": 0.20}

	got := Compare(current, target)

	tests := []struct {
		asset string
		diff  float64
	}{
		{"BTC", 10},   // over-allocated
		{"ETH", -0.5}, // slightly under
		{"SOL", -5},   // under-allocated
		{"USDC", -20}, // not held at all
	}
	for _, tt := range tests {
		d, ok := got[tt.asset]
		if !ok {
			t.Fatalf("%s missing from comparison", tt.asset)
		}
		if math.Abs(d.Diff-tt.diff) > 1e-9 {
			t.Errorf("%s diff = %.4f, want %.4f", tt.asset, d.Diff, tt.diff)
		}
	}

	// Assets outside the target map are ignored.
	if _, ok := got["DOGE"]; ok {
		t.Error("untargeted asset leaked into comparison")
	}
}
