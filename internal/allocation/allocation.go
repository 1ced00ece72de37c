// Package allocation compares current portfolio allocations against targets.
package allocation

// Deviation is the allocation drift for one asset. Diff is positive when the
// asset is over-allocated and negative when under-allocated.
type Deviation struct {
	Asset   string  `json:"asset"`
	Current float64 `json:"current"` // percent of portfolio value
	Target  float64 `json:"target"`  // percent (target fraction * 100)
	Diff    float64 `json:"diff"`    // current - target
}

// Compare computes the per-asset deviation between current allocation
// percentages and target fractions. Assets present only in the target map
// count as 0% currently held. Pure computation, no state.
func Compare(current map[string]float64, target map[string]float64) map[string]Deviation {
	out := make(map[string]Deviation, len(target))
	for asset, frac := range target {
		cur := current[asset]
		tgt := frac * 100
		out[asset] = Deviation{
			Asset:   asset,
			Current: cur,
			Target:  tgt,
			Diff:    cur - tgt,
		}
	}
	return out
}
