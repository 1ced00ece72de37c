package model

// Holding is one asset position inside a portfolio snapshot.
type Holding struct {
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
}

// Portfolio is an in-memory snapshot of the tracked portfolio.
// PaperExecutor mutates it in place; TotalValue is kept consistent
// via Recompute after every applied trade.
type Portfolio struct {
	Assets     map[string]*Holding `json:"assets"`
	TotalValue float64             `json:"total_value"`
	Source     string              `json:"source,omitempty"`
	Timestamp  int64               `json:"timestamp"`
}

// NewPortfolio builds a snapshot from raw amounts and current prices.
// Assets without a known price get value 0.
func NewPortfolio(amounts map[string]float64, prices map[string]float64) *Portfolio {
	pf := &Portfolio{Assets: make(map[string]*Holding, len(amounts))}
	for asset, amount := range amounts {
		price := prices[asset]
		pf.Assets[asset] = &Holding{
			Amount: amount,
			Price:  price,
			Value:  amount * price,
		}
	}
	pf.Recompute()
	return pf
}

// Recompute refreshes per-holding values and the portfolio total as the
// exact sum of amount*price over all assets.
func (p *Portfolio) Recompute() {
	total := 0.0
	for _, h := range p.Assets {
		h.Value = h.Amount * h.Price
		total += h.Value
	}
	p.TotalValue = total
}

// Allocations returns each asset's percent share of total portfolio value.
// Returns an empty map when the portfolio has no value.
func (p *Portfolio) Allocations() map[string]float64 {
	allocs := make(map[string]float64, len(p.Assets))
	if p.TotalValue == 0 {
		return allocs
	}
	for asset, h := range p.Assets {
		allocs[asset] = h.Value / p.TotalValue * 100
	}
	return allocs
}
