// Package report builds the end-of-day trading summary from portfolio
// snapshots, price history, and the daily state, and renders it as a
// Telegram-ready text message.
package report

import (
	"fmt"
	"sort"
	"strings"

	"cryptopaper/internal/allocation"
	"cryptopaper/internal/model"
)

// AssetPerformance is one asset's value change over the day.
type AssetPerformance struct {
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	Amount        float64 `json:"amount"`
	Allocation    float64 `json:"allocation"` // percent of end-of-day value
}

// PriceRange summarizes one asset's sampled prices for the day.
type PriceRange struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	First float64 `json:"first"`
	Last  float64 `json:"last"`
	Count int     `json:"count"`
}

// Daily is the end-of-day summary.
type Daily struct {
	Date          string                          `json:"date"`
	StartValue    float64                         `json:"start_value"`
	EndValue      float64                         `json:"end_value"`
	Change        float64                         `json:"change"`
	PercentChange float64                         `json:"percent_change"`
	Assets        map[string]AssetPerformance     `json:"assets"`
	PriceRanges   map[string]PriceRange           `json:"price_ranges"`
	Allocations   map[string]allocation.Deviation `json:"allocations"`
	TradeCount    int                             `json:"trade_count"`
	Trades        []model.TradeRecord             `json:"trades"`
	RealizedPnL   float64                         `json:"realized_pnl"`
}

// Build assembles the daily summary. start may be nil when the day has no
// earlier snapshot; performance then reads as flat from the current value.
func Build(
	date string,
	start, end *model.Portfolio,
	history map[string]model.PriceSeries,
	devs map[string]allocation.Deviation,
	state *model.DailyState,
) *Daily {
	d := &Daily{
		Date:        date,
		Assets:      make(map[string]AssetPerformance),
		PriceRanges: make(map[string]PriceRange),
		Allocations: devs,
	}
	if end == nil {
		return d
	}

	d.EndValue = end.TotalValue
	if start != nil {
		d.StartValue = start.TotalValue
	} else {
		d.StartValue = end.TotalValue
	}
	d.Change = d.EndValue - d.StartValue
	d.PercentChange = percentChange(d.StartValue, d.EndValue)

	for asset, h := range end.Assets {
		startValue := h.Value
		if start != nil {
			if sh, ok := start.Assets[asset]; ok {
				startValue = sh.Value
			}
		}
		perf := AssetPerformance{
			Start:         startValue,
			End:           h.Value,
			Change:        h.Value - startValue,
			PercentChange: percentChange(startValue, h.Value),
			Amount:        h.Amount,
		}
		if d.EndValue > 0 {
			perf.Allocation = h.Value / d.EndValue * 100
		}
		d.Assets[asset] = perf
	}

	for asset, series := range history {
		if len(series) == 0 {
			continue
		}
		r := PriceRange{
			Min:   series[0].Price,
			Max:   series[0].Price,
			First: series[0].Price,
			Last:  series[len(series)-1].Price,
			Count: len(series),
		}
		for _, p := range series[1:] {
			if p.Price < r.Min {
				r.Min = p.Price
			}
			if p.Price > r.Max {
				r.Max = p.Price
			}
		}
		d.PriceRanges[asset] = r
	}

	if state != nil {
		d.TradeCount = state.TradeCount
		d.Trades = state.Trades
		d.RealizedPnL = state.RealizedPnL
	}
	return d
}

// FormatText renders the summary for Telegram or the log channel.
func (d *Daily) FormatText() string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 Daily Crypto Summary - %s\n\n", d.Date)

	changeEmoji := "📈"
	sign := "+"
	if d.PercentChange < 0 {
		changeEmoji = "📉"
		sign = ""
	}
	fmt.Fprintf(&b, "💰 Portfolio Value\n")
	fmt.Fprintf(&b, "   Start: $%.2f\n", d.StartValue)
	fmt.Fprintf(&b, "   End: $%.2f\n", d.EndValue)
	fmt.Fprintf(&b, "   %s Change: $%.2f (%s%.2f%%)\n\n", changeEmoji, d.Change, sign, d.PercentChange)

	if len(d.Assets) > 0 {
		fmt.Fprintf(&b, "📈 Asset Performance\n")
		for _, asset := range sortedKeysPerf(d.Assets) {
			perf := d.Assets[asset]
			dot := "🟢"
			s := "+"
			if perf.PercentChange < 0 {
				dot = "🔴"
				s = ""
			}
			fmt.Fprintf(&b, "   %s %s: $%.2f (%s%.2f%%) - $%.2f\n",
				dot, asset, perf.Change, s, perf.PercentChange, perf.End)
		}
		b.WriteString("\n")
	}

	if len(d.PriceRanges) > 0 {
		fmt.Fprintf(&b, "📊 Price Ranges\n")
		for _, asset := range sortedKeysRange(d.PriceRanges) {
			r := d.PriceRanges[asset]
			fmt.Fprintf(&b, "   %s: $%.2f - $%.2f (%d pts)\n", asset, r.Min, r.Max, r.Count)
		}
		b.WriteString("\n")
	}

	if len(d.Allocations) > 0 {
		fmt.Fprintf(&b, "🎯 Current vs Target Allocations\n")
		for _, asset := range sortedKeysDev(d.Allocations) {
			dev := d.Allocations[asset]
			status := "👀"
			switch {
			case abs(dev.Diff) < 0.5:
				status = "✅"
			case abs(dev.Diff) > 10:
				status = "⚠️"
			}
			diffSign := ""
			if dev.Diff > 0 {
				diffSign = "+"
			}
			fmt.Fprintf(&b, "   %s %s: %.1f%% (target: %.0f%%, diff: %s%.1f%%)\n",
				status, asset, dev.Current, dev.Target, diffSign, dev.Diff)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "🔄 Trading\n")
	fmt.Fprintf(&b, "   Trades: %d\n", d.TradeCount)
	fmt.Fprintf(&b, "   Realized PnL: $%.2f\n", d.RealizedPnL)

	return b.String()
}

func percentChange(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return (end - start) / start * 100
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sortedKeysPerf(m map[string]AssetPerformance) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysRange(m map[string]PriceRange) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysDev(m map[string]allocation.Deviation) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
