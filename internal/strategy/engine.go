// Package strategy implements the position decision engine.
//
// It combines per-asset allocation drift with the technical signal score into
// a composite score, applies a fixed threshold ladder and risk caps, and
// emits a bounded list of trade decisions. Daily trade state gates the whole
// cycle: once the day's trade budget is spent, no per-asset evaluation runs.
package strategy

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"cryptopaper/internal/allocation"
	"cryptopaper/internal/model"
	"cryptopaper/internal/portfolio"
	"cryptopaper/internal/signal"
)

// Decision composite-score thresholds. The ladder is ordered: the strong
// branch is checked before the weak one on each side.
const (
	strongBuyThreshold  = 10
	buyThreshold        = 5
	sellThreshold       = -5
	strongSellThreshold = -10
)

// Outcome is the result of one decision cycle.
type Outcome struct {
	Decisions []model.TradeDecision `json:"decisions"`
	Skipped   bool                  `json:"skipped"`
	Reason    string                `json:"reason,omitempty"`
}

// Engine turns analysis results and allocation drift into trade decisions.
type Engine struct {
	risk portfolio.RiskParams
	log  *slog.Logger
}

// NewEngine creates a decision engine. Risk params are validated here so a
// malformed configuration fails at construction, never mid-cycle.
func NewEngine(risk portfolio.RiskParams, log *slog.Logger) (*Engine, error) {
	if err := risk.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{risk: risk, log: log}, nil
}

// DecidePositions evaluates every targeted asset and returns the trade
// decisions for this cycle.
//
// Entry guard: when the daily trade count has already reached the cap, the
// cycle is skipped wholesale with reason "daily_limit" and no per-asset
// evaluation happens. The per-asset loop deliberately does NOT count
// decisions against the remaining daily capacity — a batch may carry more
// decisions than the budget allows, and the executor enforces the cap again
// per trade. Both checks are load-bearing; do not fold them into one.
func (e *Engine) DecidePositions(
	state *model.DailyState,
	currentAllocs map[string]float64,
	targetAllocs map[string]float64,
	analysis map[string]*signal.Result,
	portfolioValue float64,
	prices map[string]float64,
) Outcome {
	e.log.Info("deciding positions",
		slog.Float64("portfolio_value", portfolioValue),
		slog.Int("daily_trades", state.TradeCount),
		slog.Int("max_daily_trades", e.risk.MaxDailyTrades))

	if state.TradeCount >= e.risk.MaxDailyTrades {
		e.log.Info("daily trade limit reached, skipping cycle")
		return Outcome{Decisions: []model.TradeDecision{}, Skipped: true, Reason: "daily_limit"}
	}

	deviations := allocation.Compare(currentAllocs, targetAllocs)

	// Map iteration order is randomized; sort for a deterministic batch.
	assets := make([]string, 0, len(targetAllocs))
	for asset := range targetAllocs {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	decisions := make([]model.TradeDecision, 0, len(assets))
	for _, asset := range assets {
		res, ok := analysis[asset]
		if !ok || res == nil {
			continue // insufficient data for this asset, others still evaluate
		}

		if d := e.evaluateAsset(asset, deviations[asset], res, portfolioValue, prices[asset]); d != nil {
			decisions = append(decisions, *d)
		}
	}

	return Outcome{Decisions: decisions, Skipped: false}
}

// evaluateAsset runs the composite-score ladder for one asset and returns a
// decision, or nil for HOLD.
func (e *Engine) evaluateAsset(
	asset string,
	dev allocation.Deviation,
	res *signal.Result,
	portfolioValue float64,
	price float64,
) *model.TradeDecision {
	// Over-allocation pushes toward SELL, a bullish signal toward BUY.
	allocationScore := -dev.Diff
	technicalScore := res.Score - 50 // [-50, +50]
	composite := allocationScore*e.risk.AllocationWeight + technicalScore*e.risk.TechnicalWeight

	e.log.Debug("asset evaluation",
		slog.String("asset", asset),
		slog.Float64("alloc_diff", dev.Diff),
		slog.String("signal", string(res.Signal)),
		slog.Float64("signal_score", res.Score),
		slog.Float64("composite", composite))

	action := model.ActionHold
	tradePercent := 0.0
	var reasons []string

	switch {
	case composite >= strongBuyThreshold:
		action = model.ActionBuy
		tradePercent = math.Min(composite/3, e.risk.MaxPositionSizePercent)
		reasons = append(reasons, fmt.Sprintf("Strong buy signal (score: %.1f)", composite))
	case composite >= buyThreshold:
		action = model.ActionBuy
		tradePercent = math.Min(composite/4, e.risk.MaxPositionSizePercent)
		reasons = append(reasons, fmt.Sprintf("Buy signal (score: %.1f)", composite))
	case composite <= strongSellThreshold:
		action = model.ActionSell
		tradePercent = math.Min(math.Abs(composite)/3, e.risk.MaxPositionSizePercent)
		reasons = append(reasons, fmt.Sprintf("Strong sell signal (score: %.1f)", composite))
	case composite <= sellThreshold:
		action = model.ActionSell
		tradePercent = math.Min(math.Abs(composite)/4, e.risk.MaxPositionSizePercent)
		reasons = append(reasons, fmt.Sprintf("Sell signal (score: %.1f)", composite))
	}

	// Too small to act on economically.
	if action != model.ActionHold && tradePercent < e.risk.MinTradePercent {
		action = model.ActionHold
		reasons = append(reasons, fmt.Sprintf("Below minimum trade threshold (%.1f%%)", e.risk.MinTradePercent))
	}

	// A BUY may not push the position past the cap; shrink to the remaining
	// headroom, downgrading when the remainder is not worth trading.
	if action == model.ActionBuy {
		if dev.Current+tradePercent > e.risk.MaxPositionSizePercent {
			tradePercent = e.risk.MaxPositionSizePercent - dev.Current
			if tradePercent < e.risk.MinTradePercent {
				action = model.ActionHold
				reasons = append(reasons, fmt.Sprintf("Would exceed max position size (%.0f%%)", e.risk.MaxPositionSizePercent))
			}
		}
	}

	if action == model.ActionHold {
		return nil
	}

	tradeValue := portfolioValue * tradePercent / 100
	amount := 0.0
	if price > 0 {
		amount = tradeValue / price
	}

	return &model.TradeDecision{
		Asset:          asset,
		Action:         action,
		TradePercent:   tradePercent,
		TradeValue:     tradeValue,
		Price:          price,
		Amount:         amount,
		CurrentAlloc:   dev.Current,
		TargetAlloc:    dev.Target,
		CompositeScore: composite,
		Reason:         strings.Join(reasons, ", "),
		Timestamp:      time.Now().UnixMilli(),
	}
}
