package portfolio

import "cryptopaper/internal/model"

// PnL summarizes the day's realized profit and loss against the baseline
// captured at the first trade of the day.
type PnL struct {
	Realized     float64 `json:"realized_pnl"`
	Percent      float64 `json:"percent"`
	StartValue   float64 `json:"start_value"`
	CurrentValue float64 `json:"current_value"`
	TradesToday  int     `json:"trades_today"`
}

// RealizedPnL computes the day's P&L as current portfolio value minus the
// day's starting value. With no trades executed yet (baseline unset), P&L is
// 0 by definition rather than derived from market moves.
func RealizedPnL(state *model.DailyState, pf *model.Portfolio) PnL {
	if state == nil || state.StartPortfolioValue == 0 {
		return PnL{}
	}

	pnl := pf.TotalValue - state.StartPortfolioValue
	return PnL{
		Realized:     pnl,
		Percent:      pnl / state.StartPortfolioValue * 100,
		StartValue:   state.StartPortfolioValue,
		CurrentValue: pf.TotalValue,
		TradesToday:  state.TradeCount,
	}
}

// RiskCheck is the outcome of the daily risk-limit gate.
type RiskCheck struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	PnL     PnL    `json:"pnl"`
}

// CheckRiskLimits reports whether trading may continue today. Once the day's
// loss crosses -maxDailyLossPercent, further trading is disallowed for the
// rest of the day. This is a soft stop: the caller consults it before running
// the decision engine; nothing in-flight is halted automatically.
func CheckRiskLimits(params RiskParams, state *model.DailyState, pf *model.Portfolio) RiskCheck {
	pnl := RealizedPnL(state, pf)
	if pnl.Percent < -params.MaxDailyLossPercent {
		return RiskCheck{Allowed: false, Reason: "daily_stop_loss", PnL: pnl}
	}
	return RiskCheck{Allowed: true, PnL: pnl}
}
