// Package execution applies trade decisions to the paper portfolio and
// journals the resulting fills.
//
// The PaperExecutor simulates execution without broker calls: each decision
// mutates the in-memory portfolio at the decision price and appends a fill
// record to the daily state. The daily trade cap is re-checked per trade so
// a batch larger than the remaining budget executes only partially.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cryptopaper/internal/model"
)

// PaperExecutor fills trade decisions against the in-memory portfolio.
type PaperExecutor struct {
	maxDailyTrades int
	journal        *Journal // optional
	log            *slog.Logger
}

// NewPaperExecutor creates a paper executor enforcing the given daily trade
// cap. journal may be nil when no persistence is wanted (backtests).
func NewPaperExecutor(maxDailyTrades int, journal *Journal, log *slog.Logger) *PaperExecutor {
	if log == nil {
		log = slog.Default()
	}
	return &PaperExecutor{maxDailyTrades: maxDailyTrades, journal: journal, log: log}
}

// ExecuteTrades applies a batch of decisions in order. Trades past the daily
// cap are skipped, not queued. The portfolio is mutated in place and its
// total recomputed after the batch; persisting the daily state is the
// caller's job so a cycle flushes exactly once.
func (e *PaperExecutor) ExecuteTrades(
	ctx context.Context,
	decisions []model.TradeDecision,
	pf *model.Portfolio,
	state *model.DailyState,
) ([]model.TradeRecord, error) {
	executed := make([]model.TradeRecord, 0, len(decisions))

	for _, d := range decisions {
		if err := ctx.Err(); err != nil {
			return executed, err
		}
		if state.TradeCount >= e.maxDailyTrades {
			e.log.Warn("daily trade cap hit mid-batch, skipping remaining trades",
				slog.String("asset", d.Asset),
				slog.Int("trade_count", state.TradeCount))
			break
		}

		rec := e.applyTrade(d, pf, state)
		executed = append(executed, rec)

		if e.journal != nil {
			if err := e.journal.Record(rec); err != nil {
				e.log.Error("journal write failed",
					slog.String("trade_id", rec.ID),
					slog.String("error", err.Error()))
			}
		}
	}

	pf.Recompute()

	// The P&L baseline is the portfolio value right after the first trades
	// of the day. Capture it only when this batch opened the day.
	if state.StartPortfolioValue == 0 && len(executed) > 0 && len(state.Trades) == len(executed) {
		state.StartPortfolioValue = pf.TotalValue
	}
	state.LastUpdated = time.Now().UnixMilli()

	return executed, nil
}

func (e *PaperExecutor) applyTrade(d model.TradeDecision, pf *model.Portfolio, state *model.DailyState) model.TradeRecord {
	h, ok := pf.Assets[d.Asset]
	if !ok {
		h = &model.Holding{}
		pf.Assets[d.Asset] = h
	}

	if d.Action == model.ActionBuy {
		h.Amount += d.Amount
	} else {
		h.Amount -= d.Amount
	}
	h.Price = d.Price

	now := time.Now().UnixMilli()
	rec := model.TradeRecord{
		ID:             fmt.Sprintf("trade_%d_%s", now, d.Asset),
		Asset:          d.Asset,
		Action:         d.Action,
		TradePercent:   d.TradePercent,
		TradeValue:     d.TradeValue,
		Price:          d.Price,
		Amount:         d.Amount,
		CurrentAlloc:   d.CurrentAlloc,
		TargetAlloc:    d.TargetAlloc,
		CompositeScore: d.CompositeScore,
		Reason:         d.Reason,
		Timestamp:      d.Timestamp,
		Status:         "FILLED",
		ExecutedAt:     now,
		Type:           "PAPER_TRADE",
	}

	state.Trades = append(state.Trades, rec)
	state.TradeCount++

	e.log.Info("paper trade filled",
		slog.String("id", rec.ID),
		slog.String("asset", d.Asset),
		slog.String("action", string(d.Action)),
		slog.Float64("amount", d.Amount),
		slog.Float64("price", d.Price),
		slog.Float64("value", d.TradeValue))

	return rec
}
