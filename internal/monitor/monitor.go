// Package monitor runs the trading cycle: fetch prices, build the portfolio,
// analyze each asset, gate on daily risk, decide positions, and (when
// enabled) execute paper trades. One Monitor owns one portfolio's lifecycle;
// the cycle is synchronous and the caller schedules it.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"cryptopaper/internal/allocation"
	"cryptopaper/internal/metrics"
	"cryptopaper/internal/model"
	"cryptopaper/internal/notification"
	"cryptopaper/internal/portfolio"
	"cryptopaper/internal/report"
	"cryptopaper/internal/signal"
	"cryptopaper/internal/strategy"
	"cryptopaper/internal/tradeday"
)

// ── Ports ──
// Narrow interfaces over the concrete store/exchange/execution types so the
// cycle is testable with in-memory fakes.

// PriceFetcher returns the latest spot price per asset. Assets that fail on
// every source are absent from the map.
type PriceFetcher interface {
	FetchAll(ctx context.Context) map[string]float64
}

// HistoryReader loads persisted series and daily state.
type HistoryReader interface {
	LoadPriceSeries(ctx context.Context, asset string, lookbackDays int) (model.PriceSeries, error)
	LoadDailyState(ctx context.Context, date string) (*model.DailyState, error)
}

// StateWriter persists the daily state and portfolio snapshots.
type StateWriter interface {
	SaveDailyState(ctx context.Context, state *model.DailyState) error
	SaveSnapshot(ctx context.Context, pf *model.Portfolio) error
}

// HoldingsProvider reads live exchange balances.
type HoldingsProvider interface {
	Holdings(ctx context.Context) (map[string]float64, error)
}

// Executor fills a batch of trade decisions against the portfolio.
type Executor interface {
	ExecuteTrades(ctx context.Context, decisions []model.TradeDecision, pf *model.Portfolio, state *model.DailyState) ([]model.TradeRecord, error)
}

// DecisionPublisher broadcasts the cycle's decisions to live subscribers.
type DecisionPublisher interface {
	PublishDecisions(ctx context.Context, decisions []model.TradeDecision)
}

// Config wires a Monitor. Prices, Reader, Writer, Analyzer, Engine and
// Targets are required; the rest degrade gracefully when absent.
type Config struct {
	Prices    PriceFetcher
	Reader    HistoryReader
	Writer    StateWriter
	Holdings  HoldingsProvider // nil falls back to SimulatedAmounts
	Exec      Executor
	Publisher DecisionPublisher // nil disables publishing

	Analyzer *signal.Analyzer
	Engine   *strategy.Engine
	Risk     portfolio.RiskParams

	Targets          map[string]float64 // asset -> target fraction in [0,1]
	SimulatedAmounts map[string]float64
	LookbackDays     int
	Location         *time.Location
	EnableTrading    bool

	Metrics  *metrics.Metrics      // nil disables metrics
	Health   *metrics.HealthStatus // nil disables health reporting
	Notifier notification.Notifier // nil disables notifications
	Log      *slog.Logger
}

// Monitor executes trading cycles over one portfolio.
type Monitor struct {
	cfg Config
	log *slog.Logger

	// day-start snapshot for the daily summary, reset on rollover
	dayKey   string
	dayStart *model.Portfolio
}

// CycleResult is everything one cycle produced, for callers and tests.
type CycleResult struct {
	Day        string                          `json:"day"`
	Portfolio  *model.Portfolio                `json:"portfolio"`
	Prices     map[string]float64              `json:"prices"`
	Analysis   map[string]*signal.Result       `json:"analysis"`
	Deviations map[string]allocation.Deviation `json:"deviations"`
	Risk       portfolio.RiskCheck             `json:"risk"`
	Outcome    strategy.Outcome                `json:"outcome"`
	Executed   []model.TradeRecord             `json:"executed"`
	Skipped    bool                            `json:"skipped"`
	Reason     string                          `json:"reason,omitempty"`
}

// New validates the wiring and returns a Monitor.
func New(cfg Config) (*Monitor, error) {
	if cfg.Prices == nil || cfg.Reader == nil || cfg.Writer == nil {
		return nil, fmt.Errorf("monitor: prices, reader and writer are required")
	}
	if cfg.Analyzer == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("monitor: analyzer and engine are required")
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("monitor: no target allocations configured")
	}
	if cfg.EnableTrading && cfg.Exec == nil {
		return nil, fmt.Errorf("monitor: trading enabled without an executor")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Monitor{cfg: cfg, log: cfg.Log}, nil
}

// RunCycle executes one full monitoring cycle. A skipped cycle (risk stop or
// daily trade limit) is a normal outcome, not an error; errors mean the cycle
// could not run at all.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleResult, error) {
	started := time.Now()
	day := tradeday.Today(m.cfg.Location)
	log := m.log.With(slog.String("day", day))

	state, err := m.cfg.Reader.LoadDailyState(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load daily state: %w", err)
	}

	fetchStart := time.Now().UnixMilli()
	prices := m.cfg.Prices.FetchAll(ctx)
	if len(prices) == 0 {
		return nil, fmt.Errorf("no prices available from any source")
	}

	pf := m.buildPortfolio(ctx, prices)
	m.captureDayStart(day, pf)

	devs := allocation.Compare(pf.Allocations(), m.cfg.Targets)
	analysis := m.analyzeAssets(ctx, log, prices, fetchStart)

	res := &CycleResult{
		Day:        day,
		Portfolio:  pf,
		Prices:     prices,
		Analysis:   analysis,
		Deviations: devs,
	}

	res.Risk = portfolio.CheckRiskLimits(m.cfg.Risk, state, pf)
	if !res.Risk.Allowed {
		res.Skipped = true
		res.Reason = res.Risk.Reason
		log.Warn("daily risk limit hit, trading halted for the day",
			slog.String("reason", res.Risk.Reason),
			slog.Float64("daily_pnl_percent", res.Risk.PnL.Percent))
		if m.cfg.Metrics != nil {
			m.cfg.Metrics.SkippedCycles.WithLabelValues(res.Risk.Reason).Inc()
		}
		m.notify(ctx, notification.Alert{
			Level:   notification.AlertWarning,
			Title:   "Daily stop loss triggered",
			Message: fmt.Sprintf("Day P&L %.2f%% breached the loss limit. Trading halted until tomorrow.", res.Risk.PnL.Percent),
		})
		m.persist(ctx, log, state, pf)
		m.recordCycle(started, res, state, pf)
		return res, nil
	}

	res.Outcome = m.cfg.Engine.DecidePositions(state, pf.Allocations(), m.cfg.Targets, analysis, pf.TotalValue, prices)
	if res.Outcome.Skipped {
		res.Skipped = true
		res.Reason = res.Outcome.Reason
		if m.cfg.Metrics != nil {
			m.cfg.Metrics.SkippedCycles.WithLabelValues(res.Outcome.Reason).Inc()
		}
	}

	if m.cfg.Metrics != nil {
		for _, d := range res.Outcome.Decisions {
			m.cfg.Metrics.DecisionsTotal.WithLabelValues(string(d.Action)).Inc()
		}
	}

	if len(res.Outcome.Decisions) > 0 && m.cfg.Publisher != nil {
		m.cfg.Publisher.PublishDecisions(ctx, res.Outcome.Decisions)
	}

	if m.cfg.EnableTrading && len(res.Outcome.Decisions) > 0 {
		executed, err := m.cfg.Exec.ExecuteTrades(ctx, res.Outcome.Decisions, pf, state)
		if err != nil {
			return nil, fmt.Errorf("execute trades: %w", err)
		}
		res.Executed = executed
		state.RealizedPnL = portfolio.RealizedPnL(state, pf).Realized

		if m.cfg.Metrics != nil {
			m.cfg.Metrics.TradesExecuted.Add(float64(len(executed)))
		}
		if len(executed) > 0 {
			m.notify(ctx, notification.Alert{
				Level:   notification.AlertInfo,
				Title:   fmt.Sprintf("Executed %d paper trade(s)", len(executed)),
				Message: tradeSummary(executed),
			})
		}
	} else if len(res.Outcome.Decisions) > 0 {
		log.Info("trading disabled, decisions not executed",
			slog.Int("decisions", len(res.Outcome.Decisions)))
	}

	m.persist(ctx, log, state, pf)
	m.recordCycle(started, res, state, pf)

	log.Info("cycle complete",
		slog.Float64("portfolio_value", pf.TotalValue),
		slog.Int("decisions", len(res.Outcome.Decisions)),
		slog.Int("executed", len(res.Executed)),
		slog.Duration("took", time.Since(started)))
	return res, nil
}

// buildPortfolio prefers live exchange balances and falls back to the
// simulated amounts when no provider is wired or the exchange call fails.
func (m *Monitor) buildPortfolio(ctx context.Context, prices map[string]float64) *model.Portfolio {
	if m.cfg.Holdings != nil {
		amounts, err := m.cfg.Holdings.Holdings(ctx)
		if err == nil && len(amounts) > 0 {
			pf := model.NewPortfolio(amounts, prices)
			pf.Source = "bitso"
			pf.Timestamp = time.Now().UnixMilli()
			return pf
		}
		if err != nil {
			m.log.Warn("exchange balances unavailable, using simulated portfolio", slog.Any("error", err))
			if m.cfg.Metrics != nil {
				m.cfg.Metrics.FetchErrors.WithLabelValues("bitso_balances").Inc()
			}
		}
	}
	pf := model.NewPortfolio(m.cfg.SimulatedAmounts, prices)
	pf.Source = "simulated"
	pf.Timestamp = time.Now().UnixMilli()
	return pf
}

// analyzeAssets scores every targeted asset from its stored history. Assets
// with too little history are skipped; the rest of the cycle proceeds.
func (m *Monitor) analyzeAssets(ctx context.Context, log *slog.Logger, prices map[string]float64, fetchStart int64) map[string]*signal.Result {
	assets := make([]string, 0, len(m.cfg.Targets))
	for asset := range m.cfg.Targets {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	analysis := make(map[string]*signal.Result, len(assets))
	for _, asset := range assets {
		series, err := m.cfg.Reader.LoadPriceSeries(ctx, asset, m.cfg.LookbackDays)
		if err != nil {
			log.Warn("price history unavailable", slog.String("asset", asset), slog.Any("error", err))
			continue
		}
		// The price source persists fetched prices into the same history,
		// so a point at or after fetchStart is this cycle's fetch already.
		// Append the fresh price only when the stored series lags it
		// (cache hits skip persistence); appending unconditionally would
		// analyze the current price twice and pin the crossover detectors
		// to a repeated final price.
		if p, ok := prices[asset]; ok {
			if len(series) == 0 || series.Last().TS < fetchStart {
				series = append(series, model.PricePoint{TS: time.Now().UnixMilli(), Price: p})
			}
		}

		computeStart := time.Now()
		res, err := m.cfg.Analyzer.Analyze(asset, series)
		if err != nil {
			var insufficient *signal.InsufficientDataError
			if errors.As(err, &insufficient) {
				log.Debug("insufficient history, skipping asset",
					slog.String("asset", asset), slog.Int("points", insufficient.DataPoints))
			} else {
				log.Warn("analysis failed", slog.String("asset", asset), slog.Any("error", err))
			}
			continue
		}
		analysis[asset] = res

		if m.cfg.Metrics != nil {
			m.cfg.Metrics.IndicatorDur.Observe(time.Since(computeStart).Seconds())
			m.cfg.Metrics.SignalScore.WithLabelValues(asset).Set(res.Score)
		}
	}
	return analysis
}

// captureDayStart keeps the first portfolio build of each local day for the
// daily summary.
func (m *Monitor) captureDayStart(day string, pf *model.Portfolio) {
	if day == m.dayKey {
		return
	}
	m.dayKey = day
	snap := &model.Portfolio{
		Assets:     make(map[string]*model.Holding, len(pf.Assets)),
		TotalValue: pf.TotalValue,
		Source:     pf.Source,
		Timestamp:  pf.Timestamp,
	}
	for asset, h := range pf.Assets {
		cp := *h
		snap.Assets[asset] = &cp
	}
	m.dayStart = snap
}

// persist flushes the daily state and a portfolio snapshot. Snapshot failure
// is logged and tolerated; losing the daily state would break the risk caps,
// so that failure is loud.
func (m *Monitor) persist(ctx context.Context, log *slog.Logger, state *model.DailyState, pf *model.Portfolio) {
	if err := m.cfg.Writer.SaveDailyState(ctx, state); err != nil {
		log.Error("failed to save daily state", slog.Any("error", err))
	}
	if err := m.cfg.Writer.SaveSnapshot(ctx, pf); err != nil {
		log.Warn("failed to save portfolio snapshot", slog.Any("error", err))
	}
}

func (m *Monitor) recordCycle(started time.Time, res *CycleResult, state *model.DailyState, pf *model.Portfolio) {
	if m.cfg.Health != nil {
		m.cfg.Health.SetLastCycleTime(time.Now())
	}
	if m.cfg.Metrics == nil {
		return
	}
	m.cfg.Metrics.CyclesTotal.Inc()
	m.cfg.Metrics.CycleDur.Observe(time.Since(started).Seconds())
	m.cfg.Metrics.PortfolioValue.Set(pf.TotalValue)

	pnl := portfolio.RealizedPnL(state, pf)
	m.cfg.Metrics.DailyPnL.Set(pnl.Realized)
	m.cfg.Metrics.DailyPnLPercent.Set(pnl.Percent)
}

// SendDailySummary builds and delivers the end-of-day report. Called by the
// scheduler at the local-midnight rollover.
func (m *Monitor) SendDailySummary(ctx context.Context) error {
	day := tradeday.Today(m.cfg.Location)
	state, err := m.cfg.Reader.LoadDailyState(ctx, day)
	if err != nil {
		return fmt.Errorf("load daily state: %w", err)
	}

	prices := m.cfg.Prices.FetchAll(ctx)
	pf := m.buildPortfolio(ctx, prices)
	devs := allocation.Compare(pf.Allocations(), m.cfg.Targets)

	history := make(map[string]model.PriceSeries, len(m.cfg.Targets))
	for asset := range m.cfg.Targets {
		series, err := m.cfg.Reader.LoadPriceSeries(ctx, asset, 1)
		if err != nil {
			continue
		}
		history[asset] = series
	}

	daily := report.Build(day, m.dayStart, pf, history, devs, state)
	m.notify(ctx, notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Daily Summary " + day,
		Message: daily.FormatText(),
	})
	return nil
}

func (m *Monitor) notify(ctx context.Context, alert notification.Alert) {
	if m.cfg.Notifier == nil {
		return
	}
	status := "ok"
	if err := m.cfg.Notifier.Send(ctx, alert); err != nil {
		status = "error"
		m.log.Warn("notification failed", slog.String("title", alert.Title), slog.Any("error", err))
	}
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.NotificationsTotal.WithLabelValues("all", status).Inc()
	}
}

func tradeSummary(trades []model.TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s: $%.2f (%.2f%% of portfolio) @ $%.2f", t.Action, t.Asset, t.TradeValue, t.TradePercent, t.Price)
	}
	return b.String()
}
