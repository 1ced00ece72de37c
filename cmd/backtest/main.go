// Command backtest replays stored price history through the analyzer and
// decision engine to validate a trading mode without live market data.
//
// Usage:
//
//	go run ./cmd/backtest --db=data/history.db --days=30 --stride=12
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cryptopaper/config"
	"cryptopaper/internal/execution"
	"cryptopaper/internal/logger"
	"cryptopaper/internal/model"
	"cryptopaper/internal/monitor"
	"cryptopaper/internal/portfolio"
	"cryptopaper/internal/signal"
	"cryptopaper/internal/strategy"
	"cryptopaper/internal/tradeday"
)

func main() {
	dbPath := flag.String("db", "data/history.db", "Path to the SQLite price history database")
	days := flag.Int("days", 30, "How many days of history to replay")
	stride := flag.Int("stride", 12, "Samples between simulated cycles")
	logLevel := flag.String("log-level", "warn", "Log level during replay")
	flag.Parse()

	log := logger.Init("backtest", logger.ParseLevel(*logLevel))
	cfg := config.Load()

	mode, err := cfg.LoadMode()
	if err != nil {
		fatal("load mode config: %v", err)
	}
	allocs, err := cfg.LoadAllocations()
	if err != nil {
		fatal("load allocations: %v", err)
	}

	analyzer, err := signal.NewAnalyzer(mode.Indicators.Periods(), mode.Thresholds.Thresholds())
	if err != nil {
		fatal("analyzer config: %v", err)
	}
	risk := mode.Risk.RiskParams()
	engine, err := strategy.NewEngine(risk, log)
	if err != nil {
		fatal("risk config: %v", err)
	}
	executor := execution.NewPaperExecutor(risk.MaxDailyTrades, nil, log)

	series, err := loadHistory(*dbPath, allocs.TargetAllocations, *days)
	if err != nil {
		fatal("load history: %v", err)
	}
	total := 0
	for asset, s := range series {
		fmt.Printf("loaded %6d samples for %s\n", len(s), asset)
		total += len(s)
	}
	if total == 0 {
		fatal("no history to replay in %s", *dbPath)
	}

	result := replay(context.Background(), replayConfig{
		series:   series,
		amounts:  allocs.SimulatedAmounts,
		targets:  allocs.TargetAllocations,
		stride:   *stride,
		risk:     risk,
		analyzer: analyzer,
		engine:   engine,
		exec:     executor,
		log:      log,
	})

	printSummary(cfg.TradingMode, result)
}

type replayConfig struct {
	series   map[string]model.PriceSeries
	amounts  map[string]float64
	targets  map[string]float64
	stride   int
	risk     portfolio.RiskParams
	analyzer *signal.Analyzer
	engine   *strategy.Engine
	exec     monitor.Executor
	log      *slog.Logger
}

type replayResult struct {
	Cycles     int
	Skipped    int
	StartValue float64
	EndValue   float64
	Trades     []model.TradeRecord
	Days       int
}

// replay steps a cursor through every series in lockstep, running the same
// analyze/decide/execute pipeline the live monitor runs. Daily state resets
// whenever the sample timestamps cross a UTC day boundary.
func replay(ctx context.Context, cfg replayConfig) replayResult {
	assets := make([]string, 0, len(cfg.series))
	maxLen := 0
	for asset, s := range cfg.series {
		assets = append(assets, asset)
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	sort.Strings(assets)

	var res replayResult
	var pf *model.Portfolio
	var state *model.DailyState
	if cfg.stride < 1 {
		cfg.stride = 1
	}

	for cursor := cfg.stride; cursor <= maxLen; cursor += cfg.stride {
		prices := make(map[string]float64, len(assets))
		analysis := make(map[string]*signal.Result, len(assets))
		var cycleTS int64

		for _, asset := range assets {
			s := cfg.series[asset]
			end := cursor
			if end > len(s) {
				end = len(s)
			}
			prefix := s[:end]
			if len(prefix) == 0 {
				continue
			}

			prices[asset] = prefix.LastPrice()
			if ts := prefix.Last().TS; ts > cycleTS {
				cycleTS = ts
			}
			if r, err := cfg.analyzer.Analyze(asset, prefix); err == nil {
				analysis[asset] = r
			}
		}
		if len(prices) == 0 {
			continue
		}

		// Portfolio starts from the simulated amounts at the first
		// replayed prices, then trades mutate it in place.
		if pf == nil {
			pf = model.NewPortfolio(cfg.amounts, prices)
			pf.Source = "backtest"
			res.StartValue = pf.TotalValue
		} else {
			for asset, p := range prices {
				if h, ok := pf.Assets[asset]; ok {
					h.Price = p
				}
			}
			pf.Recompute()
		}

		day := tradeday.Key(time.UnixMilli(cycleTS), time.UTC)
		if state == nil || state.Date != day {
			state = model.NewDailyState(day)
			res.Days++
		}

		res.Cycles++
		if check := portfolio.CheckRiskLimits(cfg.risk, state, pf); !check.Allowed {
			res.Skipped++
			continue
		}

		outcome := cfg.engine.DecidePositions(state, pf.Allocations(), cfg.targets, analysis, pf.TotalValue, prices)
		if outcome.Skipped {
			res.Skipped++
			continue
		}
		if len(outcome.Decisions) == 0 {
			continue
		}

		executed, err := cfg.exec.ExecuteTrades(ctx, outcome.Decisions, pf, state)
		if err != nil {
			cfg.log.Error("execution failed mid-replay", slog.Any("error", err))
			break
		}
		res.Trades = append(res.Trades, executed...)
	}

	if pf != nil {
		res.EndValue = pf.TotalValue
	}
	return res
}

// loadHistory reads the replay window per tracked asset, oldest first.
func loadHistory(dbPath string, targets map[string]float64, days int) (map[string]model.PriceSeries, error) {
	db, err := sql.Open("sqlite3", dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	out := make(map[string]model.PriceSeries, len(targets))
	for asset := range targets {
		rows, err := db.Query(
			`SELECT ts, price FROM price_history WHERE asset = ? AND ts >= ? ORDER BY ts ASC, id ASC`,
			asset, cutoff)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", asset, err)
		}
		var series model.PriceSeries
		for rows.Next() {
			var p model.PricePoint
			if err := rows.Scan(&p.TS, &p.Price); err != nil {
				rows.Close()
				return nil, err
			}
			series = append(series, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		out[asset] = series
	}
	return out, nil
}

func printSummary(mode string, r replayResult) {
	buys, sells := 0, 0
	for _, t := range r.Trades {
		if t.Action == model.ActionBuy {
			buys++
		} else {
			sells++
		}
	}
	pnl := r.EndValue - r.StartValue
	pct := 0.0
	if r.StartValue != 0 {
		pct = pnl / r.StartValue * 100
	}

	fmt.Println()
	fmt.Printf("mode:          %s\n", mode)
	fmt.Printf("cycles:        %d (%d skipped) over %d day(s)\n", r.Cycles, r.Skipped, r.Days)
	fmt.Printf("trades:        %d (%d buys, %d sells)\n", len(r.Trades), buys, sells)
	fmt.Printf("start value:   $%.2f\n", r.StartValue)
	fmt.Printf("end value:     $%.2f\n", r.EndValue)
	fmt.Printf("p&l:           $%.2f (%+.2f%%)\n", pnl, pct)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "backtest: "+format+"\n", args...)
	os.Exit(1)
}
