package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading monitor.
type Metrics struct {
	CyclesTotal        prometheus.Counter
	CycleDur           prometheus.Histogram
	SkippedCycles      *prometheus.CounterVec // labels: reason
	PricesFetched      prometheus.Counter
	FetchErrors        *prometheus.CounterVec // labels: source
	SignalScore        *prometheus.GaugeVec   // labels: asset
	DecisionsTotal     *prometheus.CounterVec // labels: action
	TradesExecuted     prometheus.Counter
	PortfolioValue     prometheus.Gauge
	DailyPnL           prometheus.Gauge
	DailyPnLPercent    prometheus.Gauge
	IndicatorDur       prometheus.Histogram
	SQLiteCommitDur    prometheus.Histogram
	RedisBreakerState  prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisBreakerTrips  prometheus.Counter
	WSReconnects       prometheus.Counter
	TicksRecorded      prometheus.Counter
	RingBufOverflow    prometheus.Counter
	NotificationsTotal *prometheus.CounterVec // labels: channel, status
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_cycles_total",
			Help: "Total monitoring cycles run",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_cycle_duration_seconds",
			Help:    "Full cycle latency (fetch, analyze, decide, execute)",
			Buckets: prometheus.DefBuckets,
		}),
		SkippedCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_skipped_cycles_total",
			Help: "Cycles skipped by risk gates (by reason)",
		}, []string{"reason"}),
		PricesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_prices_fetched_total",
			Help: "Price points fetched from exchanges",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_fetch_errors_total",
			Help: "Price fetch failures (by source)",
		}, []string{"source"}),
		SignalScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "monitor_signal_score",
			Help: "Latest composite technical score per asset (0-100)",
		}, []string{"asset"}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_decisions_total",
			Help: "Trade decisions emitted (by action)",
		}, []string{"action"}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_trades_executed_total",
			Help: "Paper trades filled",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_portfolio_value",
			Help: "Current portfolio value in quote currency",
		}),
		DailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_daily_pnl",
			Help: "Realized P&L for the current day in quote currency",
		}),
		DailyPnLPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_daily_pnl_percent",
			Help: "Realized P&L for the current day as percent of the day's baseline",
		}),
		IndicatorDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_indicator_compute_duration_seconds",
			Help:    "Per-asset indicator computation latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ws_reconnects_total",
			Help: "Trade stream reconnection attempts",
		}),
		TicksRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ticks_recorded_total",
			Help: "Trade ticks recorded from the websocket stream",
		}),
		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped ticks)",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_notifications_total",
			Help: "Notifications sent (by channel and status)",
		}, []string{"channel", "status"}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDur,
		m.SkippedCycles,
		m.PricesFetched,
		m.FetchErrors,
		m.SignalScore,
		m.DecisionsTotal,
		m.TradesExecuted,
		m.PortfolioValue,
		m.DailyPnL,
		m.DailyPnLPercent,
		m.IndicatorDur,
		m.SQLiteCommitDur,
		m.RedisBreakerState,
		m.RedisBreakerTrips,
		m.WSReconnects,
		m.TicksRecorded,
		m.RingBufOverflow,
		m.NotificationsTotal,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	LastCycleTime  time.Time `json:"last_cycle_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	TradingEnabled bool      `json:"trading_enabled"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetLastCycleTime(t time.Time) {
	h.mu.Lock()
	h.LastCycleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetTradingEnabled(v bool) {
	h.mu.Lock()
	h.TradingEnabled = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if !h.RedisConnected {
		// Redis is a cache; the monitor degrades but keeps trading.
		overallStatus = "degraded"
	}

	cycleAge := ""
	if !h.LastCycleTime.IsZero() {
		cycleAge = time.Since(h.LastCycleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastCycleTime   string  `json:"last_cycle_time"`
		CycleAge        string  `json:"cycle_age"`
		TradingEnabled  bool    `json:"trading_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		LastCycleTime:   h.LastCycleTime.Format(time.RFC3339),
		CycleAge:        cycleAge,
		TradingEnabled:  h.TradingEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start(log *slog.Logger) {
	go func() {
		if log != nil {
			log.Info("metrics server listening", slog.String("addr", s.addr))
		}
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server error", slog.String("error", err.Error()))
			}
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
