// Command monitor is the crypto portfolio monitor daemon. It runs trading
// cycles on a cron schedule (or once, when no schedule is configured),
// records live trade ticks, and serves Prometheus metrics and health checks.
package main

import (
	"context"
	"log/slog"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"cryptopaper/config"
	"cryptopaper/internal/exchange"
	"cryptopaper/internal/execution"
	"cryptopaper/internal/logger"
	"cryptopaper/internal/metrics"
	"cryptopaper/internal/monitor"
	"cryptopaper/internal/notification"
	"cryptopaper/internal/signal"
	redisstore "cryptopaper/internal/store/redis"
	sqlitestore "cryptopaper/internal/store/sqlite"
	"cryptopaper/internal/strategy"
	"cryptopaper/internal/tradeday"
	"cryptopaper/pkg/bitso"
)

func main() {
	// .env is optional; real environments inject variables directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init("monitor", logger.ParseLevel(cfg.LogLevel))

	mode, err := cfg.LoadMode()
	if err != nil {
		log.Error("failed to load mode config", slog.Any("error", err))
		os.Exit(1)
	}
	allocs, err := cfg.LoadAllocations()
	if err != nil {
		log.Error("failed to load allocations", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("configuration loaded",
		slog.String("mode", cfg.TradingMode),
		slog.Int("assets", len(allocs.TargetAllocations)),
		slog.Bool("trading_enabled", cfg.EnableTrading))

	loc := tradeday.LoadLocation(cfg.Timezone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Stores ----
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath}, log)
	if err != nil {
		log.Error("sqlite init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlWriter.Close()

	sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath, log)
	if err != nil {
		log.Error("sqlite reader init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlReader.Close()

	prom := metrics.NewMetrics()

	var redisWriter *redisstore.Writer
	redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Metrics:  prom,
	}, log)
	if err != nil {
		log.Warn("redis unavailable, continuing without cache", slog.Any("error", err))
		redisWriter = nil
	} else {
		defer redisWriter.Close()
	}

	// ---- Metrics & health ----
	health := metrics.NewHealthStatus()
	health.SetTradingEnabled(cfg.EnableTrading)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start(log)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsSrv.Stop(shutdownCtx)
	}()

	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Exchange ----
	var bitsoClient *bitso.Client
	if cfg.BitsoAPIKey != "" && cfg.BitsoAPISecret != "" {
		bitsoClient = bitso.NewClient(bitso.Config{
			APIKey:    cfg.BitsoAPIKey,
			APISecret: cfg.BitsoAPISecret,
		})
		if err := bitsoClient.TestConnection(ctx); err != nil {
			log.Warn("bitso connection check failed", slog.Any("error", err))
		}
	} else {
		log.Info("no bitso credentials, portfolio will be simulated")
	}

	priceSource := exchange.NewPriceSource(exchange.PriceSourceConfig{
		Books:   allocs.Books,
		Bitso:   bitsoClient,
		Cache:   redisWriter,
		History: sqlWriter,
		Metrics: prom,
		Log:     log,
	})

	// ---- Notifications ----
	backends := []notification.Notifier{notification.NewLogNotifier(log)}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, log))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL, log))
	}
	notifier := notification.NewMultiNotifier(log, backends...)

	// ---- Analysis & execution ----
	analyzer, err := signal.NewAnalyzer(mode.Indicators.Periods(), mode.Thresholds.Thresholds())
	if err != nil {
		log.Error("invalid indicator config", slog.Any("error", err))
		os.Exit(1)
	}
	risk := mode.Risk.RiskParams()
	engine, err := strategy.NewEngine(risk, log)
	if err != nil {
		log.Error("invalid risk config", slog.Any("error", err))
		os.Exit(1)
	}

	journal, err := execution.NewJournal(cfg.JournalPath, log)
	if err != nil {
		log.Error("trade journal init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer journal.Close()
	executor := execution.NewPaperExecutor(risk.MaxDailyTrades, journal, log)

	monCfg := monitor.Config{
		Prices:           priceSource,
		Reader:           sqlReader,
		Writer:           sqlWriter,
		Exec:             executor,
		Analyzer:         analyzer,
		Engine:           engine,
		Risk:             risk,
		Targets:          allocs.TargetAllocations,
		SimulatedAmounts: allocs.SimulatedAmounts,
		LookbackDays:     cfg.LookbackDays,
		Location:         loc,
		EnableTrading:    cfg.EnableTrading,
		Metrics:          prom,
		Health:           health,
		Notifier:         notifier,
		Log:              log,
	}
	if bitsoClient != nil {
		monCfg.Holdings = bitsoClient
	}
	if redisWriter != nil {
		monCfg.Publisher = redisWriter
	}
	mon, err := monitor.New(monCfg)
	if err != nil {
		log.Error("monitor init failed", slog.Any("error", err))
		os.Exit(1)
	}

	// One-shot mode: a single cycle, then exit.
	if strings.TrimSpace(cfg.CronSchedule) == "" {
		if _, err := mon.RunCycle(ctx); err != nil {
			log.Error("cycle failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	// Daemon mode: record live ticks and run cycles on the schedule.
	recorder := exchange.NewRecorder(allocs.Books, sqlWriter, prom, log)
	go func() {
		if err := recorder.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("tick recorder stopped", slog.Any("error", err))
		}
	}()

	scheduler := cron.New(cron.WithLocation(loc))
	if _, err := scheduler.AddFunc(cfg.CronSchedule, func() {
		if _, err := mon.RunCycle(ctx); err != nil {
			log.Error("cycle failed", slog.Any("error", err))
		}
	}); err != nil {
		log.Error("invalid cron schedule", slog.String("schedule", cfg.CronSchedule), slog.Any("error", err))
		os.Exit(1)
	}
	// End-of-day summary just before the local rollover.
	if _, err := scheduler.AddFunc("55 23 * * *", func() {
		if err := mon.SendDailySummary(ctx); err != nil {
			log.Error("daily summary failed", slog.Any("error", err))
		}
	}); err != nil {
		log.Error("failed to schedule daily summary", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	log.Info("monitor running", slog.String("schedule", cfg.CronSchedule))

	<-sigCh
	log.Info("shutdown signal received")
	cancel()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		log.Warn("cron jobs did not finish before shutdown timeout")
	}
	log.Info("monitor stopped")
}
