// Package config loads the monitor's configuration: environment variables
// for infrastructure and credentials, a JSON mode file for risk and
// indicator tuning, and a JSON allocations file for the tracked assets.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"cryptopaper/internal/exchange"
	"cryptopaper/internal/portfolio"
	"cryptopaper/internal/signal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Trading mode selects the JSON tuning file: config/<mode>.json.
	TradingMode string
	ConfigDir   string
	DataDir     string

	// Bitso credentials (optional; without them the portfolio is simulated)
	BitsoAPIKey    string
	BitsoAPISecret string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	JournalPath   string
	MetricsAddr   string

	// Notifications (optional)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Behavior
	EnableTrading bool   // paper trades execute only when true
	CronSchedule  string // empty runs a single cycle and exits
	Timezone      string // daily state day key timezone
	LookbackDays  int
	LogLevel      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		TradingMode: getEnv("TRADING_MODE", "conservative"),
		ConfigDir:   getEnv("CONFIG_DIR", "config"),
		DataDir:     getEnv("DATA_DIR", "data"),

		BitsoAPIKey:    getEnv("BITSO_API_KEY", ""),
		BitsoAPISecret: getEnv("BITSO_API_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/history.db"),
		JournalPath:   getEnv("JOURNAL_PATH", "data/journal.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		EnableTrading: getEnvBool("ENABLE_TRADING", false),
		CronSchedule:  getEnv("CRON_SCHEDULE", ""),
		Timezone:      getEnv("TZ", "America/Mexico_City"),
		LookbackDays:  getEnvInt("LOOKBACK_DAYS", 7),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// RiskConfig tunes the decision engine. Defaults match conservative mode.
type RiskConfig struct {
	MaxPositionSizePercent float64 `json:"maxPositionSizePercent" default:"30" validate:"gt=0,lte=100"`
	MinTradePercent        float64 `json:"minTradePercent" default:"1" validate:"gte=0"`
	MaxDailyTrades         int     `json:"maxDailyTrades" default:"5" validate:"gt=0"`
	MaxDailyLossPercent    float64 `json:"maxDailyLossPercent" default:"2" validate:"gt=0"`
	TakeProfitPercent      float64 `json:"takeProfitPercent" default:"5" validate:"gt=0"`
	StopLossPercent        float64 `json:"stopLossPercent" default:"3" validate:"gt=0"`
	AllocationWeight       float64 `json:"allocationWeight" default:"0.4" validate:"gte=0"`
	TechnicalWeight        float64 `json:"technicalWeight" default:"0.6" validate:"gte=0"`
}

// RiskParams converts the config into the engine's parameter struct.
func (r RiskConfig) RiskParams() portfolio.RiskParams {
	return portfolio.RiskParams{
		MaxPositionSizePercent: r.MaxPositionSizePercent,
		MinTradePercent:        r.MinTradePercent,
		MaxDailyTrades:         r.MaxDailyTrades,
		MaxDailyLossPercent:    r.MaxDailyLossPercent,
		TakeProfitPercent:      r.TakeProfitPercent,
		StopLossPercent:        r.StopLossPercent,
		AllocationWeight:       r.AllocationWeight,
		TechnicalWeight:        r.TechnicalWeight,
	}
}

// IndicatorConfig tunes the indicator periods.
type IndicatorConfig struct {
	SMAShort        int     `json:"smaShort" default:"6" validate:"gt=0"`
	SMAMedium       int     `json:"smaMedium" default:"12" validate:"gt=0"`
	SMALong         int     `json:"smaLong" default:"36" validate:"gt=0"`
	EMAFast         int     `json:"emaFast" default:"6" validate:"gt=0"`
	EMASlow         int     `json:"emaSlow" default:"12" validate:"gt=0"`
	RSI             int     `json:"rsi" default:"14" validate:"gt=1"`
	MACDFast        int     `json:"macdFast" default:"12" validate:"gt=0"`
	MACDSlow        int     `json:"macdSlow" default:"26" validate:"gt=0"`
	MACDSignal      int     `json:"macdSignal" default:"9" validate:"gt=0"`
	BollingerPeriod int     `json:"bollingerPeriod" default:"20" validate:"gt=1"`
	BollingerStdDev float64 `json:"bollingerStdDev" default:"2" validate:"gt=0"`
}

// Periods converts the config into the analyzer's period struct.
func (i IndicatorConfig) Periods() signal.Periods {
	return signal.Periods{
		SMAShort: i.SMAShort, SMAMedium: i.SMAMedium, SMALong: i.SMALong,
		EMAFast: i.EMAFast, EMASlow: i.EMASlow,
		RSI:      i.RSI,
		MACDFast: i.MACDFast, MACDSlow: i.MACDSlow, MACDSignal: i.MACDSignal,
		BollingerPeriod: i.BollingerPeriod, BollingerStdDev: i.BollingerStdDev,
	}
}

// ThresholdConfig tunes the score adjustment trigger levels.
type ThresholdConfig struct {
	RSIOversold           float64 `json:"rsiOversold" default:"30" validate:"gte=0,lte=100"`
	RSIOverbought         float64 `json:"rsiOverbought" default:"70" validate:"gte=0,lte=100"`
	BollingerUpperPercent float64 `json:"bollingerUpperPercent" default:"80" validate:"gte=0,lte=100"`
	BollingerLowerPercent float64 `json:"bollingerLowerPercent" default:"20" validate:"gte=0,lte=100"`
}

// Thresholds converts the config into the analyzer's threshold struct.
func (t ThresholdConfig) Thresholds() signal.Thresholds {
	return signal.Thresholds{
		RSIOversold:           t.RSIOversold,
		RSIOverbought:         t.RSIOverbought,
		BollingerUpperPercent: t.BollingerUpperPercent,
		BollingerLowerPercent: t.BollingerLowerPercent,
	}
}

// ModeConfig is one trading mode's tuning file, e.g. config/conservative.json.
type ModeConfig struct {
	Risk       RiskConfig      `json:"riskParams"`
	Indicators IndicatorConfig `json:"indicators"`
	Thresholds ThresholdConfig `json:"thresholds"`
}

// AllocationsConfig is the tracked-asset file, e.g. data/allocations.json.
type AllocationsConfig struct {
	// Target fractions per asset, each in [0,1].
	TargetAllocations map[string]float64 `json:"target_allocations" validate:"required,dive,gte=0,lte=1"`

	// Holdings used when no Bitso credentials are configured.
	SimulatedAmounts map[string]float64 `json:"simulated_amounts" validate:"dive,gte=0"`

	// Exchange symbol mapping per asset.
	Books []exchange.AssetBook `json:"books" validate:"required,min=1,dive"`
}

var validate = validator.New()

// LoadMode reads and validates the JSON tuning file for the configured mode.
// Missing fields fall back to conservative defaults.
func (c *Config) LoadMode() (*ModeConfig, error) {
	path := filepath.Join(c.ConfigDir, c.TradingMode+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mode config %s: %w", path, err)
	}

	// Defaults go in first so the file can set a field to its zero value;
	// setting defaults after parsing would overwrite explicit zeros.
	var mode ModeConfig
	if err := defaults.Set(&mode); err != nil {
		return nil, fmt.Errorf("apply mode defaults: %w", err)
	}
	if err := json.Unmarshal(data, &mode); err != nil {
		return nil, fmt.Errorf("parse mode config %s: %w", path, err)
	}
	if err := validate.Struct(&mode); err != nil {
		return nil, fmt.Errorf("invalid mode config %s: %w", path, err)
	}
	return &mode, nil
}

// LoadAllocations reads and validates the allocations file.
func (c *Config) LoadAllocations() (*AllocationsConfig, error) {
	path := filepath.Join(c.DataDir, "allocations.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allocations %s: %w", path, err)
	}

	var ac AllocationsConfig
	if err := json.Unmarshal(data, &ac); err != nil {
		return nil, fmt.Errorf("parse allocations %s: %w", path, err)
	}
	if err := validate.Struct(&ac); err != nil {
		return nil, fmt.Errorf("invalid allocations %s: %w", path, err)
	}

	total := 0.0
	for _, frac := range ac.TargetAllocations {
		total += frac
	}
	if total > 1.0000001 {
		return nil, fmt.Errorf("target allocations sum to %.4f, above 1", total)
	}
	return &ac, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
