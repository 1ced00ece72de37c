// Package redis caches latest prices and publishes cycle results for
// real-time subscribers. All calls route through a circuit breaker so a
// flapping Redis never stalls a trading cycle; the SQLite history remains
// the source of truth.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cryptopaper/internal/metrics"
	"cryptopaper/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const defaultLatestTTL = 5 * time.Minute

// WriterConfig configures the Redis cache.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // latest-price TTL, defaults to 5m

	// Metrics, when set, tracks breaker state changes and trips.
	Metrics *metrics.Metrics
}

// cachedPrice is the JSON shape stored under price:latest:<asset>.
type cachedPrice struct {
	Asset string  `json:"asset"`
	Price float64 `json:"price"`
	TS    int64   `json:"ts"`
}

// Writer caches latest prices and publishes decisions to pubsub channels.
type Writer struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	ttl     time.Duration
	log     *slog.Logger
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig, log *slog.Logger) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}

	breaker := NewCircuitBreaker(5, 10*time.Second)
	breaker.OnStateChange = func(from, to State) {
		log.Warn("redis circuit breaker state change",
			slog.String("from", from.String()),
			slog.String("to", to.String()))
		if cfg.Metrics != nil {
			cfg.Metrics.RedisBreakerState.Set(float64(to))
			if to == StateOpen {
				cfg.Metrics.RedisBreakerTrips.Inc()
			}
		}
	}

	log.Info("connected to redis", slog.String("addr", cfg.Addr))
	return &Writer{client: client, breaker: breaker, ttl: ttl, log: log}, nil
}

// SetLatestPrice caches one asset's latest price and publishes it for
// real-time subscribers.
func (w *Writer) SetLatestPrice(ctx context.Context, asset string, p model.PricePoint) error {
	data, err := json.Marshal(cachedPrice{Asset: asset, Price: p.Price, TS: p.TS})
	if err != nil {
		return err
	}
	return w.breaker.Execute(func() error {
		pipe := w.client.Pipeline()
		pipe.Set(ctx, "price:latest:"+asset, data, w.ttl)
		pipe.Publish(ctx, "pub:price:"+asset, data)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// SetLatestPrices caches a full price map in one pipeline roundtrip.
func (w *Writer) SetLatestPrices(ctx context.Context, prices map[string]float64, ts int64) error {
	if len(prices) == 0 {
		return nil
	}
	return w.breaker.Execute(func() error {
		pipe := w.client.Pipeline()
		for asset, price := range prices {
			data, err := json.Marshal(cachedPrice{Asset: asset, Price: price, TS: ts})
			if err != nil {
				return err
			}
			pipe.Set(ctx, "price:latest:"+asset, data, w.ttl)
			pipe.Publish(ctx, "pub:price:"+asset, data)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

// GetLatestPrice returns the cached price for an asset. The second return is
// false on a cache miss or expired key.
func (w *Writer) GetLatestPrice(ctx context.Context, asset string) (model.PricePoint, bool, error) {
	var out model.PricePoint
	found := false
	err := w.breaker.Execute(func() error {
		data, err := w.client.Get(ctx, "price:latest:"+asset).Bytes()
		if err != nil {
			if err == goredis.Nil {
				return nil
			}
			return err
		}
		var cp cachedPrice
		if err := json.Unmarshal(data, &cp); err != nil {
			return err
		}
		out = model.PricePoint{TS: cp.TS, Price: cp.Price}
		found = true
		return nil
	})
	return out, found, err
}

// PublishDecisions pushes the cycle's trade decisions to the decisions
// pubsub channel for dashboards. Best effort.
func (w *Writer) PublishDecisions(ctx context.Context, decisions []model.TradeDecision) {
	if len(decisions) == 0 {
		return
	}
	data, err := json.Marshal(decisions)
	if err != nil {
		return
	}
	if err := w.breaker.Execute(func() error {
		return w.client.Publish(ctx, "pub:decisions", data).Err()
	}); err != nil {
		w.log.Warn("publish decisions", slog.String("error", err.Error()))
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
