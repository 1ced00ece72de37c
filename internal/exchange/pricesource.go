// Package exchange fetches market prices and account balances for the
// monitor. Bitso's public ticker is the primary source with a Coinbase spot
// fallback per asset; fetched prices land in the Redis cache and the SQLite
// history so later cycles and backtests see the same series.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cryptopaper/internal/metrics"
	"cryptopaper/internal/model"
	"cryptopaper/internal/store/redis"
	"cryptopaper/internal/store/sqlite"
	"cryptopaper/pkg/bitso"
)

const coinbaseSpotURL = "https://api.coinbase.com/v2/prices/%s-USD/spot"

// AssetBook maps a tracked asset to its exchange symbols.
type AssetBook struct {
	Asset         string `json:"asset"`          // e.g. "BTC"
	BitsoBook     string `json:"bitso_book"`     // e.g. "btc_mxn", empty to skip Bitso
	CoinbaseAsset string `json:"coinbase_asset"` // e.g. "BTC", empty to skip fallback
}

// PriceSource fetches latest prices with caching and history persistence.
type PriceSource struct {
	books       []AssetBook
	bitso       *bitso.Client
	httpClient  *http.Client
	cache       *redis.Writer  // optional
	history     *sqlite.Writer // optional
	metrics     *metrics.Metrics
	cacheMaxAge time.Duration
	log         *slog.Logger
}

// PriceSourceConfig wires a PriceSource. Cache and History may be nil.
type PriceSourceConfig struct {
	Books       []AssetBook
	Bitso       *bitso.Client
	Cache       *redis.Writer
	History     *sqlite.Writer
	Metrics     *metrics.Metrics
	CacheMaxAge time.Duration // reuse cached prices younger than this, default 30s
	Log         *slog.Logger
}

// NewPriceSource creates a price source for the configured books.
func NewPriceSource(cfg PriceSourceConfig) *PriceSource {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	maxAge := cfg.CacheMaxAge
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &PriceSource{
		books:       cfg.Books,
		bitso:       cfg.Bitso,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		cache:       cfg.Cache,
		history:     cfg.History,
		metrics:     cfg.Metrics,
		cacheMaxAge: maxAge,
		log:         log,
	}
}

// FetchAll returns the latest price per asset. Assets whose every source
// failed are absent from the map; the caller decides whether a partial
// cycle is worth running.
func (s *PriceSource) FetchAll(ctx context.Context) map[string]float64 {
	prices := make(map[string]float64, len(s.books))
	now := time.Now().UnixMilli()

	for _, book := range s.books {
		price, source, err := s.fetchOne(ctx, book)
		if err != nil {
			s.log.Error("price fetch failed",
				slog.String("asset", book.Asset),
				slog.String("error", err.Error()))
			continue
		}
		prices[book.Asset] = price
		s.log.Debug("price fetched",
			slog.String("asset", book.Asset),
			slog.Float64("price", price),
			slog.String("source", source))

		if s.metrics != nil {
			s.metrics.PricesFetched.Inc()
		}
		if s.history != nil && source != "cache" {
			if err := s.history.AppendPrice(ctx, book.Asset, model.PricePoint{TS: now, Price: price}); err != nil {
				s.log.Warn("price history append failed",
					slog.String("asset", book.Asset),
					slog.String("error", err.Error()))
			}
		}
	}

	if s.cache != nil && len(prices) > 0 {
		if err := s.cache.SetLatestPrices(ctx, prices, now); err != nil {
			s.log.Warn("price cache write failed", slog.String("error", err.Error()))
		}
	}
	return prices
}

// fetchOne tries the cache, then Bitso, then Coinbase.
func (s *PriceSource) fetchOne(ctx context.Context, book AssetBook) (float64, string, error) {
	if s.cache != nil {
		if p, ok, err := s.cache.GetLatestPrice(ctx, book.Asset); err == nil && ok {
			if time.Since(time.UnixMilli(p.TS)) < s.cacheMaxAge {
				return p.Price, "cache", nil
			}
		}
	}

	var lastErr error
	if book.BitsoBook != "" && s.bitso != nil {
		t, err := s.bitso.Ticker(ctx, book.BitsoBook)
		if err == nil {
			return t.Last, "bitso", nil
		}
		lastErr = err
		if s.metrics != nil {
			s.metrics.FetchErrors.WithLabelValues("bitso").Inc()
		}
	}

	if book.CoinbaseAsset != "" {
		price, err := s.coinbaseSpot(ctx, book.CoinbaseAsset)
		if err == nil {
			return price, "coinbase", nil
		}
		lastErr = err
		if s.metrics != nil {
			s.metrics.FetchErrors.WithLabelValues("coinbase").Inc()
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no price source configured for %s", book.Asset)
	}
	return 0, "", lastErr
}

// coinbaseSpot fetches the USD spot price from Coinbase's public API.
func (s *PriceSource) coinbaseSpot(ctx context.Context, asset string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(coinbaseSpotURL, asset), nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coinbase spot %s: status %d", asset, resp.StatusCode)
	}

	var body struct {
		Data struct {
			Amount float64 `json:"amount,string"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Data.Amount, nil
}
