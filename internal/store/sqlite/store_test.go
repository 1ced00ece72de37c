package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cryptopaper/internal/model"
)

func openTestStore(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")

	w, err := New(WriterConfig{DBPath: path}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	r, err := NewReader(path, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return w, r
}

func TestPriceHistory_RoundTrip(t *testing.T) {
	w, r := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	points := []model.PricePoint{
		{TS: now - 2000, Price: 100},
		{TS: now - 1000, Price: 101},
		{TS: now, Price: 99.5},
	}
	if err := w.AppendPrices(ctx, "BTC", points); err != nil {
		t.Fatalf("AppendPrices: %v", err)
	}

	series, err := r.LoadPriceSeries(ctx, "BTC", 7)
	if err != nil {
		t.Fatalf("LoadPriceSeries: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}
	for i := 1; i < len(series); i++ {
		if series[i].TS < series[i-1].TS {
			t.Errorf("series not ascending at %d", i)
		}
	}
	if series[2].Price != 99.5 {
		t.Errorf("last price = %v, want 99.5", series[2].Price)
	}
}

func TestPriceHistory_DuplicateTimestampsKept(t *testing.T) {
	w, r := openTestStore(t)
	ctx := context.Background()

	// Two cycles in the same millisecond must both count as data points.
	ts := time.Now().UnixMilli()
	if err := w.AppendPrice(ctx, "SOL", model.PricePoint{TS: ts, Price: 3500}); err != nil {
		t.Fatalf("AppendPrice: %v", err)
	}
	if err := w.AppendPrice(ctx, "SOL", model.PricePoint{TS: ts, Price: 3501}); err != nil {
		t.Fatalf("AppendPrice: %v", err)
	}

	series, err := r.LoadPriceSeries(ctx, "SOL", 1)
	if err != nil {
		t.Fatalf("LoadPriceSeries: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series length = %d, want 2", len(series))
	}
	if series[0].Price != 3500 || series[1].Price != 3501 {
		t.Errorf("insertion order lost: %+v", series)
	}
}

func TestPriceHistory_UnknownAssetEmpty(t *testing.T) {
	_, r := openTestStore(t)

	series, err := r.LoadPriceSeries(context.Background(), "DOGE", 7)
	if err != nil {
		t.Fatalf("LoadPriceSeries: %v", err)
	}
	if len(series) != 0 {
		t.Errorf("series length = %d, want 0", len(series))
	}
}

func TestPriceHistory_LookbackWindow(t *testing.T) {
	w, r := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	old := model.PricePoint{TS: now.AddDate(0, 0, -10).UnixMilli(), Price: 90}
	recent := model.PricePoint{TS: now.UnixMilli(), Price: 100}
	if err := w.AppendPrices(ctx, "ETH", []model.PricePoint{old, recent}); err != nil {
		t.Fatalf("AppendPrices: %v", err)
	}

	series, err := r.LoadPriceSeries(ctx, "ETH", 7)
	if err != nil {
		t.Fatalf("LoadPriceSeries: %v", err)
	}
	if len(series) != 1 || series[0].Price != 100 {
		t.Errorf("lookback filter failed: %+v", series)
	}
}

func TestDailyState_RoundTrip(t *testing.T) {
	w, r := openTestStore(t)
	ctx := context.Background()

	state := model.NewDailyState("2026-08-31")
	state.TradeCount = 2
	state.StartPortfolioValue = 100000
	state.Trades = append(state.Trades, model.TradeRecord{
		ID: "trade_1_BTC", Asset: "BTC", Action: model.ActionBuy,
		Amount: 0.01, Price: 1186330, Status: "FILLED", Type: "PAPER_TRADE",
	})

	if err := w.SaveDailyState(ctx, state); err != nil {
		t.Fatalf("SaveDailyState: %v", err)
	}

	got, err := r.LoadDailyState(ctx, "2026-08-31")
	if err != nil {
		t.Fatalf("LoadDailyState: %v", err)
	}
	if got.TradeCount != 2 || got.StartPortfolioValue != 100000 {
		t.Errorf("state = %+v", got)
	}
	if len(got.Trades) != 1 || got.Trades[0].ID != "trade_1_BTC" {
		t.Errorf("trades = %+v", got.Trades)
	}

	// Saving again must replace, not duplicate.
	state.TradeCount = 3
	if err := w.SaveDailyState(ctx, state); err != nil {
		t.Fatalf("SaveDailyState: %v", err)
	}
	got, err = r.LoadDailyState(ctx, "2026-08-31")
	if err != nil {
		t.Fatalf("LoadDailyState: %v", err)
	}
	if got.TradeCount != 3 {
		t.Errorf("trade count = %d, want 3", got.TradeCount)
	}
}

func TestDailyState_MissingDayIsFresh(t *testing.T) {
	_, r := openTestStore(t)

	got, err := r.LoadDailyState(context.Background(), "2026-09-01")
	if err != nil {
		t.Fatalf("LoadDailyState: %v", err)
	}
	if got.Date != "2026-09-01" {
		t.Errorf("date = %q", got.Date)
	}
	if got.TradeCount != 0 || len(got.Trades) != 0 || got.StartPortfolioValue != 0 {
		t.Errorf("fresh state not empty: %+v", got)
	}
}

func TestSnapshot_LatestWins(t *testing.T) {
	w, r := openTestStore(t)
	ctx := context.Background()

	first := model.NewPortfolio(map[string]float64{"BTC": 0.05}, map[string]float64{"BTC": 1000000})
	second := model.NewPortfolio(map[string]float64{"BTC": 0.06}, map[string]float64{"BTC": 1100000})

	if err := w.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := w.SaveSnapshot(ctx, second); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := r.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got == nil {
		t.Fatal("no snapshot returned")
	}
	if got.Assets["BTC"].Amount != 0.06 {
		t.Errorf("latest snapshot amount = %v, want 0.06", got.Assets["BTC"].Amount)
	}
}

func TestSnapshot_NoneIsNil(t *testing.T) {
	_, r := openTestStore(t)

	got, err := r.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got != nil {
		t.Errorf("snapshot = %+v, want nil", got)
	}
}

func TestPrunePrices(t *testing.T) {
	w, r := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	if err := w.AppendPrices(ctx, "BTC", []model.PricePoint{
		{TS: now.AddDate(0, 0, -40).UnixMilli(), Price: 90},
		{TS: now.UnixMilli(), Price: 100},
	}); err != nil {
		t.Fatalf("AppendPrices: %v", err)
	}

	n, err := w.PrunePrices(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PrunePrices: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	series, err := r.LoadPriceSeries(ctx, "BTC", 60)
	if err != nil {
		t.Fatalf("LoadPriceSeries: %v", err)
	}
	if len(series) != 1 || series[0].Price != 100 {
		t.Errorf("remaining series = %+v", series)
	}
}
