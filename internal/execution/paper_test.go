package execution

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"cryptopaper/internal/model"
)

func testPortfolio() *model.Portfolio {
	return model.NewPortfolio(
		map[string]float64{"BTC": 0.05, "USDC": 40000},
		map[string]float64{"BTC": 1186330, "USDC": 1},
	)
}

func buyDecision(asset string, amount, price float64) model.TradeDecision {
	return model.TradeDecision{
		Asset:        asset,
		Action:       model.ActionBuy,
		Amount:       amount,
		Price:        price,
		TradeValue:   amount * price,
		TradePercent: 1,
		Reason:       "test",
		Timestamp:    time.Now().UnixMilli(),
	}
}

func TestExecuteTrades_BuyAdjustsHoldingAndTotal(t *testing.T) {
	pf := testPortfolio()
	state := model.NewDailyState("2026-08-31")
	e := NewPaperExecutor(5, nil, nil)

	d := buyDecision("BTC", 0.01, 1186330)
	executed, err := e.ExecuteTrades(context.Background(), []model.TradeDecision{d}, pf, state)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if len(executed) != 1 {
		t.Fatalf("executed = %d, want 1", len(executed))
	}

	h := pf.Assets["BTC"]
	if math.Abs(h.Amount-0.06) > 1e-12 {
		t.Errorf("BTC amount = %v, want 0.06", h.Amount)
	}

	// Total is always the exact sum of amount*price.
	want := 0.06*1186330 + 40000*1
	if math.Abs(pf.TotalValue-want) > 1e-6 {
		t.Errorf("total = %v, want %v", pf.TotalValue, want)
	}

	rec := executed[0]
	if rec.Status != "FILLED" || rec.Type != "PAPER_TRADE" {
		t.Errorf("record status/type = %s/%s", rec.Status, rec.Type)
	}
	if rec.Asset != "BTC" || rec.Action != model.ActionBuy {
		t.Errorf("record = %+v", rec)
	}
	if state.TradeCount != 1 || len(state.Trades) != 1 {
		t.Errorf("state count = %d, trades = %d", state.TradeCount, len(state.Trades))
	}
}

func TestExecuteTrades_SellReducesHolding(t *testing.T) {
	pf := testPortfolio()
	state := model.NewDailyState("2026-08-31")
	e := NewPaperExecutor(5, nil, nil)

	d := model.TradeDecision{
		Asset: "BTC", Action: model.ActionSell,
		Amount: 0.02, Price: 1200000, TradeValue: 24000,
	}
	if _, err := e.ExecuteTrades(context.Background(), []model.TradeDecision{d}, pf, state); err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}

	h := pf.Assets["BTC"]
	if math.Abs(h.Amount-0.03) > 1e-12 {
		t.Errorf("BTC amount = %v, want 0.03", h.Amount)
	}
	// Fill reprices the holding at the execution price.
	if h.Price != 1200000 {
		t.Errorf("BTC price = %v, want 1200000", h.Price)
	}
}

func TestExecuteTrades_BuyCreatesMissingHolding(t *testing.T) {
	pf := testPortfolio()
	state := model.NewDailyState("2026-08-31")
	e := NewPaperExecutor(5, nil, nil)

	d := buyDecision("SOL", 10, 3500)
	if _, err := e.ExecuteTrades(context.Background(), []model.TradeDecision{d}, pf, state); err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	h, ok := pf.Assets["SOL"]
	if !ok {
		t.Fatal("SOL holding not created")
	}
	if h.Amount != 10 || h.Price != 3500 {
		t.Errorf("SOL holding = %+v", h)
	}
}

func TestExecuteTrades_CapSkipsMidBatch(t *testing.T) {
	pf := testPortfolio()
	state := model.NewDailyState("2026-08-31")
	state.TradeCount = 4 // one slot left of 5
	e := NewPaperExecutor(5, nil, nil)

	batch := []model.TradeDecision{
		buyDecision("BTC", 0.01, 1186330),
		buyDecision("SOL", 5, 3500),
		buyDecision("ETH", 0.1, 40000),
	}
	executed, err := e.ExecuteTrades(context.Background(), batch, pf, state)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if len(executed) != 1 {
		t.Fatalf("executed = %d, want 1", len(executed))
	}
	if executed[0].Asset != "BTC" {
		t.Errorf("wrong trade executed: %s", executed[0].Asset)
	}
	if state.TradeCount != 5 {
		t.Errorf("trade count = %d, want 5", state.TradeCount)
	}
	if _, ok := pf.Assets["SOL"]; ok {
		t.Error("skipped trade still touched the portfolio")
	}
}

func TestExecuteTrades_StartValueCapturedOnFirstBatch(t *testing.T) {
	pf := testPortfolio()
	state := model.NewDailyState("2026-08-31")
	e := NewPaperExecutor(5, nil, nil)

	batch := []model.TradeDecision{buyDecision("BTC", 0.01, 1186330)}
	if _, err := e.ExecuteTrades(context.Background(), batch, pf, state); err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if state.StartPortfolioValue != pf.TotalValue {
		t.Errorf("start value = %v, want %v", state.StartPortfolioValue, pf.TotalValue)
	}
	first := state.StartPortfolioValue

	// A later batch the same day must not move the baseline.
	if _, err := e.ExecuteTrades(context.Background(), batch, pf, state); err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if state.StartPortfolioValue != first {
		t.Errorf("baseline moved: %v -> %v", first, state.StartPortfolioValue)
	}
}

func TestExecuteTrades_EmptyBatch(t *testing.T) {
	pf := testPortfolio()
	state := model.NewDailyState("2026-08-31")
	e := NewPaperExecutor(5, nil, nil)

	executed, err := e.ExecuteTrades(context.Background(), nil, pf, state)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if len(executed) != 0 || state.TradeCount != 0 {
		t.Errorf("empty batch side effects: executed=%d count=%d", len(executed), state.TradeCount)
	}
	if state.StartPortfolioValue != 0 {
		t.Errorf("baseline set without trades: %v", state.StartPortfolioValue)
	}
}

func TestJournal_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewJournal(path, nil)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	defer j.Close()

	pf := testPortfolio()
	state := model.NewDailyState("2026-08-31")
	e := NewPaperExecutor(5, j, nil)

	batch := []model.TradeDecision{
		buyDecision("BTC", 0.01, 1186330),
		buyDecision("SOL", 5, 3500),
	}
	if _, err := e.ExecuteTrades(context.Background(), batch, pf, state); err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}

	rows, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("journal rows = %d, want 2", len(rows))
	}
	// Newest first.
	if rows[0].Asset != "SOL" || rows[1].Asset != "BTC" {
		t.Errorf("order = [%s, %s], want [SOL, BTC]", rows[0].Asset, rows[1].Asset)
	}
	if rows[1].Amount != 0.01 || rows[1].Price != 1186330 {
		t.Errorf("BTC row = %+v", rows[1])
	}
}
