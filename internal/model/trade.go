package model

// Action is a discrete trade action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// TradeDecision is a bounded trade instruction produced by the decision
// engine. Only BUY/SELL decisions are emitted; HOLD never materializes.
type TradeDecision struct {
	Asset          string  `json:"asset"`
	Action         Action  `json:"action"`
	TradePercent   float64 `json:"trade_percent"` // percent of portfolio value
	TradeValue     float64 `json:"trade_value"`
	Price          float64 `json:"price"`
	Amount         float64 `json:"amount"`
	CurrentAlloc   float64 `json:"current_alloc"`
	TargetAlloc    float64 `json:"target_alloc"`
	CompositeScore float64 `json:"composite_score"`
	Reason         string  `json:"reason"`
	Timestamp      int64   `json:"timestamp"`
}

// TradeRecord is an executed (paper) trade as stored in the daily state.
type TradeRecord struct {
	ID             string  `json:"id"`
	Asset          string  `json:"asset"`
	Action         Action  `json:"action"`
	TradePercent   float64 `json:"trade_percent"`
	TradeValue     float64 `json:"trade_value"`
	Price          float64 `json:"price"`
	Amount         float64 `json:"amount"`
	CurrentAlloc   float64 `json:"current_alloc"`
	TargetAlloc    float64 `json:"target_alloc"`
	CompositeScore float64 `json:"composite_score"`
	Reason         string  `json:"reason"`
	Timestamp      int64   `json:"timestamp"`
	Status         string  `json:"status"` // FILLED
	ExecutedAt     int64   `json:"executed_at"`
	Type           string  `json:"type"` // PAPER_TRADE
}

// DailyState is the per-calendar-day trading state: executed trades, trade
// count, and the P&L baseline. Scoped to one local calendar day and one
// process; the cycle owns its lifecycle (load at start, save at end).
type DailyState struct {
	Date                string        `json:"date"` // YYYY-MM-DD in the configured timezone
	Trades              []TradeRecord `json:"trades"`
	TradeCount          int           `json:"trade_count"`
	StartPortfolioValue float64       `json:"start_portfolio_value"`
	RealizedPnL         float64       `json:"realized_pnl"`
	LastUpdated         int64         `json:"last_updated"`
}

// NewDailyState returns a fresh, empty state for the given day key.
func NewDailyState(date string) *DailyState {
	return &DailyState{
		Date:   date,
		Trades: make([]TradeRecord, 0, 8),
	}
}
