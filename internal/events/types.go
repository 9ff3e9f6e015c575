package events

// Event enumerates high-level topics inside the strategy engine.
type Event string

const (
	EventPriceSample      Event = "price_sample"
	EventStrategyCreated  Event = "strategy.created"
	EventStrategyPaused   Event = "strategy.paused"
	EventStrategyResumed  Event = "strategy.resumed"
	EventStrategyStopped  Event = "strategy.stopped"
	EventStrategyComplete Event = "strategy.completed"
	EventStrategyFailed   Event = "strategy.failed"
	EventTradeExecuted    Event = "trade.executed"
	EventTradeFailed      Event = "trade.failed"
)

// StrategyNotice is the payload published on strategy lifecycle topics.
type StrategyNotice struct {
	StrategyID string  `json:"strategy_id"`
	UserID     string  `json:"user_id"`
	TokenID    string  `json:"token_id"`
	Status     string  `json:"status"`
	Reason     string  `json:"reason,omitempty"`
	Level      int     `json:"level"`
	ProfitPct  float64 `json:"profit_pct,omitempty"`
}

// TradeNotice is the payload published on trade topics.
type TradeNotice struct {
	StrategyID string  `json:"strategy_id"`
	UserID     string  `json:"user_id"`
	TokenID    string  `json:"token_id"`
	Side       string  `json:"side"`
	Kind       string  `json:"kind"`
	Level      int     `json:"level"`
	Amount     float64 `json:"amount"`
	Price      float64 `json:"price"`
	Fee        float64 `json:"fee"`
	TxRef      string  `json:"tx_ref,omitempty"`
	Error      string  `json:"error,omitempty"`
}
