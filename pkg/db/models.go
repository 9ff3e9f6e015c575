package db

import "time"

// User represents an application user.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TradeRecord is one executed (or attempted) trade kept for history.
type TradeRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	StrategyID string    `json:"strategy_id"`
	TokenID    string    `json:"token_id"`
	Side       string    `json:"side"`
	Level      int       `json:"level"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"`
	Fee        float64   `json:"fee"`
	TxRef      string    `json:"tx_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// StrategyEvent is a lifecycle event kept for history.
type StrategyEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	StrategyID string    `json:"strategy_id"`
	EventType  string    `json:"event_type"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RevenueEntry is one platform fee booked as revenue.
type RevenueEntry struct {
	UserID    string    `json:"user_id"`
	FeeAmount float64   `json:"fee_amount"`
	CreatedAt time.Time `json:"created_at"`
}
