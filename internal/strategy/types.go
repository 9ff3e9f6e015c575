// Package strategy holds the strategy record, its order ledger, configuration
// validation, and the per-tick trigger evaluation.
package strategy

import (
	"math"
	"time"
)

// Kind selects the trigger rule a strategy runs.
type Kind string

const (
	KindScaleIn  Kind = "scale_in_buy"
	KindLaddered Kind = "laddered"
)

// Status is the lifecycle state of a strategy.
// active <-> paused; active -> completed|stopped|failed are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further monitoring or trading may occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusFailed
}

// OrderKind classifies ledger entries.
type OrderKind string

const (
	OrderInitial OrderKind = "initial"
	OrderScaleIn OrderKind = "scale_in"
	OrderExit    OrderKind = "exit"
)

// OrderStatus is the resolution state of a ledger entry.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
)

// Config is the immutable configuration of a strategy.
type Config struct {
	Kind            Kind    `json:"kind"`
	TokenID         string  `json:"token_id"`
	InitialAmount   float64 `json:"initial_amount"` // quote asset units
	DropPct         float64 `json:"drop_pct"`       // (0, 50]
	Multiplier      float64 `json:"multiplier"`
	MaxLevels       int     `json:"max_levels"` // [1, 20]
	ProfitTargetPct float64 `json:"profit_target_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	StopLossEnabled bool    `json:"stop_loss_enabled"`
	MaxSlippagePct  float64 `json:"max_slippage_pct"`
	MaxInvestment   float64 `json:"max_investment"` // total capital cap
	LiveExecution   bool    `json:"live_execution"` // opt into real fills
}

// Order is one entry in the append-only order ledger. An entry is only
// mutated for its own pending -> resolved transition.
type Order struct {
	ID              string      `json:"id"`
	Level           int         `json:"level"`
	Kind            OrderKind   `json:"kind"`
	RequestedAmount float64     `json:"requested_amount"`
	RequestedPrice  float64     `json:"requested_price"`
	Timestamp       time.Time   `json:"timestamp"`
	Status          OrderStatus `json:"status"`

	// Resolution (set once)
	FilledAmount  float64 `json:"filled_amount,omitempty"`
	RealizedPrice float64 `json:"realized_price,omitempty"`
	Fee           float64 `json:"fee,omitempty"`
	TxRef         string  `json:"tx_ref,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Strategy is the central entity. Timestamp fields serialize as RFC 3339
// strings through encoding/json and rehydrate to time.Time on load.
type Strategy struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Config Config `json:"config"`

	Status        Status  `json:"status"`
	CurrentLevel  int     `json:"current_level"` // 0 = only the initial buy executed
	GrossInvested float64 `json:"gross_invested"`
	NetInvested   float64 `json:"net_invested"` // after fees, always <= gross
	TotalTokens   float64 `json:"total_tokens"`
	AvgBuyPrice   float64 `json:"avg_buy_price"` // volume-weighted over completed buys
	EntryPrice    float64 `json:"entry_price"`   // realized price of the initial buy
	LastBuyPrice  float64 `json:"last_buy_price"`
	HighestPrice  float64 `json:"highest_price"`
	LowestPrice   float64 `json:"lowest_price"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	StopReason  string     `json:"stop_reason,omitempty"`

	Orders []Order `json:"orders"`
}

// ScaleAmount is the cost of a scale-in buy at the given level:
// initialAmount * multiplier^level.
func (c Config) ScaleAmount(level int) float64 {
	return c.InitialAmount * math.Pow(c.Multiplier, float64(level))
}

// WorstCaseCapital is the finite geometric sum of every possible buy through
// maxLevels. Creation must fail when this exceeds the investment cap.
func (c Config) WorstCaseCapital() float64 {
	total := 0.0
	for i := 0; i <= c.MaxLevels; i++ {
		total += c.ScaleAmount(i)
	}
	return total
}

// ApplyBuyFill books a completed buy order into the running state: investment
// totals, volume-weighted average price, and the drop-trigger reference.
func (s *Strategy) ApplyBuyFill(o Order) {
	s.GrossInvested += o.RequestedAmount
	s.NetInvested += o.RequestedAmount - o.Fee
	if o.FilledAmount > 0 {
		prevTokens := s.TotalTokens
		s.TotalTokens += o.FilledAmount
		s.AvgBuyPrice = (s.AvgBuyPrice*prevTokens + o.RealizedPrice*o.FilledAmount) / s.TotalTokens
	}
	s.LastBuyPrice = o.RealizedPrice
	if o.Kind == OrderInitial {
		s.EntryPrice = o.RealizedPrice
	}
	s.UpdatedAt = time.Now().UTC()
}

// ObservePrice tracks the highest and lowest price seen while monitoring.
func (s *Strategy) ObservePrice(price float64) {
	if price > s.HighestPrice {
		s.HighestPrice = price
	}
	if s.LowestPrice == 0 || price < s.LowestPrice {
		s.LowestPrice = price
	}
}

// CurrentQuoteValue converts the held tokens into quote asset units.
func (s *Strategy) CurrentQuoteValue(tokenPrice, quotePrice float64) float64 {
	if quotePrice <= 0 {
		return 0
	}
	return s.TotalTokens * tokenPrice / quotePrice
}

// Clone returns a deep copy safe to hand to callers or the persistence
// writer while the original keeps mutating under the engine's locks.
func (s *Strategy) Clone() *Strategy {
	cp := *s
	cp.Orders = make([]Order, len(s.Orders))
	copy(cp.Orders, s.Orders)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	if s.StoppedAt != nil {
		t := *s.StoppedAt
		cp.StoppedAt = &t
	}
	return &cp
}

func (s *Strategy) markTerminal(status Status, reason string) {
	now := time.Now().UTC()
	s.Status = status
	s.UpdatedAt = now
	switch status {
	case StatusCompleted:
		s.CompletedAt = &now
	case StatusStopped, StatusFailed:
		s.StoppedAt = &now
	}
	s.StopReason = reason
}
