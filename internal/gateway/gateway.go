// Package gateway provides a uniform buy/sell contract over interchangeable
// execution backends: a simulated fill model and a live exchange executor.
// The implementation is chosen at construction time, never per call.
package gateway

import (
	"context"
	"fmt"
)

// Request describes one buy or sell.
// For Buy, Amount is in quote asset units; for Sell, Amount is token quantity.
type Request struct {
	UserID         string
	TokenID        string
	Amount         float64
	ExpectedPrice  float64 // token USD price at decision time
	MaxSlippagePct float64
}

// Fill is a resolved execution. For Buy, FilledAmount is tokens received;
// for Sell, FilledAmount is net quote asset proceeds.
type Fill struct {
	FilledAmount  float64
	RealizedPrice float64 // token USD price actually paid/received
	Fee           float64 // platform fee in quote asset units
	TxRef         string
	PriceImpact   float64
}

// Gateway executes trades against one backend.
type Gateway interface {
	Buy(ctx context.Context, req Request) (Fill, error)
	Sell(ctx context.Context, req Request) (Fill, error)
}

// ExecError is a structured execution failure. It is always returned, never
// thrown silently; callers record the reason in the order ledger.
type ExecError struct {
	Op     string // "buy" or "sell"
	Reason string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("gateway %s failed: %s", e.Op, e.Reason)
}
