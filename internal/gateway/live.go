package gateway

import (
	"context"

	"martingale-core/internal/fees"
)

// TradeParams is what the external exchange executor consumes.
type TradeParams struct {
	TokenID        string
	Amount         float64
	MaxSlippagePct float64
}

// ExecResult is what the external exchange executor returns on success.
type ExecResult struct {
	FilledAmount  float64
	RealizedPrice float64
	TxRef         string
	PriceImpact   float64
}

// ExchangeExecutor is the external collaborator that places real orders.
type ExchangeExecutor interface {
	ExecuteBuy(ctx context.Context, userID string, p TradeParams) (*ExecResult, error)
	ExecuteSell(ctx context.Context, userID string, p TradeParams) (*ExecResult, error)
}

// Live routes orders to a real exchange executor. The platform fee is taken
// off the gross amount before the executor sees it, same as the simulated path.
type Live struct {
	ledger *fees.Ledger
	exec   ExchangeExecutor
}

func NewLive(ledger *fees.Ledger, exec ExchangeExecutor) *Live {
	return &Live{ledger: ledger, exec: exec}
}

func (l *Live) Buy(ctx context.Context, req Request) (Fill, error) {
	bd, err := l.ledger.Calculate(req.Amount)
	if err != nil {
		return Fill{}, &ExecError{Op: "buy", Reason: err.Error()}
	}
	l.ledger.Record(ctx, req.UserID, bd.FeeAmount)

	res, err := l.exec.ExecuteBuy(ctx, req.UserID, TradeParams{
		TokenID:        req.TokenID,
		Amount:         bd.NetAmount,
		MaxSlippagePct: req.MaxSlippagePct,
	})
	if err != nil {
		return Fill{}, &ExecError{Op: "buy", Reason: err.Error()}
	}

	return Fill{
		FilledAmount:  res.FilledAmount,
		RealizedPrice: res.RealizedPrice,
		Fee:           bd.FeeAmount,
		TxRef:         res.TxRef,
		PriceImpact:   res.PriceImpact,
	}, nil
}

func (l *Live) Sell(ctx context.Context, req Request) (Fill, error) {
	res, err := l.exec.ExecuteSell(ctx, req.UserID, TradeParams{
		TokenID:        req.TokenID,
		Amount:         req.Amount,
		MaxSlippagePct: req.MaxSlippagePct,
	})
	if err != nil {
		return Fill{}, &ExecError{Op: "sell", Reason: err.Error()}
	}

	// Fee applies to the realized proceeds on the sell side.
	bd, ferr := l.ledger.Calculate(res.FilledAmount)
	if ferr != nil {
		return Fill{}, &ExecError{Op: "sell", Reason: ferr.Error()}
	}
	l.ledger.Record(ctx, req.UserID, bd.FeeAmount)

	return Fill{
		FilledAmount:  bd.NetAmount,
		RealizedPrice: res.RealizedPrice,
		Fee:           bd.FeeAmount,
		TxRef:         res.TxRef,
		PriceImpact:   res.PriceImpact,
	}, nil
}
