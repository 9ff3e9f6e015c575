package gateway

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"martingale-core/internal/fees"
	"martingale-core/internal/oracle"
)

// Simulated fills orders against oracle prices with a small bounded random
// slippage. Used for strategies not opted into live execution.
type Simulated struct {
	ledger      *fees.Ledger
	prices      oracle.Oracle
	slippageBps float64
	rng         *rand.Rand
}

// NewSimulated builds the simulated backend. slippageBps bounds the random
// price perturbation applied to fills.
func NewSimulated(ledger *fees.Ledger, prices oracle.Oracle, slippageBps float64) *Simulated {
	if slippageBps < 0 {
		slippageBps = 0
	}
	return &Simulated{
		ledger:      ledger,
		prices:      prices,
		slippageBps: slippageBps,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Simulated) Buy(ctx context.Context, req Request) (Fill, error) {
	if req.Amount <= 0 {
		return Fill{}, &ExecError{Op: "buy", Reason: "amount must be positive"}
	}

	// Fee comes off the gross amount first; only the net sizes the trade.
	bd, err := s.ledger.Calculate(req.Amount)
	if err != nil {
		return Fill{}, &ExecError{Op: "buy", Reason: err.Error()}
	}
	s.ledger.Record(ctx, req.UserID, bd.FeeAmount)

	price, slip := s.perturb(req.ExpectedPrice, req.MaxSlippagePct, true)

	quoteUSD, err := s.prices.GetQuoteAssetPrice(ctx)
	if err != nil {
		return Fill{}, &ExecError{Op: "buy", Reason: err.Error()}
	}

	tokens := bd.NetAmount * quoteUSD / price
	return Fill{
		FilledAmount:  tokens,
		RealizedPrice: price,
		Fee:           bd.FeeAmount,
		TxRef:         simTxRef(),
		PriceImpact:   slip * 100,
	}, nil
}

func (s *Simulated) Sell(ctx context.Context, req Request) (Fill, error) {
	if req.Amount <= 0 {
		return Fill{}, &ExecError{Op: "sell", Reason: "amount must be positive"}
	}

	price, slip := s.perturb(req.ExpectedPrice, req.MaxSlippagePct, false)

	quoteUSD, err := s.prices.GetQuoteAssetPrice(ctx)
	if err != nil {
		return Fill{}, &ExecError{Op: "sell", Reason: err.Error()}
	}

	grossQuote := req.Amount * price / quoteUSD
	bd, err := s.ledger.Calculate(grossQuote)
	if err != nil {
		return Fill{}, &ExecError{Op: "sell", Reason: err.Error()}
	}
	s.ledger.Record(ctx, req.UserID, bd.FeeAmount)

	return Fill{
		FilledAmount:  bd.NetAmount,
		RealizedPrice: price,
		Fee:           bd.FeeAmount,
		TxRef:         simTxRef(),
		PriceImpact:   slip * 100,
	}, nil
}

// perturb applies random slippage against the trade direction, capped by the
// request tolerance when it is tighter than the configured bound.
func (s *Simulated) perturb(expected, maxSlippagePct float64, isBuy bool) (price, slip float64) {
	bound := s.slippageBps / 10000.0
	if maxSlippagePct > 0 && maxSlippagePct/100 < bound {
		bound = maxSlippagePct / 100
	}
	slip = s.rng.Float64() * bound
	if isBuy {
		price = expected * (1 + slip)
	} else {
		price = expected * (1 - slip)
	}
	if price <= 0 {
		price = expected
	}
	return price, slip
}

func simTxRef() string {
	return "sim" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
