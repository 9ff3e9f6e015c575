package strategy

import (
	"context"
	"math"
	"testing"
	"time"

	"martingale-core/internal/gateway"
)

// fakeGateway scripts fills and records calls.
type fakeGateway struct {
	buyFill  gateway.Fill
	sellFill gateway.Fill
	buyErr   error
	sellErr  error

	buys  []gateway.Request
	sells []gateway.Request
}

func (f *fakeGateway) Buy(_ context.Context, req gateway.Request) (gateway.Fill, error) {
	f.buys = append(f.buys, req)
	if f.buyErr != nil {
		return gateway.Fill{}, f.buyErr
	}
	return f.buyFill, nil
}

func (f *fakeGateway) Sell(_ context.Context, req gateway.Request) (gateway.Fill, error) {
	f.sells = append(f.sells, req)
	if f.sellErr != nil {
		return gateway.Fill{}, f.sellErr
	}
	return f.sellFill, nil
}

// positioned builds an active strategy with the initial buy already booked:
// 0.1 quote gross, 0.001 fee, 14.85 tokens filled at price 1.0.
func positioned(kind Kind) *Strategy {
	s := &Strategy{
		ID:     "strat-1",
		UserID: "user-1",
		Config: Config{
			Kind:            kind,
			TokenID:         "TOKEN_A",
			InitialAmount:   0.1,
			DropPct:         5,
			Multiplier:      2,
			MaxLevels:       3,
			ProfitTargetPct: 10,
			MaxInvestment:   2.0,
		},
		Status:    StatusActive,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	s.Orders = append(s.Orders, Order{
		ID:              "init",
		Kind:            OrderInitial,
		RequestedAmount: 0.1,
		RequestedPrice:  1.0,
		Status:          OrderCompleted,
		FilledAmount:    14.85,
		RealizedPrice:   1.0,
		Fee:             0.001,
	})
	s.ApplyBuyFill(s.Orders[0])
	return s
}

func sampleAt(price float64) Sample {
	return Sample{TokenPrice: price, QuotePrice: 150, At: time.Now().UTC()}
}

func TestEvaluateIgnoresInactive(t *testing.T) {
	gw := &fakeGateway{}
	ev := &Evaluator{Gateway: gw}

	for _, st := range []Status{StatusPaused, StatusCompleted, StatusStopped, StatusFailed} {
		s := positioned(KindScaleIn)
		s.Status = st
		if changed := ev.Evaluate(context.Background(), s, sampleAt(0.5)); changed {
			t.Fatalf("%s strategy evaluated as changed", st)
		}
	}
	if len(gw.buys)+len(gw.sells) != 0 {
		t.Fatal("inactive strategy reached the gateway")
	}
}

func TestScaleInTriggersOnDrop(t *testing.T) {
	gw := &fakeGateway{buyFill: gateway.Fill{FilledAmount: 31.2, RealizedPrice: 0.949, Fee: 0.002, TxRef: "sim1"}}
	ev := &Evaluator{Gateway: gw}
	s := positioned(KindScaleIn)

	// 4.9% down from the last buy: below threshold, nothing happens.
	ev.Evaluate(context.Background(), s, sampleAt(0.951))
	if len(gw.buys) != 0 {
		t.Fatalf("buy fired below the drop threshold: %+v", gw.buys)
	}

	// 5.1% down: level 1 fires with doubled sizing.
	ev.Evaluate(context.Background(), s, sampleAt(0.949))
	if len(gw.buys) != 1 {
		t.Fatalf("expected 1 buy, got %d", len(gw.buys))
	}
	if math.Abs(gw.buys[0].Amount-0.2) > 1e-12 {
		t.Fatalf("level 1 amount=%v, expected 0.2", gw.buys[0].Amount)
	}
	if s.CurrentLevel != 1 {
		t.Fatalf("CurrentLevel=%d, expected 1", s.CurrentLevel)
	}
	if s.LastBuyPrice != 0.949 {
		t.Fatalf("LastBuyPrice=%v, expected the realized price 0.949", s.LastBuyPrice)
	}

	last := s.Orders[len(s.Orders)-1]
	if last.Kind != OrderScaleIn || last.Status != OrderCompleted || last.Level != 1 {
		t.Fatalf("unexpected ledger entry: %+v", last)
	}
}

func TestLadderedTriggersOnStandingLevels(t *testing.T) {
	gw := &fakeGateway{buyFill: gateway.Fill{FilledAmount: 31.0, RealizedPrice: 0.945, Fee: 0.002}}
	ev := &Evaluator{Gateway: gw}
	s := positioned(KindLaddered)

	// Level 1 sits at entry*(1-0.05)=0.95; 0.96 does not reach it.
	ev.Evaluate(context.Background(), s, sampleAt(0.96))
	if len(gw.buys) != 0 {
		t.Fatal("laddered buy fired above the level price")
	}

	ev.Evaluate(context.Background(), s, sampleAt(0.945))
	if len(gw.buys) != 1 {
		t.Fatalf("expected 1 buy at level price, got %d", len(gw.buys))
	}
	if s.CurrentLevel != 1 {
		t.Fatalf("CurrentLevel=%d, expected 1", s.CurrentLevel)
	}

	// Level 2 sits at 0.90; the same 0.945 price cannot re-trigger.
	ev.Evaluate(context.Background(), s, sampleAt(0.945))
	if len(gw.buys) != 1 {
		t.Fatal("level re-triggered at an unchanged price")
	}
}

func TestProfitTargetClosesPosition(t *testing.T) {
	gw := &fakeGateway{sellFill: gateway.Fill{FilledAmount: 0.1108, RealizedPrice: 1.12, Fee: 0.0011, TxRef: "sim2"}}
	ev := &Evaluator{Gateway: gw}
	s := positioned(KindScaleIn)

	// Value 14.85*1.12/150 = 0.11088 against 0.099 net: +12%, above the 10% target.
	ev.Evaluate(context.Background(), s, sampleAt(1.12))

	if len(gw.sells) != 1 {
		t.Fatalf("expected 1 sell, got %d", len(gw.sells))
	}
	if math.Abs(gw.sells[0].Amount-14.85) > 1e-9 {
		t.Fatalf("sell amount=%v, expected the full 14.85 tokens", gw.sells[0].Amount)
	}
	if s.Status != StatusCompleted {
		t.Fatalf("status=%s, expected completed", s.Status)
	}
	if s.TotalTokens != 0 {
		t.Fatalf("TotalTokens=%v after exit, expected 0", s.TotalTokens)
	}
	if s.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
	if s.StopReason != "profit_target" {
		t.Fatalf("StopReason=%q, expected profit_target", s.StopReason)
	}
}

func TestStopLossClosesPosition(t *testing.T) {
	gw := &fakeGateway{sellFill: gateway.Fill{FilledAmount: 0.068, RealizedPrice: 0.7, Fee: 0.0007}}
	ev := &Evaluator{Gateway: gw}
	s := positioned(KindScaleIn)
	s.Config.StopLossEnabled = true
	s.Config.StopLossPct = 20
	s.CurrentLevel = s.Config.MaxLevels // exclude the scale-in path

	// Value 14.85*0.7/150 = 0.0693 against 0.099 net: -30%, past the 20% stop.
	ev.Evaluate(context.Background(), s, sampleAt(0.7))

	if s.Status != StatusStopped {
		t.Fatalf("status=%s, expected stopped", s.Status)
	}
	if s.StopReason != "stop_loss" {
		t.Fatalf("StopReason=%q, expected stop_loss", s.StopReason)
	}
	if s.StoppedAt == nil {
		t.Fatal("StoppedAt not set")
	}
}

func TestFailedScaleInStaysActive(t *testing.T) {
	gw := &fakeGateway{buyErr: &gateway.ExecError{Op: "buy", Reason: "insufficient balance"}}
	ev := &Evaluator{Gateway: gw}
	s := positioned(KindScaleIn)

	ev.Evaluate(context.Background(), s, sampleAt(0.9))

	if s.Status != StatusActive {
		t.Fatalf("status=%s after failed scale-in, expected active", s.Status)
	}
	if s.CurrentLevel != 0 {
		t.Fatalf("CurrentLevel=%d, expected unchanged 0", s.CurrentLevel)
	}
	last := s.Orders[len(s.Orders)-1]
	if last.Kind != OrderScaleIn || last.Status != OrderFailed || last.Error == "" {
		t.Fatalf("failure not recorded in the ledger: %+v", last)
	}
	// Investment totals must not move on a failed order.
	if math.Abs(s.GrossInvested-0.1) > 1e-12 {
		t.Fatalf("GrossInvested=%v moved on failure", s.GrossInvested)
	}
}

func TestFailedExitRetriesNextTick(t *testing.T) {
	gw := &fakeGateway{sellErr: &gateway.ExecError{Op: "sell", Reason: "venue down"}}
	ev := &Evaluator{Gateway: gw}
	s := positioned(KindScaleIn)

	ev.Evaluate(context.Background(), s, sampleAt(1.12))

	if s.Status != StatusActive {
		t.Fatalf("status=%s after failed exit, expected active for retry", s.Status)
	}
	if s.TotalTokens != 14.85 {
		t.Fatalf("TotalTokens=%v, expected the position intact", s.TotalTokens)
	}
	last := s.Orders[len(s.Orders)-1]
	if last.Kind != OrderExit || last.Status != OrderFailed {
		t.Fatalf("failed exit not in the ledger: %+v", last)
	}

	// Trigger still true on the next tick: the sell is retried.
	gw.sellErr = nil
	gw.sellFill = gateway.Fill{FilledAmount: 0.1108, RealizedPrice: 1.12, Fee: 0.0011}
	ev.Evaluate(context.Background(), s, sampleAt(1.12))
	if s.Status != StatusCompleted {
		t.Fatalf("status=%s after retry, expected completed", s.Status)
	}
	if len(gw.sells) != 2 {
		t.Fatalf("expected 2 sell attempts, got %d", len(gw.sells))
	}
}

func TestMinExitAgeHoldsExitsNotBuys(t *testing.T) {
	gw := &fakeGateway{
		buyFill:  gateway.Fill{FilledAmount: 30, RealizedPrice: 0.9, Fee: 0.002},
		sellFill: gateway.Fill{FilledAmount: 0.15, RealizedPrice: 1.5, Fee: 0.0015},
	}
	ev := &Evaluator{Gateway: gw, MinExitAge: time.Hour}
	s := positioned(KindScaleIn)
	s.CreatedAt = time.Now().UTC() // too young for exits

	// +50%: far past the profit target, but the age gate holds the sell.
	ev.Evaluate(context.Background(), s, sampleAt(1.5))
	if len(gw.sells) != 0 {
		t.Fatal("exit fired before the minimum age elapsed")
	}
	if s.Status != StatusActive {
		t.Fatalf("status=%s, expected active", s.Status)
	}

	// Scale-in buys are not age-gated.
	ev.Evaluate(context.Background(), s, sampleAt(0.9))
	if len(gw.buys) != 1 {
		t.Fatal("scale-in blocked by the exit age gate")
	}
}

func TestCapitalCapBlocksScaleIn(t *testing.T) {
	gw := &fakeGateway{buyFill: gateway.Fill{FilledAmount: 30, RealizedPrice: 0.9}}
	ev := &Evaluator{Gateway: gw}
	s := positioned(KindScaleIn)
	s.Config.MaxInvestment = 0.25 // 0.1 spent, next level needs 0.2

	ev.Evaluate(context.Background(), s, sampleAt(0.9))
	if len(gw.buys) != 0 {
		t.Fatal("scale-in exceeded the investment cap")
	}
}

func TestMaxLevelsBlocksScaleIn(t *testing.T) {
	gw := &fakeGateway{buyFill: gateway.Fill{FilledAmount: 30, RealizedPrice: 0.9}}
	ev := &Evaluator{Gateway: gw}
	s := positioned(KindScaleIn)
	s.CurrentLevel = s.Config.MaxLevels

	ev.Evaluate(context.Background(), s, sampleAt(0.9))
	if len(gw.buys) != 0 {
		t.Fatal("scale-in fired past max levels")
	}
}
