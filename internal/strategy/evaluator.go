package strategy

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"martingale-core/internal/events"
	"martingale-core/internal/gateway"
)

// Sample is one fresh price observation handed to the evaluator.
type Sample struct {
	TokenPrice float64 // token USD price
	QuotePrice float64 // quote asset USD price
	At         time.Time
}

// Evaluator applies the trigger state machine to a strategy record.
//
// Checks run in a fixed order on every sample: profit target, scale-in,
// stop-loss. Profit is checked before committing additional capital; stop-loss
// runs last so a scale-in that improves the average price can avert an
// unnecessary stop in the same tick. Profit and stop-loss are mutually
// exclusive per tick: whichever fires first zeroes the position.
type Evaluator struct {
	Gateway    gateway.Gateway
	Bus        *events.Bus
	MinExitAge time.Duration // exit checks are inert before this has elapsed
}

// Evaluate runs one tick for an active strategy. It mutates the record in
// place and reports whether anything changed and needs persisting.
func (ev *Evaluator) Evaluate(ctx context.Context, s *Strategy, sample Sample) bool {
	if s.Status != StatusActive {
		return false
	}

	s.ObservePrice(sample.TokenPrice)
	changed := true // price extremes were just updated

	exitable := time.Since(s.CreatedAt) >= ev.MinExitAge

	// 1. Profit target.
	if exitable && s.NetInvested > 0 && s.TotalTokens > 0 {
		value := s.CurrentQuoteValue(sample.TokenPrice, sample.QuotePrice)
		profitPct := (value - s.NetInvested) / s.NetInvested * 100
		if profitPct >= s.Config.ProfitTargetPct {
			ev.closePosition(ctx, s, sample, StatusCompleted, "profit_target", profitPct)
			return true
		}
	}

	// 2. Scale-in trigger.
	if ev.shouldBuy(s, sample.TokenPrice) {
		ev.scaleIn(ctx, s, sample)
		changed = true
	}

	// 3. Stop-loss.
	if exitable && s.Config.StopLossEnabled && s.NetInvested > 0 && s.TotalTokens > 0 {
		value := s.CurrentQuoteValue(sample.TokenPrice, sample.QuotePrice)
		lossPct := (s.NetInvested - value) / s.NetInvested * 100
		if lossPct >= s.Config.StopLossPct {
			ev.closePosition(ctx, s, sample, StatusStopped, "stop_loss", -lossPct)
			return true
		}
	}

	return changed
}

// shouldBuy decides whether the next buy level fires on this sample.
func (ev *Evaluator) shouldBuy(s *Strategy, price float64) bool {
	if s.CurrentLevel >= s.Config.MaxLevels {
		return false
	}

	nextCost := s.Config.ScaleAmount(s.CurrentLevel + 1)
	if s.GrossInvested+nextCost > s.Config.MaxInvestment {
		return false
	}

	switch s.Config.Kind {
	case KindLaddered:
		// Standing levels below entry: level L sits at entry*(1 - L*drop/100).
		if s.EntryPrice <= 0 {
			return false
		}
		levelPrice := s.EntryPrice * (1 - float64(s.CurrentLevel+1)*s.Config.DropPct/100)
		return levelPrice > 0 && price <= levelPrice
	default:
		// Scale-in: percentage drop from the last buy price.
		if s.LastBuyPrice <= 0 {
			return false
		}
		dropPct := (s.LastBuyPrice - price) / s.LastBuyPrice * 100
		return dropPct >= s.Config.DropPct
	}
}

// scaleIn executes the next-level buy. An execution failure is recorded as a
// failed order but leaves the strategy active; it retries on a later signal.
func (ev *Evaluator) scaleIn(ctx context.Context, s *Strategy, sample Sample) {
	level := s.CurrentLevel + 1
	amount := s.Config.ScaleAmount(level)

	o := Order{
		ID:              uuid.NewString(),
		Level:           level,
		Kind:            OrderScaleIn,
		RequestedAmount: amount,
		RequestedPrice:  sample.TokenPrice,
		Timestamp:       time.Now().UTC(),
		Status:          OrderPending,
	}
	s.Orders = append(s.Orders, o)
	idx := len(s.Orders) - 1

	fill, err := ev.Gateway.Buy(ctx, gateway.Request{
		UserID:         s.UserID,
		TokenID:        s.Config.TokenID,
		Amount:         amount,
		ExpectedPrice:  sample.TokenPrice,
		MaxSlippagePct: s.Config.MaxSlippagePct,
	})
	if err != nil {
		s.Orders[idx].Status = OrderFailed
		s.Orders[idx].Error = err.Error()
		s.UpdatedAt = time.Now().UTC()
		log.Printf("strategy %s: level %d buy failed: %v", s.ID, level, err)
		ev.publishTrade(s, s.Orders[idx])
		return
	}

	s.Orders[idx].Status = OrderCompleted
	s.Orders[idx].FilledAmount = fill.FilledAmount
	s.Orders[idx].RealizedPrice = fill.RealizedPrice
	s.Orders[idx].Fee = fill.Fee
	s.Orders[idx].TxRef = fill.TxRef
	s.ApplyBuyFill(s.Orders[idx])
	s.CurrentLevel = level

	log.Printf("strategy %s: level %d buy filled, amount=%.6f price=%.8f avg=%.8f",
		s.ID, level, amount, fill.RealizedPrice, s.AvgBuyPrice)
	ev.publishTrade(s, s.Orders[idx])
}

// closePosition sells the whole position and moves the strategy to a terminal
// status. A failed exit sell leaves the strategy active with the failure in
// the ledger; the still-true trigger retries on the next tick.
func (ev *Evaluator) closePosition(ctx context.Context, s *Strategy, sample Sample, status Status, reason string, profitPct float64) {
	o := Order{
		ID:              uuid.NewString(),
		Level:           s.CurrentLevel,
		Kind:            OrderExit,
		RequestedAmount: s.TotalTokens,
		RequestedPrice:  sample.TokenPrice,
		Timestamp:       time.Now().UTC(),
		Status:          OrderPending,
	}
	s.Orders = append(s.Orders, o)
	idx := len(s.Orders) - 1

	fill, err := ev.Gateway.Sell(ctx, gateway.Request{
		UserID:         s.UserID,
		TokenID:        s.Config.TokenID,
		Amount:         s.TotalTokens,
		ExpectedPrice:  sample.TokenPrice,
		MaxSlippagePct: s.Config.MaxSlippagePct,
	})
	if err != nil {
		s.Orders[idx].Status = OrderFailed
		s.Orders[idx].Error = err.Error()
		s.UpdatedAt = time.Now().UTC()
		log.Printf("strategy %s: exit sell (%s) failed, will retry next tick: %v", s.ID, reason, err)
		ev.publishTrade(s, s.Orders[idx])
		return
	}

	s.Orders[idx].Status = OrderCompleted
	s.Orders[idx].FilledAmount = fill.FilledAmount
	s.Orders[idx].RealizedPrice = fill.RealizedPrice
	s.Orders[idx].Fee = fill.Fee
	s.Orders[idx].TxRef = fill.TxRef
	s.TotalTokens = 0
	s.markTerminal(status, reason)

	log.Printf("strategy %s: closed via %s, proceeds=%.6f price=%.8f", s.ID, reason, fill.FilledAmount, fill.RealizedPrice)
	ev.publishTrade(s, s.Orders[idx])
	ev.publishStatus(s, reason, profitPct)
}

func (ev *Evaluator) publishTrade(s *Strategy, o Order) {
	if ev.Bus == nil {
		return
	}
	side := "buy"
	if o.Kind == OrderExit {
		side = "sell"
	}
	topic := events.EventTradeExecuted
	if o.Status == OrderFailed {
		topic = events.EventTradeFailed
	}
	ev.Bus.Publish(topic, events.TradeNotice{
		StrategyID: s.ID,
		UserID:     s.UserID,
		TokenID:    s.Config.TokenID,
		Side:       side,
		Kind:       string(o.Kind),
		Level:      o.Level,
		Amount:     o.RequestedAmount,
		Price:      o.RealizedPrice,
		Fee:        o.Fee,
		TxRef:      o.TxRef,
		Error:      o.Error,
	})
}

func (ev *Evaluator) publishStatus(s *Strategy, reason string, profitPct float64) {
	if ev.Bus == nil {
		return
	}
	topic := events.EventStrategyComplete
	if s.Status == StatusStopped {
		topic = events.EventStrategyStopped
	} else if s.Status == StatusFailed {
		topic = events.EventStrategyFailed
	}
	ev.Bus.Publish(topic, events.StrategyNotice{
		StrategyID: s.ID,
		UserID:     s.UserID,
		TokenID:    s.Config.TokenID,
		Status:     string(s.Status),
		Reason:     reason,
		Level:      s.CurrentLevel,
		ProfitPct:  profitPct,
	})
}
