package history

import (
	"martingale-core/internal/events"
	"martingale-core/pkg/db"
)

// Bridge subscribes the recorder to the event bus so every trade and
// lifecycle event lands in history without the trading path knowing about
// the database. Returns an unsubscribe function.
func Bridge(bus *events.Bus, rec *Recorder) func() {
	tradeTopics := []events.Event{events.EventTradeExecuted, events.EventTradeFailed}
	statusTopics := []events.Event{
		events.EventStrategyCreated,
		events.EventStrategyPaused,
		events.EventStrategyResumed,
		events.EventStrategyStopped,
		events.EventStrategyComplete,
		events.EventStrategyFailed,
	}

	var unsubs []func()

	for _, topic := range tradeTopics {
		ch, unsub := bus.Subscribe(topic, 100)
		unsubs = append(unsubs, unsub)
		go func() {
			for msg := range ch {
				n, ok := msg.(events.TradeNotice)
				if !ok {
					continue
				}
				rec.LogTrade(db.TradeRecord{
					UserID:     n.UserID,
					StrategyID: n.StrategyID,
					TokenID:    n.TokenID,
					Side:       n.Side,
					Level:      n.Level,
					Amount:     n.Amount,
					Price:      n.Price,
					Fee:        n.Fee,
					TxRef:      n.TxRef,
				})
			}
		}()
	}

	for _, topic := range statusTopics {
		t := topic
		ch, unsub := bus.Subscribe(t, 100)
		unsubs = append(unsubs, unsub)
		go func() {
			for msg := range ch {
				n, ok := msg.(events.StrategyNotice)
				if !ok {
					continue
				}
				rec.LogStrategyEvent(db.StrategyEvent{
					UserID:     n.UserID,
					StrategyID: n.StrategyID,
					EventType:  string(t),
					Detail:     n.Reason,
				})
			}
		}()
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
