package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventTradeExecuted, 10)
	defer unsub()

	bus.Publish(EventTradeExecuted, TradeNotice{StrategyID: "s1", Side: "buy"})

	select {
	case msg := <-ch:
		n, ok := msg.(TradeNotice)
		if !ok || n.StrategyID != "s1" {
			t.Fatalf("unexpected payload: %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("published message never arrived")
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	trades, unsub1 := bus.Subscribe(EventTradeExecuted, 10)
	defer unsub1()
	_, unsub2 := bus.Subscribe(EventStrategyPaused, 10)
	defer unsub2()

	bus.Publish(EventStrategyPaused, StrategyNotice{StrategyID: "s1"})

	select {
	case msg := <-trades:
		t.Fatalf("trade subscriber received a lifecycle event: %#v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventStrategyCreated, 1)
	unsub()

	if _, open := <-ch; open {
		t.Fatal("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(EventStrategyCreated, StrategyNotice{})
}

// A full subscriber buffer loses messages instead of blocking the publisher.
func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	bus := NewBus()
	_, unsub := bus.Subscribe(EventTradeExecuted, 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(EventTradeExecuted, TradeNotice{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	if bus.Dropped() != 4 {
		t.Fatalf("Dropped=%d, expected 4", bus.Dropped())
	}
}
