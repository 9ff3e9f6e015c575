package history

import (
	"context"
	"testing"
	"time"

	"martingale-core/internal/events"
	"martingale-core/pkg/db"
)

func newTestDB(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return database
}

func TestRecorderFlushesTradesAndEvents(t *testing.T) {
	database := newTestDB(t)
	rec := NewRecorder(database, 10, time.Hour) // flush manually

	rec.LogTrade(db.TradeRecord{UserID: "u1", StrategyID: "s1", TokenID: "TOKEN_A", Side: "buy", Amount: 0.1, Price: 1.0, Fee: 0.001})
	rec.LogStrategyEvent(db.StrategyEvent{UserID: "u1", StrategyID: "s1", EventType: "strategy.created"})
	rec.Flush()

	trades, err := database.GetTradesByUser(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("GetTradesByUser: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, expected 1", len(trades))
	}
	if trades[0].ID == "" {
		t.Fatal("trade id not defaulted")
	}

	evts, err := database.GetEventsByStrategy(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("GetEventsByStrategy: %v", err)
	}
	if len(evts) != 1 || evts[0].EventType != "strategy.created" {
		t.Fatalf("events=%+v", evts)
	}

	rec.Close()
}

func TestRecorderCloseFlushesPending(t *testing.T) {
	database := newTestDB(t)
	rec := NewRecorder(database, 10, time.Hour)

	rec.LogTrade(db.TradeRecord{UserID: "u1", StrategyID: "s1", TokenID: "TOKEN_A", Side: "sell", Amount: 5})
	rec.Close()

	trades, err := database.GetTradesByUser(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("GetTradesByUser: %v", err)
	}
	if len(trades) != 1 {
		t.Fatal("Close lost the pending trade")
	}
}

func TestRecorderDropsPastCapacity(t *testing.T) {
	database := newTestDB(t)
	rec := NewRecorder(database, 5, time.Hour)
	defer rec.Close()

	// Capacity is 4x maxSize before drops start.
	for i := 0; i < 100; i++ {
		rec.LogTrade(db.TradeRecord{UserID: "u1", StrategyID: "s1", TokenID: "TOKEN_A", Side: "buy", Amount: 1})
	}
	if rec.Dropped() == 0 {
		t.Fatal("overflow never dropped")
	}
}

func TestBridgeRecordsBusTraffic(t *testing.T) {
	database := newTestDB(t)
	rec := NewRecorder(database, 10, time.Hour)
	bus := events.NewBus()

	unbridge := Bridge(bus, rec)
	defer unbridge()

	bus.Publish(events.EventTradeExecuted, events.TradeNotice{
		StrategyID: "s1", UserID: "u1", TokenID: "TOKEN_A", Side: "buy", Level: 1, Amount: 0.2, Price: 0.9, Fee: 0.002,
	})
	bus.Publish(events.EventStrategyComplete, events.StrategyNotice{
		StrategyID: "s1", UserID: "u1", TokenID: "TOKEN_A", Status: "completed", Reason: "profit_target",
	})

	// The bridge consumes asynchronously; give it a moment before flushing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec.Flush()
		trades, _ := database.GetTradesByUser(context.Background(), "u1", 10)
		evts, _ := database.GetEventsByStrategy(context.Background(), "s1", 10)
		if len(trades) == 1 && len(evts) == 1 {
			if evts[0].EventType != string(events.EventStrategyComplete) {
				t.Fatalf("event type=%q", evts[0].EventType)
			}
			if evts[0].Detail != "profit_target" {
				t.Fatalf("detail=%q", evts[0].Detail)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("bridge never delivered: trades=%d events=%d", len(trades), len(evts))
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec.Close()
}
