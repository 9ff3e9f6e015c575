package strategy

import (
	"math"
	"testing"
	"time"
)

func TestScaleAmount(t *testing.T) {
	cfg := Config{InitialAmount: 0.1, Multiplier: 2}

	tests := []struct {
		level int
		want  float64
	}{
		{0, 0.1},
		{1, 0.2},
		{2, 0.4},
		{3, 0.8},
	}
	for _, tt := range tests {
		if got := cfg.ScaleAmount(tt.level); math.Abs(got-tt.want) > 1e-12 {
			t.Fatalf("ScaleAmount(%d)=%v, expected %v", tt.level, got, tt.want)
		}
	}
}

func TestWorstCaseCapital(t *testing.T) {
	// 0.1 + 0.2 + 0.4 + 0.8 = 1.5
	cfg := Config{InitialAmount: 0.1, Multiplier: 2, MaxLevels: 3}
	if got := cfg.WorstCaseCapital(); math.Abs(got-1.5) > 1e-12 {
		t.Fatalf("WorstCaseCapital=%v, expected 1.5", got)
	}

	// Multiplier 1 degenerates to (maxLevels+1) * initial.
	cfg = Config{InitialAmount: 0.5, Multiplier: 1, MaxLevels: 4}
	if got := cfg.WorstCaseCapital(); math.Abs(got-2.5) > 1e-12 {
		t.Fatalf("WorstCaseCapital=%v, expected 2.5", got)
	}
}

func TestApplyBuyFillVWAP(t *testing.T) {
	s := &Strategy{Config: Config{InitialAmount: 1}}

	s.ApplyBuyFill(Order{
		Kind:            OrderInitial,
		RequestedAmount: 1.0,
		FilledAmount:    100,
		RealizedPrice:   1.0,
		Fee:             0.01,
		Status:          OrderCompleted,
	})
	if s.AvgBuyPrice != 1.0 {
		t.Fatalf("AvgBuyPrice=%v after initial, expected 1.0", s.AvgBuyPrice)
	}
	if s.EntryPrice != 1.0 {
		t.Fatalf("EntryPrice=%v, expected 1.0", s.EntryPrice)
	}
	if math.Abs(s.NetInvested-0.99) > 1e-12 {
		t.Fatalf("NetInvested=%v, expected 0.99", s.NetInvested)
	}

	// 100 tokens @ 1.0 plus 300 tokens @ 0.5 -> VWAP 0.625.
	s.ApplyBuyFill(Order{
		Kind:            OrderScaleIn,
		RequestedAmount: 2.0,
		FilledAmount:    300,
		RealizedPrice:   0.5,
		Fee:             0.02,
		Status:          OrderCompleted,
	})
	if math.Abs(s.AvgBuyPrice-0.625) > 1e-12 {
		t.Fatalf("AvgBuyPrice=%v, expected 0.625", s.AvgBuyPrice)
	}
	if s.LastBuyPrice != 0.5 {
		t.Fatalf("LastBuyPrice=%v, expected 0.5", s.LastBuyPrice)
	}
	if s.EntryPrice != 1.0 {
		t.Fatalf("EntryPrice changed by scale-in: %v", s.EntryPrice)
	}
	if s.TotalTokens != 400 {
		t.Fatalf("TotalTokens=%v, expected 400", s.TotalTokens)
	}
	if s.GrossInvested != 3.0 {
		t.Fatalf("GrossInvested=%v, expected 3.0", s.GrossInvested)
	}
	if s.NetInvested > s.GrossInvested {
		t.Fatalf("NetInvested %v exceeds GrossInvested %v", s.NetInvested, s.GrossInvested)
	}
}

func TestObservePrice(t *testing.T) {
	s := &Strategy{}
	s.ObservePrice(1.0)
	s.ObservePrice(2.0)
	s.ObservePrice(0.5)

	if s.HighestPrice != 2.0 {
		t.Fatalf("HighestPrice=%v, expected 2.0", s.HighestPrice)
	}
	if s.LowestPrice != 0.5 {
		t.Fatalf("LowestPrice=%v, expected 0.5", s.LowestPrice)
	}
}

func TestCurrentQuoteValue(t *testing.T) {
	s := &Strategy{TotalTokens: 300}
	// 300 tokens at $0.50 with the quote asset at $150 -> 1.0 quote units.
	if got := s.CurrentQuoteValue(0.5, 150); math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("CurrentQuoteValue=%v, expected 1.0", got)
	}
	if got := s.CurrentQuoteValue(0.5, 0); got != 0 {
		t.Fatalf("CurrentQuoteValue with zero quote=%v, expected 0", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now().UTC()
	s := &Strategy{
		ID:        "s1",
		Status:    StatusCompleted,
		Orders:    []Order{{ID: "o1", Status: OrderCompleted}},
		CreatedAt: now,
	}
	s.CompletedAt = &now

	cp := s.Clone()
	cp.Orders[0].Status = OrderFailed
	*cp.CompletedAt = now.Add(time.Hour)

	if s.Orders[0].Status != OrderCompleted {
		t.Fatal("mutating the clone's orders changed the original")
	}
	if !s.CompletedAt.Equal(now) {
		t.Fatal("mutating the clone's CompletedAt changed the original")
	}
}

func TestTerminal(t *testing.T) {
	for _, st := range []Status{StatusCompleted, StatusStopped, StatusFailed} {
		if !st.Terminal() {
			t.Fatalf("%s should be terminal", st)
		}
	}
	for _, st := range []Status{StatusActive, StatusPaused} {
		if st.Terminal() {
			t.Fatalf("%s should not be terminal", st)
		}
	}
}
