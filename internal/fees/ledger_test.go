package fees

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		amount   float64
		wantFee  float64
		wantNet  float64
	}{
		{"plain percent", Schedule{Percent: 1}, 10, 0.1, 9.9},
		{"floor clamps up", Schedule{Percent: 1, Min: 0.5}, 10, 0.5, 9.5},
		{"ceiling clamps down", Schedule{Percent: 1, Max: 0.05}, 10, 0.05, 9.95},
		{"zero percent no floor", Schedule{}, 10, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(tt.schedule, nil)
			bd, err := l.Calculate(tt.amount)
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if math.Abs(bd.FeeAmount-tt.wantFee) > 1e-12 {
				t.Fatalf("FeeAmount=%v, expected %v", bd.FeeAmount, tt.wantFee)
			}
			if math.Abs(bd.NetAmount-tt.wantNet) > 1e-12 {
				t.Fatalf("NetAmount=%v, expected %v", bd.NetAmount, tt.wantNet)
			}
			if bd.NetAmount+bd.FeeAmount != tt.amount {
				t.Fatalf("net+fee=%v, expected gross %v", bd.NetAmount+bd.FeeAmount, tt.amount)
			}
		})
	}
}

func TestCalculateRejectsBadAmounts(t *testing.T) {
	l := NewLedger(Schedule{Percent: 1}, nil)

	if _, err := l.Calculate(0); err == nil {
		t.Fatal("zero amount accepted")
	}
	if _, err := l.Calculate(-5); err == nil {
		t.Fatal("negative amount accepted")
	}

	// A floor bigger than the trade leaves nothing to execute.
	l = NewLedger(Schedule{Percent: 1, Min: 10}, nil)
	if _, err := l.Calculate(5); err == nil {
		t.Fatal("fee exceeding the amount accepted")
	}
}

type captureSink struct {
	userID string
	amount float64
	calls  int
}

func (c *captureSink) RecordRevenue(_ context.Context, userID string, feeAmount float64) error {
	c.userID = userID
	c.amount = feeAmount
	c.calls++
	return nil
}

func TestRecordBooksRevenue(t *testing.T) {
	sink := &captureSink{}
	l := NewLedger(Schedule{Percent: 1}, sink)

	l.Record(context.Background(), "user-1", 0.25)
	if sink.calls != 1 || sink.userID != "user-1" || sink.amount != 0.25 {
		t.Fatalf("sink not invoked correctly: %+v", sink)
	}

	// Zero fees and nil sinks are silently skipped.
	l.Record(context.Background(), "user-1", 0)
	if sink.calls != 1 {
		t.Fatal("zero fee was booked")
	}
	NewLedger(Schedule{}, nil).Record(context.Background(), "user-1", 1)
}

func TestLoadSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fees.yaml")
	content := "percent: 1.5\nmin: 0.0001\nmax: 0.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s, err := LoadSchedule(path)
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if s.Percent != 1.5 || s.Min != 0.0001 || s.Max != 0.5 {
		t.Fatalf("schedule=%+v, expected 1.5/0.0001/0.5", s)
	}

	if _, err := LoadSchedule(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
