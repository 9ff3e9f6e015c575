package fees

import (
	"context"
	"errors"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Schedule defines the platform fee: a percentage clamped to a floor and ceiling.
type Schedule struct {
	Percent float64 `yaml:"percent"` // fee percentage, e.g. 1.0 = 1%
	Min     float64 `yaml:"min"`     // fee floor in quote asset units
	Max     float64 `yaml:"max"`     // fee ceiling in quote asset units
}

// Breakdown is the result of applying the schedule to a gross amount.
type Breakdown struct {
	FeeAmount     float64 `json:"fee_amount"`
	NetAmount     float64 `json:"net_amount"`
	FeePercentage float64 `json:"fee_percentage"`
}

// RevenueSink records collected fees durably.
type RevenueSink interface {
	RecordRevenue(ctx context.Context, userID string, feeAmount float64) error
}

var errAmountNotPositive = errors.New("fee: amount must be positive")

// Ledger computes transaction fees and books them as revenue.
type Ledger struct {
	schedule Schedule
	sink     RevenueSink
}

// NewLedger builds a fee ledger. sink may be nil (fees computed but not booked).
func NewLedger(schedule Schedule, sink RevenueSink) *Ledger {
	if schedule.Percent < 0 {
		schedule.Percent = 0
	}
	return &Ledger{schedule: schedule, sink: sink}
}

// LoadSchedule reads a fee schedule from a YAML file.
func LoadSchedule(path string) (Schedule, error) {
	var s Schedule
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// Calculate applies the schedule to a gross amount. The net amount is what
// actually sizes the trade; fee is always >= 0 so net <= gross holds.
func (l *Ledger) Calculate(amount float64) (Breakdown, error) {
	if amount <= 0 {
		return Breakdown{}, errAmountNotPositive
	}

	fee := amount * l.schedule.Percent / 100
	if l.schedule.Min > 0 && fee < l.schedule.Min {
		fee = l.schedule.Min
	}
	if l.schedule.Max > 0 && fee > l.schedule.Max {
		fee = l.schedule.Max
	}
	if fee >= amount {
		// A floor larger than the trade would leave nothing to execute.
		return Breakdown{}, errors.New("fee: fee exceeds amount")
	}

	return Breakdown{
		FeeAmount:     fee,
		NetAmount:     amount - fee,
		FeePercentage: fee / amount * 100,
	}, nil
}

// Record books a collected fee as revenue. Best effort: a sink failure is
// logged and never propagated into the trade path.
func (l *Ledger) Record(ctx context.Context, userID string, feeAmount float64) {
	if l.sink == nil || feeAmount <= 0 {
		return
	}
	if err := l.sink.RecordRevenue(ctx, userID, feeAmount); err != nil {
		log.Printf("fees: record revenue for %s failed: %v", userID, err)
	}
}
