package oracle

import (
	"context"
	"math/rand"
	"sync"
)

// MockOracle generates random-walk prices for local development and tests.
type MockOracle struct {
	QuotePrice float64 // fixed USD price for the quote asset
	StartPrice float64 // initial token price
	StepPct    float64 // max per-call move, fraction (0.01 = 1%)

	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

// NewMockOracle seeds a walk starting at startPrice for every token it sees.
func NewMockOracle(quotePrice, startPrice, stepPct float64, seed int64) *MockOracle {
	if quotePrice <= 0 {
		quotePrice = 150.0
	}
	if startPrice <= 0 {
		startPrice = 1.0
	}
	if stepPct < 0 {
		stepPct = 0.01
	}
	return &MockOracle{
		QuotePrice: quotePrice,
		StartPrice: startPrice,
		StepPct:    stepPct,
		prices:     make(map[string]float64),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (m *MockOracle) GetTokenPrice(_ context.Context, tokenID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[tokenID]
	if !ok {
		price = m.StartPrice
	}
	// simple random walk
	price *= 1 + (m.rng.Float64()*2-1)*m.StepPct
	if price <= 0 {
		price = m.StartPrice
	}
	m.prices[tokenID] = price
	return price, nil
}

func (m *MockOracle) GetQuoteAssetPrice(_ context.Context) (float64, error) {
	return m.QuotePrice, nil
}

// SetPrice pins the next token price, handy for deterministic tests.
func (m *MockOracle) SetPrice(tokenID string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[tokenID] = price
}
