// Package engine exposes the single entry point callers use to manage
// strategies. The API layer interacts with the core only through Service.
package engine

import (
	"context"

	"martingale-core/internal/strategy"
)

// Service defines the engine façade.
type Service interface {
	Create(ctx context.Context, userID string, cfg strategy.Config) (*strategy.Strategy, error)
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	List(ctx context.Context, userID string) []*strategy.Strategy
	Get(ctx context.Context, id string) *strategy.Strategy
	Stats(ctx context.Context) Stats
}

// Stats summarizes the engine's current population.
type Stats struct {
	Total           int `json:"total"`
	Active          int `json:"active"`
	Paused          int `json:"paused"`
	Completed       int `json:"completed"`
	Stopped         int `json:"stopped"`
	Failed          int `json:"failed"`
	MonitoringCount int `json:"monitoring_count"`
}
