package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"martingale-core/internal/events"
	"martingale-core/internal/gateway"
	"martingale-core/internal/monitor"
	"martingale-core/internal/oracle"
	"martingale-core/internal/store"
	"martingale-core/internal/strategy"
)

// ErrNotFound is returned for an unknown strategy id.
var ErrNotFound = errors.New("strategy not found")

// ErrBadTransition is returned when a status change is not allowed, e.g.
// resuming a completed strategy. Terminal states are never re-entered.
var ErrBadTransition = errors.New("status transition not allowed")

// managed pairs a strategy record with its own mutex. Overlapping ticks per
// strategy are already excluded by the scheduler; the mutex covers the race
// between a tick and an explicit pause/resume/stop call.
type managed struct {
	mu sync.Mutex
	s  *strategy.Strategy
}

// Engine implements Service. It owns the registry of live strategies keyed by
// id; nothing else in the process holds strategy state.
type Engine struct {
	gateways  GatewaySelector
	oracle    oracle.Oracle
	scheduler *monitor.Scheduler
	writer    *store.Writer
	bus       *events.Bus

	minExitAge time.Duration

	mu     sync.RWMutex
	byID   map[string]*managed
	byUser map[string][]string // creation order per user

	ctx context.Context
}

// GatewaySelector picks the execution backend for a strategy at creation
// time. Simulated vs live is decided here once, never per call.
type GatewaySelector func(cfg strategy.Config) gateway.Gateway

// Options configures a new Engine.
type Options struct {
	Gateways   GatewaySelector
	Oracle     oracle.Oracle
	Scheduler  *monitor.Scheduler
	Bus        *events.Bus
	MinExitAge time.Duration
}

// New builds the engine. Call SetWriter before Create so saves have a sink,
// and Restore to rehydrate a previous collection.
func New(ctx context.Context, opts Options) *Engine {
	return &Engine{
		gateways:   opts.Gateways,
		oracle:     opts.Oracle,
		scheduler:  opts.Scheduler,
		bus:        opts.Bus,
		minExitAge: opts.MinExitAge,
		byID:       make(map[string]*managed),
		byUser:     make(map[string][]string),
		ctx:        ctx,
	}
}

// SetWriter attaches the persistence writer. The writer needs the engine's
// Snapshot, hence the two-step wiring.
func (e *Engine) SetWriter(w *store.Writer) {
	e.writer = w
}

// Snapshot returns a deep copy of the whole collection for persistence.
func (e *Engine) Snapshot() store.Collection {
	e.mu.RLock()
	defer e.mu.RUnlock()

	col := store.Collection{}
	for userID, ids := range e.byUser {
		list := make([]*strategy.Strategy, 0, len(ids))
		for _, id := range ids {
			m := e.byID[id]
			m.mu.Lock()
			list = append(list, m.s.Clone())
			m.mu.Unlock()
		}
		col[userID] = list
	}
	return col
}

// Restore seeds the registry from a loaded collection and restarts monitoring
// for every record still active. Terminal records are kept for history only.
func (e *Engine) Restore(col store.Collection) {
	e.mu.Lock()
	for userID, list := range col {
		for _, s := range list {
			e.byID[s.ID] = &managed{s: s}
			e.byUser[userID] = append(e.byUser[userID], s.ID)
		}
	}
	e.mu.Unlock()

	restarted := 0
	for _, list := range col {
		for _, s := range list {
			if s.Status == strategy.StatusActive {
				e.scheduler.Start(e.ctx, s.ID, e.tick)
				restarted++
			}
		}
	}
	if restarted > 0 {
		log.Printf("engine: restored %d active strategies, monitoring restarted", restarted)
	}
}

// Create validates the configuration, executes the initial buy, persists the
// record, and starts monitoring. Validation runs strictly before any
// execution call.
func (e *Engine) Create(ctx context.Context, userID string, cfg strategy.Config) (*strategy.Strategy, error) {
	if userID == "" {
		return nil, &strategy.ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if err := strategy.Validate(cfg); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s := &strategy.Strategy{
		ID:        uuid.NewString(),
		UserID:    userID,
		Config:    cfg,
		Status:    strategy.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	gw := e.gateways(cfg)

	price, err := e.oracle.GetTokenPrice(ctx, cfg.TokenID)
	if err != nil {
		return nil, fmt.Errorf("initial price: %w", err)
	}

	o := strategy.Order{
		ID:              uuid.NewString(),
		Level:           0,
		Kind:            strategy.OrderInitial,
		RequestedAmount: cfg.InitialAmount,
		RequestedPrice:  price,
		Timestamp:       now,
		Status:          strategy.OrderPending,
	}
	s.Orders = append(s.Orders, o)

	fill, err := gw.Buy(ctx, gateway.Request{
		UserID:         userID,
		TokenID:        cfg.TokenID,
		Amount:         cfg.InitialAmount,
		ExpectedPrice:  price,
		MaxSlippagePct: cfg.MaxSlippagePct,
	})
	if err != nil {
		// A failed initial buy is fatal: the record is kept for history but
		// never monitored.
		s.Orders[0].Status = strategy.OrderFailed
		s.Orders[0].Error = err.Error()
		s.Status = strategy.StatusFailed
		s.StopReason = "initial_buy_failed"
		stopped := now
		s.StoppedAt = &stopped
		e.register(userID, s)
		e.requestSave()
		e.publish(events.EventStrategyFailed, noticeFor(s, "initial_buy_failed"))
		return s, err
	}

	s.Orders[0].Status = strategy.OrderCompleted
	s.Orders[0].FilledAmount = fill.FilledAmount
	s.Orders[0].RealizedPrice = fill.RealizedPrice
	s.Orders[0].Fee = fill.Fee
	s.Orders[0].TxRef = fill.TxRef
	s.ApplyBuyFill(s.Orders[0])

	e.register(userID, s)
	e.requestSave()
	e.publish(events.EventStrategyCreated, noticeFor(s, ""))
	out := s.Clone()

	// Start monitoring last so the returned copy cannot race the first tick.
	e.scheduler.Start(e.ctx, s.ID, e.tick)

	log.Printf("engine: created %s strategy %s for %s, initial buy %.6f @ %.8f",
		cfg.Kind, s.ID, userID, cfg.InitialAmount, fill.RealizedPrice)
	return out, nil
}

// tick is one monitoring pass for a strategy: fetch prices, evaluate
// triggers, persist the mutation. A fetch failure skips the tick entirely.
func (e *Engine) tick(ctx context.Context, id string) {
	m := e.lookup(id)
	if m == nil {
		return
	}

	m.mu.Lock()
	if m.s.Status != strategy.StatusActive {
		m.mu.Unlock()
		return
	}
	tokenID := m.s.Config.TokenID
	gw := e.gateways(m.s.Config)
	m.mu.Unlock()

	tokenPrice, err := e.oracle.GetTokenPrice(ctx, tokenID)
	if err != nil {
		log.Printf("engine: strategy %s price fetch failed, skipping tick: %v", id, err)
		return
	}
	quotePrice, err := e.oracle.GetQuoteAssetPrice(ctx)
	if err != nil {
		log.Printf("engine: strategy %s quote price fetch failed, skipping tick: %v", id, err)
		return
	}

	ev := &strategy.Evaluator{Gateway: gw, Bus: e.bus, MinExitAge: e.minExitAge}
	sample := strategy.Sample{TokenPrice: tokenPrice, QuotePrice: quotePrice, At: time.Now().UTC()}

	m.mu.Lock()
	changed := ev.Evaluate(ctx, m.s, sample)
	terminal := m.s.Status.Terminal()
	m.mu.Unlock()

	if terminal {
		e.scheduler.Cancel(id)
	}
	if changed {
		e.requestSave()
	}
}

// Pause suspends monitoring. Only an active strategy can pause.
func (e *Engine) Pause(ctx context.Context, id string) error {
	m := e.lookup(id)
	if m == nil {
		return ErrNotFound
	}

	m.mu.Lock()
	if m.s.Status != strategy.StatusActive {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrBadTransition, id, m.s.Status)
	}
	m.s.Status = strategy.StatusPaused
	m.s.UpdatedAt = time.Now().UTC()
	notice := noticeFor(m.s, "")
	m.mu.Unlock()

	e.scheduler.Cancel(id)
	e.requestSave()
	e.publish(events.EventStrategyPaused, notice)
	return nil
}

// Resume restarts monitoring for a paused strategy.
func (e *Engine) Resume(ctx context.Context, id string) error {
	m := e.lookup(id)
	if m == nil {
		return ErrNotFound
	}

	m.mu.Lock()
	if m.s.Status != strategy.StatusPaused {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrBadTransition, id, m.s.Status)
	}
	m.s.Status = strategy.StatusActive
	m.s.UpdatedAt = time.Now().UTC()
	notice := noticeFor(m.s, "")
	m.mu.Unlock()

	e.scheduler.Start(e.ctx, id, e.tick)
	e.requestSave()
	e.publish(events.EventStrategyResumed, notice)
	return nil
}

// Stop moves an active or paused strategy to the stopped terminal state and
// tears down its timer. The record is retained; only the monitoring resource
// is released. Status reconciliation with an in-flight tick is
// last-write-wins on the terminal field.
func (e *Engine) Stop(ctx context.Context, id string) error {
	m := e.lookup(id)
	if m == nil {
		return ErrNotFound
	}

	m.mu.Lock()
	if m.s.Status.Terminal() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrBadTransition, id, m.s.Status)
	}
	m.s.Status = strategy.StatusStopped
	m.s.StopReason = "user_stop"
	now := time.Now().UTC()
	m.s.StoppedAt = &now
	m.s.UpdatedAt = now
	notice := noticeFor(m.s, "user_stop")
	m.mu.Unlock()

	e.scheduler.Cancel(id)
	e.requestSave()
	e.publish(events.EventStrategyStopped, notice)
	return nil
}

// List returns copies of a user's strategies in creation order.
func (e *Engine) List(ctx context.Context, userID string) []*strategy.Strategy {
	e.mu.RLock()
	ids := append([]string(nil), e.byUser[userID]...)
	e.mu.RUnlock()

	out := make([]*strategy.Strategy, 0, len(ids))
	for _, id := range ids {
		if m := e.lookup(id); m != nil {
			m.mu.Lock()
			out = append(out, m.s.Clone())
			m.mu.Unlock()
		}
	}
	return out
}

// Get returns a copy of one strategy or nil.
func (e *Engine) Get(ctx context.Context, id string) *strategy.Strategy {
	m := e.lookup(id)
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Clone()
}

// Stats summarizes the registry.
func (e *Engine) Stats(ctx context.Context) Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Stats{MonitoringCount: e.scheduler.Count()}
	for _, m := range e.byID {
		m.mu.Lock()
		status := m.s.Status
		m.mu.Unlock()

		st.Total++
		switch status {
		case strategy.StatusActive:
			st.Active++
		case strategy.StatusPaused:
			st.Paused++
		case strategy.StatusCompleted:
			st.Completed++
		case strategy.StatusStopped:
			st.Stopped++
		case strategy.StatusFailed:
			st.Failed++
		}
	}
	return st
}

// Shutdown tears down all timers. The caller flushes the writer.
func (e *Engine) Shutdown() {
	e.scheduler.CancelAll()
}

func (e *Engine) register(userID string, s *strategy.Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byID[s.ID] = &managed{s: s}
	e.byUser[userID] = append(e.byUser[userID], s.ID)
}

func (e *Engine) lookup(id string) *managed {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.byID[id]
}

func (e *Engine) requestSave() {
	if e.writer != nil {
		e.writer.Request()
	}
}

func (e *Engine) publish(topic events.Event, notice events.StrategyNotice) {
	if e.bus != nil {
		e.bus.Publish(topic, notice)
	}
}

// noticeFor must be called while holding the strategy's lock (or before the
// record is shared).
func noticeFor(s *strategy.Strategy, reason string) events.StrategyNotice {
	return events.StrategyNotice{
		StrategyID: s.ID,
		UserID:     s.UserID,
		TokenID:    s.Config.TokenID,
		Status:     string(s.Status),
		Reason:     reason,
		Level:      s.CurrentLevel,
	}
}
