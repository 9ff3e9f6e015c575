// Package history records trades and strategy lifecycle events for later
// inspection. Recording is fire-and-forget: a full buffer drops the entry and
// a database failure is logged, because history must never block trading.
package history

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"martingale-core/pkg/db"
)

type op struct {
	trade *db.TradeRecord
	event *db.StrategyEvent
}

// Recorder batches history rows and flushes them in one transaction on a
// background goroutine.
type Recorder struct {
	db      *db.Database
	mu      sync.Mutex
	buffer  []op
	maxSize int
	done    chan struct{}
	wg      sync.WaitGroup
	dropped uint64
}

// NewRecorder starts the background flusher.
func NewRecorder(database *db.Database, maxSize int, interval time.Duration) *Recorder {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	r := &Recorder{
		db:      database,
		buffer:  make([]op, 0, maxSize),
		maxSize: maxSize,
		done:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run(interval)
	return r
}

// LogTrade queues a trade row. Never blocks.
func (r *Recorder) LogTrade(t db.TradeRecord) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r.push(op{trade: &t})
}

// LogStrategyEvent queues a lifecycle event row. Never blocks.
func (r *Recorder) LogStrategyEvent(e db.StrategyEvent) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.push(op{event: &e})
}

func (r *Recorder) push(o op) {
	r.mu.Lock()
	if len(r.buffer) >= r.maxSize*4 {
		r.mu.Unlock()
		atomic.AddUint64(&r.dropped, 1)
		return
	}
	r.buffer = append(r.buffer, o)
	full := len(r.buffer) >= r.maxSize
	r.mu.Unlock()

	if full {
		go r.Flush()
	}
}

// Flush writes all buffered rows in one transaction.
func (r *Recorder) Flush() {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return
	}
	ops := r.buffer
	r.buffer = make([]op, 0, r.maxSize)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("history: begin tx failed, %d rows lost: %v", len(ops), err)
		return
	}

	for _, o := range ops {
		switch {
		case o.trade != nil:
			t := o.trade
			_, err = tx.ExecContext(ctx, `
				INSERT INTO trade_history (id, user_id, strategy_id, token_id, side, level, amount, price, fee, tx_ref, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, t.ID, t.UserID, t.StrategyID, t.TokenID, t.Side, t.Level, t.Amount, t.Price, t.Fee, t.TxRef, t.CreatedAt)
		case o.event != nil:
			e := o.event
			_, err = tx.ExecContext(ctx, `
				INSERT INTO strategy_events (id, user_id, strategy_id, event_type, detail, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, e.ID, e.UserID, e.StrategyID, e.EventType, e.Detail, e.CreatedAt)
		}
		if err != nil {
			tx.Rollback()
			log.Printf("history: insert failed, rolling back %d rows: %v", len(ops), err)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("history: commit failed: %v", err)
	}
}

// Dropped reports rows discarded because the buffer was saturated.
func (r *Recorder) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

func (r *Recorder) run(interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Flush()
		case <-r.done:
			r.Flush()
			return
		}
	}
}

// Close flushes pending rows and stops the background goroutine.
func (r *Recorder) Close() {
	close(r.done)
	r.wg.Wait()
}
