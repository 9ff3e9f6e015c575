package store

import (
	"log"
	"sync"
	"time"
)

// Writer serializes store saves behind a single background goroutine so
// overlapping ticks across strategies cannot race a full-file rewrite.
// Requests within the debounce window collapse into one save.
type Writer struct {
	store    *Store
	snapshot func() Collection
	debounce time.Duration

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWriter starts the background writer. snapshot must return a consistent
// copy of the collection safe to marshal outside the engine's locks.
func NewWriter(store *Store, snapshot func() Collection, debounce time.Duration) *Writer {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	w := &Writer{
		store:    store,
		snapshot: snapshot,
		debounce: debounce,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Request schedules a save. Never blocks; repeated requests coalesce.
func (w *Writer) Request() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *Writer) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case <-w.kick:
			// Let a burst of ticks settle into one write.
			timer := time.NewTimer(w.debounce)
			select {
			case <-timer.C:
			case <-w.done:
				timer.Stop()
				w.save()
				return
			}
			w.save()
		}
	}
}

func (w *Writer) save() {
	if err := w.store.Save(w.snapshot()); err != nil {
		// In-memory state stays authoritative until the next successful save.
		log.Printf("store: save failed: %v", err)
	}
}

// Close flushes any pending save and stops the writer.
func (w *Writer) Close() {
	close(w.done)
	w.wg.Wait()
	w.save()
}
