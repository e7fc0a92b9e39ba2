package store

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"foodsim/internal/model"
)

// Writer saves completed orders in the background so the simulation never
// waits on the database. Failed saves are retried with exponential backoff.
type Writer struct {
	Archive     Archive
	Stop        chan struct{}
	MaxAttempts int
	RetryEvery  time.Duration

	queue chan model.Order
	done  chan struct{}
	retry []pendingSave
}

type pendingSave struct {
	order    model.Order
	attempts int
	next     time.Time
}

func NewWriter(a Archive, buffer int) *Writer {
	max := 5
	if v := os.Getenv("ARCHIVE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}
	return &Writer{
		Archive:     a,
		Stop:        make(chan struct{}),
		MaxAttempts: max,
		RetryEvery:  time.Second,
		queue:       make(chan model.Order, buffer),
		done:        make(chan struct{}),
	}
}

// Enqueue hands o to the writer without blocking. It reports false when the
// buffer is full and the order was dropped.
func (w *Writer) Enqueue(o model.Order) bool {
	select {
	case w.queue <- o:
		return true
	default:
		log.Printf("archive: queue full, dropping order %d", o.ID)
		return false
	}
}

func (w *Writer) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.RetryEvery)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				w.drain()
				return
			case o := <-w.queue:
				w.save(o, 0)
			case <-ticker.C:
				w.retryDue(time.Now())
			}
		}
	}()
}

// Close stops the writer after saving whatever is still queued.
func (w *Writer) Close() {
	close(w.Stop)
	<-w.done
}

func (w *Writer) drain() {
	for {
		select {
		case o := <-w.queue:
			w.save(o, 0)
		default:
			if len(w.retry) > 0 {
				log.Printf("archive: %d orders left unsaved at shutdown", len(w.retry))
			}
			return
		}
	}
}

func (w *Writer) save(o model.Order, attempts int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.Archive.Save(ctx, o)
	if err == nil {
		return
	}
	attempts++
	if attempts >= w.MaxAttempts {
		log.Printf("archive: giving up on order %d after %d attempts: %v", o.ID, attempts, err)
		return
	}
	w.retry = append(w.retry, pendingSave{order: o, attempts: attempts, next: time.Now().Add(nextBackoff(attempts))})
}

func (w *Writer) retryDue(now time.Time) {
	due := w.retry
	w.retry = nil
	for _, p := range due {
		if now.Before(p.next) {
			w.retry = append(w.retry, p)
			continue
		}
		w.save(p.order, p.attempts)
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Minute {
		base = time.Minute
	}
	return base
}
