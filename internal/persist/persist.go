// Package persist hands completed analyses to the store without letting
// storage failures reach the caller.
package persist

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/config"
	"github.com/indexlegal/honoris/internal/model"
	"github.com/indexlegal/honoris/internal/store"
)

// Sink accepts a finished entry. Persist never fails; problems are logged.
type Sink interface {
	Persist(ctx context.Context, entry model.Entry)
}

// Noop is the local-mode sink used when no store is configured.
type Noop struct{}

func (Noop) Persist(context.Context, model.Entry) {}

const (
	defaultWriteTimeout = 5 * time.Second
	defaultBatchSize    = 20
	defaultPoll         = 500 * time.Millisecond
)

// Dispatcher writes entries to a store. With a queue, Persist only enqueues
// and Run drains the queue; without one, Persist writes before returning.
type Dispatcher struct {
	store        store.Store
	queue        Queue
	writeTimeout time.Duration
	batchSize    int
	poll         time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueue switches the dispatcher to asynchronous delivery.
func WithQueue(q Queue) Option {
	return func(d *Dispatcher) { d.queue = q }
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.writeTimeout = t
		}
	}
}

// WithBatch sets how many queued entries are written together and how long
// the worker waits for the first one.
func WithBatch(size int, poll time.Duration) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.batchSize = size
		}
		if poll > 0 {
			d.poll = poll
		}
	}
}

// NewDispatcher creates a Dispatcher writing to st.
func NewDispatcher(st store.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:        st,
		writeTimeout: defaultWriteTimeout,
		batchSize:    defaultBatchSize,
		poll:         defaultPoll,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Async reports whether Persist returns before the write completes.
func (d *Dispatcher) Async() bool {
	return d.queue != nil
}

// Persist delivers entry. The request context only supplies values; its
// cancellation never aborts a write.
func (d *Dispatcher) Persist(ctx context.Context, entry model.Entry) {
	ctx = context.WithoutCancel(ctx)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if d.queue == nil {
		d.write(ctx, []model.Entry{entry})
		return
	}

	if err := d.queue.Push(ctx, entry); err != nil {
		zap.L().Error("persist: entry dropped",
			zap.String("source", entry.Source),
			zap.String("category", entry.Analysis.Category),
			zap.Error(apperr.New(apperr.KindPersistenceFailed, "persist: enqueue", err)),
		)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
// It returns immediately for a synchronous dispatcher.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.queue == nil {
		return nil
	}
	log := zap.L().With(zap.String("component", "persist.worker"))
	log.Info("persistence worker started", zap.Int("batch_size", d.batchSize))

	for {
		entries, err := d.queue.Pop(ctx, d.batchSize, d.poll)
		if len(entries) > 0 {
			d.write(context.WithoutCancel(ctx), entries)
		}
		if ctx.Err() != nil {
			d.flush(context.WithoutCancel(ctx))
			log.Info("persistence worker stopped")
			return nil
		}
		if err != nil {
			log.Warn("persist: queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(d.poll):
			}
		}
	}
}

// flush writes whatever is still queued, bounded by one write timeout.
func (d *Dispatcher) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, d.writeTimeout)
	defer cancel()
	for {
		entries, err := d.queue.Pop(ctx, d.batchSize, 10*time.Millisecond)
		if len(entries) == 0 || err != nil {
			return
		}
		d.write(ctx, entries)
	}
}

func (d *Dispatcher) write(ctx context.Context, entries []model.Entry) {
	ctx, cancel := context.WithTimeout(ctx, d.writeTimeout)
	defer cancel()

	if err := d.store.Append(ctx, entries...); err != nil {
		kind := "store_error"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = "timeout"
		}
		zap.L().Error("persist: write failed",
			zap.Int("entries", len(entries)),
			zap.String("reason", kind),
			zap.Error(apperr.New(apperr.KindPersistenceFailed, "persist: append", err)),
		)
		return
	}
	zap.L().Debug("persist: entries written", zap.Int("entries", len(entries)))
}

// FromConfig builds a Dispatcher for st following cfg. Sync mode ignores the queue settings.
func FromConfig(ctx context.Context, cfg config.Config, st store.Store) (*Dispatcher, error) {
	opts := []Option{
		WithWriteTimeout(time.Duration(cfg.Store.WriteTimeoutSecs) * time.Second),
		WithBatch(cfg.Persistence.BatchSize, time.Duration(cfg.Persistence.PollMillis)*time.Millisecond),
	}
	if cfg.Persistence.Mode == "sync" {
		return NewDispatcher(st, opts...), nil
	}

	var q Queue
	switch cfg.Persistence.Queue {
	case "redis":
		rq, err := NewRedisQueue(ctx, cfg.Persistence.RedisURL, cfg.Persistence.Buffer)
		if err != nil {
			return nil, err
		}
		q = rq
	default:
		q = NewMemoryQueue(cfg.Persistence.Buffer)
	}
	return NewDispatcher(st, append(opts, WithQueue(q))...), nil
}

// Close releases the queue, if any.
func (d *Dispatcher) Close() error {
	if d.queue == nil {
		return nil
	}
	return d.queue.Close()
}
