// Package flusher drains accumulated ingestion batches into the relational
// store through a bounded worker pool: each worker owns a connection for
// the lifetime of one transaction, retries deadlocks with jittered
// exponential backoff, and otherwise logs and drops a batch rather than
// crashing the pool.
package flusher

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/hartonomous/substrate/internal/record"
)

// Writer is the subset of store.Store the flusher depends on, narrowed so
// tests can substitute an in-memory fake without dragging in Postgres.
type Writer interface {
	WriteBatch(ctx context.Context, batch record.SubstrateBatch) error
}

// DeadlockClassifier reports whether an error from Writer.WriteBatch is a
// retryable deadlock, matching store.IsDeadlock's signature so the flusher
// never imports the store package directly.
type DeadlockClassifier func(err error) bool

// Flusher owns a bounded channel of pending batches and a fixed pool of
// workers draining it. One connection per worker for the lifetime of one
// transaction is the resource discipline the worker loop preserves; the
// channel's block-until-slot-free/block-until-non-empty semantics replace
// the mutex-and-condition-variable pair a non-Go implementation of this
// pattern would need.
type Flusher struct {
	writer      Writer
	isDeadlock  DeadlockClassifier
	log         zerolog.Logger
	queue       chan record.SubstrateBatch
	wg          sync.WaitGroup
	busy        atomic.Int64
	maxRetries  int
	dropped     atomic.Int64
	flushedOnce sync.Once
	stopCh      chan struct{}
}

// Options configures a Flusher.
type Options struct {
	Workers         int
	QueueCapacity   int
	DeadlockRetries int
	Logger          zerolog.Logger
}

// New starts Workers goroutines draining a queue of QueueCapacity batches
// and returns the running Flusher. Call Shutdown to stop it.
func New(writer Writer, isDeadlock DeadlockClassifier, opts Options) *Flusher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 1
	}
	f := &Flusher{
		writer:     writer,
		isDeadlock: isDeadlock,
		log:        opts.Logger,
		queue:      make(chan record.SubstrateBatch, opts.QueueCapacity),
		maxRetries: opts.DeadlockRetries,
		stopCh:     make(chan struct{}),
	}
	f.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go f.worker(i)
	}
	return f
}

// Enqueue blocks until a queue slot is free or the Flusher has begun
// shutting down, in which case it is a no-op and returns false.
func (f *Flusher) Enqueue(batch record.SubstrateBatch) bool {
	select {
	case <-f.stopCh:
		return false
	default:
	}
	select {
	case f.queue <- batch:
		return true
	case <-f.stopCh:
		return false
	}
}

// WaitAll blocks until the queue is empty and no worker is mid-transaction.
// It does not stop the pool; callers may enqueue again afterward.
func (f *Flusher) WaitAll() {
	for {
		if len(f.queue) == 0 && f.busy.Load() == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Shutdown signals that no new enqueues are accepted, closes the queue so
// workers drain whatever it still holds, and joins every worker. A worker only exits once the
// stop signal has been raised and the queue is empty, so in-flight batches
// always finish or are logged as dropped before Shutdown returns.
func (f *Flusher) Shutdown() {
	f.flushedOnce.Do(func() {
		close(f.stopCh)
		close(f.queue)
	})
	f.wg.Wait()
}

// Dropped returns the cumulative count of batches abandoned after
// exhausting deadlock retries or hitting a non-deadlock write error.
func (f *Flusher) Dropped() int64 {
	return f.dropped.Load()
}

func (f *Flusher) worker(id int) {
	defer f.wg.Done()
	for batch := range f.queue {
		f.busy.Add(1)
		if err := f.writeWithRetry(batch); err != nil {
			f.dropped.Add(1)
			f.log.Error().Int("worker", id).Err(err).Msg("dropping batch after write failure")
		}
		f.busy.Add(-1)
	}
}

// writeWithRetry commits batch, re-running the entire transaction (never
// just the failing statement, since a deadlock rollback undoes every
// statement already applied in that transaction) up to maxRetries times
// when the error is a deadlock. Any other error, or retry exhaustion,
// returns immediately so the caller can drop the batch and move on.
func (f *Flusher) writeWithRetry(batch record.SubstrateBatch) error {
	op := func() (struct{}, error) {
		err := f.writer.WriteBatch(context.Background(), batch)
		if err != nil && f.isDeadlock != nil && f.isDeadlock(err) {
			return struct{}{}, err
		}
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(context.Background(), op,
		backoff.WithBackOff(&deadlockBackoff{}),
		backoff.WithMaxTries(uint(f.maxRetries+1)),
	)
	return err
}

// deadlockBackoff implements base_i + uniform[0, base_i] with
// base_i = 20ms*2^i for retry i = 0, 1, 2, ..., matching the retry schedule
// for deadlocked batch writes.
// Unlike backoff.ExponentialBackOff, this schedule is neither decaying nor
// capped by elapsed time, only by attempt count, so a custom BackOff is
// used instead of configuring the stock one.
type deadlockBackoff struct {
	attempt int
}

func (d *deadlockBackoff) NextBackOff() time.Duration {
	base := 20 * time.Millisecond * time.Duration(1<<uint(d.attempt))
	d.attempt++
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	return base + jitter
}
