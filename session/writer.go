package session

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/logging"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Workers is the number of goroutines saving records.
	Workers int
	// QueueSize bounds the records waiting to be saved. Enqueue blocks when
	// the queue is full.
	QueueSize int
	// MaxTries bounds the save attempts per record.
	MaxTries uint
	// InitialInterval and MaxInterval shape the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// SaveTimeout bounds a single save attempt.
	SaveTimeout time.Duration
	// OnResult is called once per record after the last attempt.
	OnResult func(rec core.SessionRecord, attempts int, err error)
	Logger   logging.Logger
}

type job struct {
	ctx context.Context
	rec core.SessionRecord
}

// Writer persists session records in the background. Records are saved at
// least once; the sink must treat repeated saves as upserts.
type Writer struct {
	sink core.SessionSink
	opts WriterOptions

	queue   chan job
	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
	pending sync.WaitGroup
}

// NewWriter starts a Writer on sink.
func NewWriter(sink core.SessionSink, optFns ...func(o *WriterOptions)) *Writer {
	opts := WriterOptions{
		Workers:         2,
		QueueSize:       64,
		MaxTries:        5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		SaveTimeout:     10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxTries < 1 {
		opts.MaxTries = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	w := &Writer{
		sink:  sink,
		opts:  opts,
		queue: make(chan job, opts.QueueSize),
	}
	w.workers.Add(opts.Workers)
	for range opts.Workers {
		go w.run()
	}
	return w
}

// Enqueue hands rec to the background workers. The record is saved with a
// context detached from ctx's cancellation, so a timed out session is still
// persisted.
func (w *Writer) Enqueue(ctx context.Context, rec core.SessionRecord) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.pending.Add(1)
	select {
	case w.queue <- job{ctx: context.WithoutCancel(ctx), rec: rec.Clone()}:
		return nil
	case <-ctx.Done():
		w.pending.Done()
		return ctx.Err()
	}
}

// Flush waits until every enqueued record has been handled.
func (w *Writer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting records and waits for the queue to drain.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run() {
	defer w.workers.Done()
	for j := range w.queue {
		w.persist(j)
	}
}

func (w *Writer) persist(j job) {
	defer w.pending.Done()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.opts.InitialInterval
	eb.MaxInterval = w.opts.MaxInterval

	attempts := 0
	_, err := backoff.Retry(j.ctx, func() (struct{}, error) {
		attempts++
		ctx, cancel := context.WithTimeout(j.ctx, w.opts.SaveTimeout)
		defer cancel()
		return struct{}{}, w.sink.Save(ctx, j.rec)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(w.opts.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.opts.Logger.Warn("session.persist.retry", "session_id", j.rec.SessionID, "error", err.Error(), "next_ms", next.Milliseconds())
		}),
	)

	if err != nil {
		w.opts.Logger.Error("session.persist.failed", "session_id", j.rec.SessionID, "attempts", attempts, "error", err.Error())
	} else {
		w.opts.Logger.Debug("session.persist.saved", "session_id", j.rec.SessionID, "attempts", attempts)
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(j.rec, attempts, err)
	}
}
