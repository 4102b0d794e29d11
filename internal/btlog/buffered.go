package btlog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/bte/internal/bt"
)

const (
	// DefaultBatchSize is the number of transitions written per batch.
	DefaultBatchSize = 10
	// DefaultFlushInterval bounds how long a partial batch waits.
	DefaultFlushInterval = time.Second
	// DefaultQueueSize is the capacity of the transition queue.
	DefaultQueueSize = 1024
	// DefaultWriteTimeout bounds a single WriteBatch call.
	DefaultWriteTimeout = 5 * time.Second
)

// Buffered is an asynchronous sink. Observe never blocks: when the queue is
// full the transition is dropped and counted.
type Buffered struct {
	backend      Backend
	logger       *slog.Logger
	batchSize    int
	interval     time.Duration
	writeTimeout time.Duration

	queue    chan bt.Transition
	flushReq chan chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	dropped  atomic.Uint64

	// closing is set under mu before done is closed, so nothing is queued
	// after the final drain.
	mu      sync.RWMutex
	closing bool

	closeOnce sync.Once
	closeErr  error
}

// BufferedOption configures a Buffered sink.
type BufferedOption func(*Buffered)

// WithBatchSize sets the number of transitions that triggers a write.
func WithBatchSize(n int) BufferedOption {
	return func(b *Buffered) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithFlushInterval sets how often a partial batch is written.
func WithFlushInterval(d time.Duration) BufferedOption {
	return func(b *Buffered) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithQueueSize sets the number of transitions that may be queued before
// Observe starts dropping.
func WithQueueSize(n int) BufferedOption {
	return func(b *Buffered) {
		if n > 0 {
			b.queue = make(chan bt.Transition, n)
		}
	}
}

// WithWriteTimeout bounds each backend write.
func WithWriteTimeout(d time.Duration) BufferedOption {
	return func(b *Buffered) {
		if d > 0 {
			b.writeTimeout = d
		}
	}
}

// WithLogger sets the logger for backend errors.
func WithLogger(logger *slog.Logger) BufferedOption {
	return func(b *Buffered) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuffered starts a sink writing to backend. Close must be called to
// stop it.
func NewBuffered(backend Backend, opts ...BufferedOption) *Buffered {
	b := &Buffered{
		backend:      backend,
		logger:       slog.Default(),
		batchSize:    DefaultBatchSize,
		interval:     DefaultFlushInterval,
		writeTimeout: DefaultWriteTimeout,
		flushReq:     make(chan chan struct{}),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.queue == nil {
		b.queue = make(chan bt.Transition, DefaultQueueSize)
	}
	go b.run()
	return b
}

// Attach subscribes the sink to tree. The returned function unsubscribes.
func (b *Buffered) Attach(tree *bt.Tree) (cancel func()) {
	return tree.Subscribe(b.Observe)
}

// Observe queues tr. It is a bt.StatusChangeFunc. Transitions observed
// after Close, or while the queue is full, are dropped.
func (b *Buffered) Observe(tr bt.Transition) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closing {
		b.dropped.Add(1)
		return
	}
	select {
	case b.queue <- tr:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns the number of transitions discarded so far.
func (b *Buffered) Dropped() uint64 { return b.dropped.Load() }

// Flush writes everything queued so far and waits for the write to finish.
func (b *Buffered) Flush() {
	ack := make(chan struct{})
	select {
	case b.flushReq <- ack:
		<-ack
	case <-b.stopped:
	}
}

// Close drains the queue, writes the remainder, and closes the backend.
// It is idempotent and returns the backend's Close error.
func (b *Buffered) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closing = true
		b.mu.Unlock()
		close(b.done)
		<-b.stopped
		b.closeErr = b.backend.Close()
	})
	return b.closeErr
}

func (b *Buffered) run() {
	defer close(b.stopped)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	batch := b.newBatch()
	for {
		select {
		case tr := <-b.queue:
			batch = append(batch, tr)
			if len(batch) >= b.batchSize {
				batch = b.write(batch)
			}
		case <-ticker.C:
			batch = b.write(batch)
		case ack := <-b.flushReq:
			batch = b.write(b.drain(batch))
			close(ack)
		case <-b.done:
			b.write(b.drain(batch))
			return
		}
	}
}

func (b *Buffered) drain(batch []bt.Transition) []bt.Transition {
	for {
		select {
		case tr := <-b.queue:
			batch = append(batch, tr)
			if len(batch) >= b.batchSize {
				batch = b.write(batch)
			}
		default:
			return batch
		}
	}
}

func (b *Buffered) write(batch []bt.Transition) []bt.Transition {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.writeTimeout)
	defer cancel()
	if err := b.backend.WriteBatch(ctx, batch); err != nil {
		b.logger.Error("[btlog] write failed",
			"transitions", len(batch),
			"error", err)
	}
	return b.newBatch()
}

func (b *Buffered) newBatch() []bt.Transition {
	return make([]bt.Transition, 0, b.batchSize)
}
