package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
	DefaultTimeout   = 10 * time.Second
)

type Syncer interface {
	Sync(ctx context.Context, userID string) error
}

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Worker runs reconciliations in the background. A user already waiting in the
// queue is not queued again.
type Worker struct {
	syncer  Syncer
	log     *slog.Logger
	workers int
	timeout time.Duration
	queue   chan string

	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool

	wg sync.WaitGroup
}

func NewWorker(syncer Syncer, cfg Config, log *slog.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		syncer:  syncer,
		log:     log,
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		queue:   make(chan string, cfg.QueueSize),
		pending: make(map[string]struct{}),
	}
}

// Enqueue never blocks. When the queue is full the job is dropped; the next
// mutation for that user schedules a fresh one.
func (w *Worker) Enqueue(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.log.Warn("reconcile worker closed, dropping job", "user_id", userID)
		return
	}
	if _, ok := w.pending[userID]; ok {
		return
	}

	select {
	case w.queue <- userID:
		w.pending[userID] = struct{}{}
	default:
		w.log.Warn("reconcile queue full, dropping job", "user_id", userID)
	}
}

// Run blocks until ctx is cancelled. Jobs still queued at that point are drained
// before it returns.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("reconcile worker started", "workers", w.workers)

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}

	<-ctx.Done()
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.wg.Wait()
	w.drain()
	w.log.Info("reconcile worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case userID := <-w.queue:
			w.process(userID)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case userID := <-w.queue:
			w.process(userID)
		default:
			return
		}
	}
}

func (w *Worker) process(userID string) {
	w.mu.Lock()
	delete(w.pending, userID)
	w.mu.Unlock()

	// Detached from any request: the caller has already been answered.
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.syncer.Sync(ctx, userID); err != nil {
		w.log.Error("cart reconciliation failed", "user_id", userID, "err", err)
		return
	}
	w.log.Debug("cart reconciliation done", "user_id", userID, "duration", time.Since(start))
}
