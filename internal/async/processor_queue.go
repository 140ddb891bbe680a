package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/goods-receipt/internal/pipeline"
	"github.com/joseph-ayodele/goods-receipt/internal/reconcile"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("queue is shutting down")

// DocumentProcessor is satisfied by *pipeline.Processor.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID uuid.UUID, opts pipeline.Options) (*reconcile.Outcome, error)
}

type ProcessorQueue struct {
	proc    DocumentProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex // guards closed and sends on ch
	closed bool

	pmu     sync.Mutex
	pending map[uuid.UUID]struct{}
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		pending: map[uuid.UUID]struct{}{},
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := range q.workers {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	q.pmu.Lock()
	delete(q.pending, job.DocumentID)
	q.pmu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	out, err := q.proc.Process(ctx, job.DocumentID, pipeline.Options{ClearOCR: job.ClearOCR})
	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "document_id", job.DocumentID, "source", job.Source, "error", err)
		return
	}
	q.logger.Info("queue.job.done",
		"worker_id", workerID,
		"document_id", job.DocumentID,
		"status", out.Result.Status,
		"wait_ms", time.Since(job.SubmittedAt).Milliseconds(),
	)
}

// Enqueue blocks while the buffer is full, until ctx ends. A document already
// waiting in the buffer is not queued twice unless job.Force is set.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "document_id", job.DocumentID)
		return ErrClosed
	}
	q.pmu.Lock()
	_, dup := q.pending[job.DocumentID]
	if dup && !job.Force {
		q.pmu.Unlock()
		q.logger.Debug("queue.enqueue.duplicate", "document_id", job.DocumentID)
		return nil
	}
	q.pending[job.DocumentID] = struct{}{}
	q.pmu.Unlock()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.enqueue.backpressure", "document_id", job.DocumentID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			if !dup {
				q.pmu.Lock()
				delete(q.pending, job.DocumentID)
				q.pmu.Unlock()
			}
			return ctx.Err()
		}
	}
	q.logger.Info("queue.enqueue.ok", "document_id", job.DocumentID, "force", job.Force, "source", job.Source)
	return nil
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
