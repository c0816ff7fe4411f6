// Package async runs pipeline items on a bounded worker pool. Items carry
// no data dependency on each other, so the pool needs no coordination
// beyond collecting per-item results.
package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/dangbaokhoa/identity-card/internal/extract"
	"github.com/dangbaokhoa/identity-card/internal/pipeline"
)

// Job is one image to run through the pipeline.
type Job struct {
	ID          uuid.UUID
	Path        string
	UseQR       bool // decode the QR payload instead of the visual pipeline
	SubmittedAt time.Time
}

// Result is the per-item outcome. Err is attached to the item and never
// aborts sibling items.
type Result struct {
	Job    Job
	Record extract.Record
	Err    error
}

// ProcessorQueue fans jobs out to a fixed set of workers over one shared
// Processor.
type ProcessorQueue struct {
	proc     *pipeline.Processor
	logger   *slog.Logger
	onResult func(Result)
	workers  int
	timeout  time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
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

// NewProcessorQueue starts the workers immediately. onResult is invoked
// from worker goroutines and may be nil.
func NewProcessorQueue(proc *pipeline.Processor, logger *slog.Logger, onResult func(Result), opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:     proc,
		logger:   logger,
		onResult: onResult,
		workers:  4,
		timeout:  2 * time.Minute,
		ch:       make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					var rec extract.Record
					var err error
					if job.UseQR {
						rec, err = q.proc.ProcessQR(ctx, job.Path)
					} else {
						rec, err = q.proc.ProcessImage(ctx, job.Path)
					}
					cancel()

					if err != nil {
						q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "error", err)
					} else {
						q.logger.Info("processed image", "worker_id", workerID, "path", job.Path)
					}
					if q.onResult != nil {
						q.onResult(Result{Job: job, Record: rec, Err: err})
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued image for processing", "path", job.Path, "qr", job.UseQR)
	default:
		q.logger.Warn("queue full, applying backpressure", "path", job.Path)
		q.ch <- job
	}
	return nil
}

// Shutdown stops intake, drains in-flight jobs, and waits for the workers
// up to the context deadline.
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
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
