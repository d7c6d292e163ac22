package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ProcessorQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration

	base    context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	ch      chan Job
	results chan Result
	wg      sync.WaitGroup
	once    sync.Once

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

// WithBaseContext makes every job context a child of ctx, so cancelling ctx
// aborts running jobs and fails the queued ones.
func WithBaseContext(ctx context.Context) Option {
	return func(q *ProcessorQueue) {
		if ctx != nil {
			q.base = ctx
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

// NewProcessorQueue starts the workers. Results must be drained by the
// caller; the channel is closed after Shutdown once every worker exits.
func NewProcessorQueue(runner Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		runner:  runner,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		base:    context.Background(),
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.ctx, q.cancel = context.WithCancel(q.base)
	q.results = make(chan Result, cap(q.ch))
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.results <- q.run(workerID, job)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
		go func() {
			q.wg.Wait()
			close(q.results)
		}()
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) Result {
	start := time.Now()
	if err := q.ctx.Err(); err != nil {
		q.logger.Debug("job skipped, queue cancelled", "worker_id", workerID, "job_id", job.ID, "path", job.Path)
		return Result{Job: job, Err: err}
	}
	ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
	defer cancel()

	out, err := q.runner.Run(ctx, job.Path, job.Options)
	res := Result{Job: job, Outcome: out, Err: err, Elapsed: time.Since(start)}
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "job_id", job.ID, "path", job.Path, "error", err)
	} else {
		q.logger.Info("processed document successfully", "worker_id", workerID, "job_id", job.ID, "path", job.Path,
			"elapsed_ms", res.Elapsed.Milliseconds())
	}
	return res
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrClosed
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued document for processing", "job_id", job.ID, "path", job.Path)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ProcessorQueue) Results() <-chan Result { return q.results }

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
		q.cancel()
		q.logger.Warn("shutdown interrupted by context, running jobs cancelled")
	case <-done:
		q.cancel()
		q.logger.Info("queue drained, shutdown complete")
	}
}

// Stop closes the queue, cancels running jobs and fails queued ones with
// context.Canceled, then waits for the workers to exit.
func (q *ProcessorQueue) Stop() {
	q.cancel()
	q.Shutdown(context.Background())
}
