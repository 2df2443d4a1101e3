package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/joseph-ayodele/receipts-extractor/internal/ingest"
	"github.com/joseph-ayodele/receipts-extractor/internal/pipeline"
)

// ProcessorQueue feeds jobs to a pool of workers. Each worker owns its own
// pipeline.Processor, so at most one file is in flight per worker.
type ProcessorQueue struct {
	newProc func() *pipeline.Processor
	sink    ResultSink
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool

	activeMu sync.Mutex
	active   map[string]*pipeline.Processor // fileID -> processor handling it
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

// NewProcessorQueue starts the workers. newProc is called once per worker.
func NewProcessorQueue(newProc func() *pipeline.Processor, sink ResultSink, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		newProc: newProc,
		sink:    sink,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		active:  map[string]*pipeline.Processor{},
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
				proc := q.newProc()
				logger := q.logger.With("worker_id", workerID)
				logger.Info("queue.worker.started")

				for job := range q.ch {
					q.handle(proc, logger, job)
				}

				logger.Info("queue.worker.stopped")
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) handle(proc *pipeline.Processor, logger *slog.Logger, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	lf, err := ingest.ReadFile(job.Path)
	if err != nil {
		logger.Error("queue.read.failed", "path", job.Path, "err", err)
		q.record(ctx, logger, Outcome{Job: job, Err: err})
		return
	}
	out := Outcome{Job: job, FileID: lf.Input.FileID, FileName: lf.Input.FileName, HashHex: lf.HashHex}

	if d, ok := q.sink.(Deduper); ok && !job.Force && lf.HashHex != "" {
		done, err := d.Completed(ctx, lf.HashHex)
		if err != nil {
			logger.Warn("queue.dedupe.failed", "path", job.Path, "err", err)
		} else if done {
			logger.Info("queue.skip.cached", "path", job.Path, "content_hash", lf.HashHex)
			return
		}
	}

	q.track(out.FileID, proc)
	out.Result, out.Err = proc.Process(ctx, lf.Input, job.Options, nil)
	q.untrack(out.FileID)

	if out.Err != nil {
		logger.Error("queue.process.failed", "file_id", out.FileID, "path", job.Path, "err", out.Err)
	} else {
		logger.Info("queue.process.ok", "file_id", out.FileID, "path", job.Path,
			"queued_ms", time.Since(job.SubmittedAt).Milliseconds())
	}
	q.record(ctx, logger, out)
}

func (q *ProcessorQueue) record(ctx context.Context, logger *slog.Logger, out Outcome) {
	if q.sink == nil {
		return
	}
	if err := q.sink.Record(ctx, out); err != nil {
		logger.Error("queue.sink.failed", "file_id", out.FileID, "err", err)
	}
}

func (q *ProcessorQueue) track(fileID string, proc *pipeline.Processor) {
	q.activeMu.Lock()
	q.active[fileID] = proc
	q.activeMu.Unlock()
}

func (q *ProcessorQueue) untrack(fileID string) {
	q.activeMu.Lock()
	delete(q.active, fileID)
	q.activeMu.Unlock()
}

// Cancel requests cancellation of an in-flight file. It reports false when
// no worker is processing fileID.
func (q *ProcessorQueue) Cancel(fileID string) bool {
	q.activeMu.Lock()
	defer q.activeMu.Unlock()
	proc, ok := q.active[fileID]
	if ok {
		proc.Cancel(fileID)
	}
	return ok
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueue.ok", "path", job.Path, "force", job.Force)
		return nil
	default:
	}
	q.logger.Warn("queue.full", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for the queued ones to drain, or
// for ctx to end.
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
		q.logger.Info("queue.shutdown.ok")
	}
}
