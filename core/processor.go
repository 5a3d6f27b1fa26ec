package core

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/imagesizer/config"
	apperrors "github.com/Skryldev/imagesizer/errors"
)

// Processor is the batch orchestrator.  It runs independent single-file
// transforms, either synchronously, on a bounded fan-out, or on a worker
// pool.  It is safe for concurrent use.
type Processor struct {
	cfg         config.Config
	transformer Transformer
	logger      Logger
	metrics     MetricsCollector

	// Worker pool.
	jobQueue chan Job
	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
	shutdown chan struct{}

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// New creates a Processor with the given config.  Call Start() before
// submitting jobs; call Stop() when done.
func New(cfg config.Config, t Transformer) *Processor {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Processor{
		cfg:         cfg,
		transformer: t,
		logger:      NopLogger{},
		jobQueue:    make(chan Job, queueSize),
		shutdown:    make(chan struct{}),
	}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) {
	if l == nil {
		l = NopLogger{}
	}
	p.logger = l
}

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m MetricsCollector) { p.metrics = m }

// Start launches the worker pool.  It is idempotent.
func (p *Processor) Start() {
	p.once.Do(func() {
		for i := 0; i < p.workerCount(); i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop shuts down all workers after their current job.  It is idempotent.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.shutdown) })
	p.wg.Wait()
}

// Process runs a single transform with retry of transient failures and the
// configured job timeout.
func (p *Processor) Process(ctx context.Context, req Request, progress ProgressFunc) (*TransformResult, error) {
	if timeout := p.cfg.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.runWithRetry(ctx, req, progress)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.logger.Error("transform.failed",
			"source", req.SourcePath,
			"error", err.Error(),
		)
		if p.metrics != nil {
			p.metrics.RecordError("transform", string(apperrors.CategoryOf(err)))
		}
		return nil, err
	}

	atomic.AddInt64(&p.processedCount, 1)
	p.logger.Info("transform.done",
		"source", req.SourcePath,
		"outcome", string(res.Outcome),
		"output", res.OutputPath,
		"ratio", res.Ratio,
		"iterations", res.Iterations,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if p.metrics != nil {
		p.metrics.RecordOutcome(res.Outcome)
		p.metrics.RecordProcessingTime("transform", time.Since(start))
	}
	return res, nil
}

// Submit enqueues an async job.  Returns ErrWorkerPoolFull if the queue is full.
func (p *Processor) Submit(job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return apperrors.New(apperrors.CategoryPipeline, "submit", apperrors.ErrWorkerPoolFull)
	}
}

// Batch runs every request with at most WorkerCount transforms in flight.  A
// failing file never stops the others: its error lands at the same index of
// the returned error slice.  When updates is non-nil it receives per-file
// progress and a final Done update per file; Batch does not close it.
func (p *Processor) Batch(ctx context.Context, reqs []Request, updates chan<- ProgressUpdate) ([]*TransformResult, []error) {
	results := make([]*TransformResult, len(reqs))
	errs := make([]error, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workerCount())

	for i, req := range reqs {
		id := uuid.NewString()
		g.Go(func() error {
			var progress ProgressFunc
			if updates != nil {
				progress = func(f float64) {
					updates <- ProgressUpdate{JobID: id, Index: i, Path: req.SourcePath, Fraction: f}
				}
			}
			res, err := p.Process(gctx, req, progress)
			results[i] = res
			errs[i] = err
			if updates != nil {
				updates <- ProgressUpdate{JobID: id, Index: i, Path: req.SourcePath, Fraction: 1, Done: true, Result: res, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

// ── worker pool internals ──────────────────────────────────────────────────────

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.shutdown:
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.processJob(job)
		}
	}
}

func (p *Processor) processJob(job Job) {
	result, err := p.Process(job.Ctx, job.Request, job.Progress)
	if job.ResultCh != nil {
		job.ResultCh <- JobResult{JobID: job.ID, Result: result, Err: err}
	}
}

func (p *Processor) runWithRetry(ctx context.Context, req Request, progress ProgressFunc) (*TransformResult, error) {
	maxRetries := p.cfg.MaxRetries
	delay := p.cfg.RetryDelay

	var (
		result *TransformResult
		err    error
	)
	for i := 0; i <= maxRetries; i++ {
		result, err = p.transformer.Transform(ctx, req, progress)
		if err == nil || !apperrors.IsRetryable(err) {
			return result, err
		}
		if i < maxRetries {
			p.logger.Warn("transform.retry", "source", req.SourcePath, "attempt", i+1, "error", err.Error())
			select {
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.CategoryPipeline, "transform", ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return result, err
}

func (p *Processor) workerCount() int {
	if p.cfg.WorkerCount > 0 {
		return p.cfg.WorkerCount
	}
	return runtime.NumCPU()
}

// ProcessedCount returns the total number of successfully processed images.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of processing errors.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }
