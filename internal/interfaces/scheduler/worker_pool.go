package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	jobTracer          = otel.Tracer("mise/scheduler")
	jobMeter           = otel.Meter("mise/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

const defaultJobTimeout = 2 * time.Minute

// WorkerPool runs jobs on a fixed number of goroutines fed from a bounded
// queue. Submit never blocks; a full queue drops the job.
type WorkerPool struct {
	workerCount int
	jobDelay    time.Duration
	jobTimeout  time.Duration
	jobs        chan Job
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger
}

func NewWorkerPool(workerCount int, jobDelay time.Duration, queueSize int, logger *zap.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: max(1, workerCount),
		jobDelay:    jobDelay,
		jobTimeout:  defaultJobTimeout,
		jobs:        make(chan Job, max(1, queueSize)),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("worker_pool"),
	}
}

// WithJobTimeout overrides the per-job deadline. Call before Start.
func (wp *WorkerPool) WithJobTimeout(d time.Duration) *WorkerPool {
	if d > 0 {
		wp.jobTimeout = d
	}
	return wp
}

func (wp *WorkerPool) Start() {
	wp.logger.Info("starting worker pool", zap.Int("workers", wp.workerCount), zap.Duration("job_delay", wp.jobDelay))

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}

			wp.processJob(id, job)

			if wp.jobDelay > 0 {
				select {
				case <-time.After(wp.jobDelay):
				case <-wp.ctx.Done():
					return
				}
			}
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.user_id", job.UserID()),
		),
	)
	defer span.End()

	start := time.Now()
	err := job.Execute(ctx)
	elapsed := time.Since(start)
	jobDuration.Record(ctx, elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		wp.logger.Error("job failed",
			zap.Int("worker", workerID),
			zap.String("job", job.Description()),
			zap.String("user_id", job.UserID()),
			zap.Error(err),
		)
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	wp.logger.Debug("job completed",
		zap.Int("worker", workerID),
		zap.String("job", job.Description()),
		zap.Duration("duration", elapsed),
	)
}

// Submit enqueues a job without blocking.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	case wp.jobs <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		return fmt.Errorf("job queue full, dropping job for user %s", job.UserID())
	}
}

// SubmitBatch enqueues jobs and reports how many were accepted.
func (wp *WorkerPool) SubmitBatch(jobs []Job) int {
	submitted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			wp.logger.Warn("job not submitted", zap.String("user_id", job.UserID()), zap.Error(err))
			continue
		}
		submitted++
	}
	wp.logger.Info("jobs submitted", zap.Int("submitted", submitted), zap.Int("total", len(jobs)))
	return submitted
}

// Shutdown stops accepting jobs and waits for the queue to drain.
func (wp *WorkerPool) Shutdown() {
	close(wp.jobs)
	wp.wg.Wait()
	wp.cancel()
}

// ShutdownWithTimeout drains the queue but cancels in-flight jobs once
// timeout elapses.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	close(wp.jobs)

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Info("worker pool drained")
	case <-time.After(timeout):
		wp.logger.Warn("worker pool shutdown timed out, cancelling jobs", zap.Duration("timeout", timeout))
	}
	wp.cancel()
}
