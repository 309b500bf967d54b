// Package inmemory provides a channel-backed job queue and a map-backed job
// store for single-instance deployments and tests.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-normalizer/internal/jobs"
	"github.com/dvloznov/statement-normalizer/internal/logger"
)

// DefaultWorkers is the number of concurrent conversions when none is configured.
const DefaultWorkers = 5

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// Queue hands conversion jobs to a fixed pool of workers over a buffered
// channel. Failed jobs are re-published after a linear backoff until their
// retry budget is spent.
type Queue struct {
	pending chan *jobs.ConvertFileJob
	done    chan struct{}
	store   jobs.JobStore
	workers int

	mu       sync.RWMutex
	stopped  bool
	inFlight sync.WaitGroup

	// Backoff is multiplied by the retry count before a failed job is re-enqueued.
	Backoff time.Duration
}

// NewQueue creates a queue. PublishConvertFile blocks once bufferSize jobs
// are waiting. store may be nil.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		pending: make(chan *jobs.ConvertFileJob, bufferSize),
		done:    make(chan struct{}),
		store:   store,
		workers: workers,
		Backoff: time.Second,
	}
}

// PublishConvertFile fills in the job defaults, saves it and enqueues it.
func (q *Queue) PublishConvertFile(ctx context.Context, job *jobs.ConvertFileJob) error {
	q.mu.RLock()
	stopped := q.stopped
	q.mu.RUnlock()
	if stopped {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	if err := q.save(ctx, job); err != nil {
		return err
	}

	// The lock is not held here: Stop closes done while a full buffer blocks us.
	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

// Start launches the workers and returns immediately.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.inFlight.Add(1)
		go q.work(ctx, handler)
	}
	return nil
}

func (q *Queue) work(ctx context.Context, handler jobs.JobHandler) {
	defer q.inFlight.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case job := <-q.pending:
			q.run(ctx, job, handler)
		}
	}
}

// run executes one attempt of job and records its outcome.
func (q *Queue) run(ctx context.Context, job *jobs.ConvertFileJob, handler jobs.JobHandler) {
	ctx, log := logger.Scoped(ctx, "job_id", job.JobID, "gcs_uri", job.GCSURI)

	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	_ = q.save(ctx, job)

	err := handler(ctx, job)

	finished := time.Now()
	job.CompletedAt = &finished

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Int("records", job.RecordCount).Str("output_uri", job.OutputURI).Msg("Job completed")

	case job.RetryCount < job.MaxRetries:
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		backoff := time.Duration(job.RetryCount) * q.Backoff
		log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", backoff).Msg("Job failed, retrying")

		next := *job
		next.Status = jobs.JobStatusPending
		next.StartedAt = nil
		next.CompletedAt = nil
		// Deferred so the retrying state is saved before the retry can run.
		defer time.AfterFunc(backoff, func() {
			if err := q.PublishConvertFile(ctx, &next); err != nil {
				log.Error().Err(err).Msg("Failed to re-enqueue job")
			}
		})

	default:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Int("attempts", job.RetryCount+1).Msg("Job failed permanently")
	}

	_ = q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.ConvertFileJob) error {
	if q.store == nil {
		return nil
	}
	return q.store.SaveJob(ctx, job)
}

// Stop refuses new jobs and waits for the workers to return or ctx to end.
// Jobs still buffered are dropped.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.done)
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.inFlight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
