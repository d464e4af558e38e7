// Package inmemory runs refresh jobs on an in-process goroutine. It is the
// queue behind the CLI and the worker; a hosted deployment would swap it for
// Cloud Tasks or Pub/Sub behind the same jobs interfaces.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/bet-tracker/internal/jobs"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/google/uuid"
)

const defaultMaxRetries = 3

var (
	ErrQueueClosed    = errors.New("queue is closed")
	ErrAlreadyStarted = errors.New("queue already started")
)

// Queue runs refresh jobs one at a time. While a refresh is waiting to run,
// further refreshes are coalesced into it rather than queued behind it, so a
// burst of writes costs one rebuild. Jobs still waiting when Stop is called
// run before Stop returns.
type Queue struct {
	ready   chan *jobs.RefreshFinalBalancesJob
	done    chan struct{}
	wg      sync.WaitGroup
	store   jobs.JobStore
	backoff time.Duration

	mu      sync.Mutex
	closed  bool
	started bool
	// waiting is the published job no worker has picked up yet.
	waiting *jobs.RefreshFinalBalancesJob
}

// NewQueue returns a queue whose channel holds bufferSize jobs. store may be
// nil when job history is not needed.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Queue{
		ready:   make(chan *jobs.RefreshFinalBalancesJob, bufferSize),
		done:    make(chan struct{}),
		store:   store,
		backoff: time.Second,
	}
}

// WithBackoff sets the base retry delay. The delay grows linearly with each
// retry.
func (q *Queue) WithBackoff(d time.Duration) *Queue {
	q.backoff = d
	return q
}

// PublishRefresh schedules job, or folds it into the refresh already waiting.
func (q *Queue) PublishRefresh(ctx context.Context, job *jobs.RefreshFinalBalancesJob) error {
	log := logger.FromContext(ctx)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	stamp(job)
	if w := q.waiting; w != nil {
		w.Coalesced++
		q.save(ctx, w)
		job.Status = jobs.JobStatusCoalesced
		q.save(ctx, job)
		q.mu.Unlock()

		log.Debug().
			Str("job_id", job.JobID).
			Str("into", w.JobID).
			Str("reason", job.Reason).
			Msg("Refresh coalesced into waiting job")
		return nil
	}
	q.waiting = job
	q.save(ctx, job)
	q.mu.Unlock()

	select {
	case q.ready <- job:
		return nil
	case <-ctx.Done():
		q.forget(job)
		return ctx.Err()
	case <-q.done:
		q.forget(job)
		return ErrQueueClosed
	}
}

// Start launches the worker goroutine. It stops when ctx is cancelled or
// Stop is called.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.started {
		return ErrAlreadyStarted
	}
	q.started = true

	q.wg.Add(1)
	go q.run(logger.WithComponent(ctx, "refresh-queue"), handler)
	return nil
}

func (q *Queue) run(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			for {
				select {
				case job := <-q.ready:
					q.process(ctx, job, handler)
				default:
					return
				}
			}
		case job := <-q.ready:
			q.process(ctx, job, handler)
		}
	}
}

func (q *Queue) process(ctx context.Context, job *jobs.RefreshFinalBalancesJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx)

	q.mu.Lock()
	if q.waiting == job {
		q.waiting = nil
	}
	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	q.save(ctx, job)
	q.mu.Unlock()

	err := handler(ctx, job)

	finished := time.Now()
	job.CompletedAt = &finished
	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		log.Debug().
			Str("job_id", job.JobID).
			Int("coalesced", job.Coalesced).
			Dur("took", finished.Sub(started)).
			Msg("Refresh job completed")

	case job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		q.save(ctx, job)
		log.Warn().
			Err(err).
			Str("job_id", job.JobID).
			Int("retry_count", job.RetryCount).
			Msg("Refresh job failed, scheduling retry")
		q.retryLater(ctx, *job)

	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Refresh job failed permanently")
	}
}

func (q *Queue) retryLater(ctx context.Context, retry jobs.RefreshFinalBalancesJob) {
	time.AfterFunc(time.Duration(retry.RetryCount)*q.backoff, func() {
		retry.Status = jobs.JobStatusPending
		retry.StartedAt = nil
		retry.CompletedAt = nil
		retry.Coalesced = 0
		if err := q.PublishRefresh(ctx, &retry); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("job_id", retry.JobID).Msg("Dropping refresh retry")
		}
	})
}

func (q *Queue) forget(job *jobs.RefreshFinalBalancesJob) {
	q.mu.Lock()
	if q.waiting == job {
		q.waiting = nil
	}
	q.mu.Unlock()
}

func (q *Queue) save(ctx context.Context, job *jobs.RefreshFinalBalancesJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record job state")
	}
}

func stamp(job *jobs.RefreshFinalBalancesJob) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}
}

// Stop refuses new jobs, runs the ones already waiting and waits for the
// worker to exit or ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
