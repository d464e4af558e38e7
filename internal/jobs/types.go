// Package jobs defines the background work the ledger schedules after
// writes. Today that is a single job kind: rebuilding the advisory
// final_balance cache of every month.
package jobs

import (
	"context"
	"time"
)

// JobType names a kind of background job.
type JobType string

const JobTypeRefreshFinalBalances JobType = "refresh_final_balances"

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
	// JobStatusCoalesced marks a refresh that was folded into one already
	// waiting in the queue. A refresh recomputes every month, so the waiting
	// one covers the write that triggered this one.
	JobStatusCoalesced JobStatus = "coalesced"
)

// RefreshFinalBalancesJob asks for the final_balance cache to be rebuilt
// after a ledger write.
type RefreshFinalBalancesJob struct {
	JobID string `json:"job_id"`

	// Reason names the write that triggered the refresh.
	Reason        string `json:"reason"`
	TransactionID string `json:"transaction_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Coalesced counts later refreshes this job absorbed while waiting.
	Coalesced  int `json:"coalesced"`
	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is what a JobHandler receives.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *RefreshFinalBalancesJob) GetID() string        { return j.JobID }
func (j *RefreshFinalBalancesJob) GetType() JobType     { return JobTypeRefreshFinalBalances }
func (j *RefreshFinalBalancesJob) GetStatus() JobStatus { return j.Status }

// Publisher schedules refresh jobs. The ledger service only depends on this
// side of a queue.
type Publisher interface {
	PublishRefresh(ctx context.Context, job *RefreshFinalBalancesJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop returns once queued jobs are drained and in-flight jobs complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error makes the job eligible
// for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore records job state for inspection.
type JobStore interface {
	SaveJob(ctx context.Context, job *RefreshFinalBalancesJob) error
	GetJob(ctx context.Context, jobID string) (*RefreshFinalBalancesJob, error)
	// Counts returns how many recorded jobs are in each status.
	Counts(ctx context.Context) (map[JobStatus]int, error)
}
