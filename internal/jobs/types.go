// Package jobs defines asynchronous conversion jobs and the queue and store
// abstractions that run them.
package jobs

import (
	"context"
	"time"
)

// JobType names the kind of work a job carries.
type JobType string

// JobTypeConvertFile converts one spreadsheet stored in GCS.
const JobTypeConvertFile JobType = "convert_file"

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying marks a failed attempt whose retry is scheduled.
	JobStatusRetrying JobStatus = "retrying"
)

// Terminal reports whether no further attempt will be made.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DefaultMaxRetries is applied to jobs published without MaxRetries.
const DefaultMaxRetries = 3

// ConvertFileJob converts the spreadsheet at GCSURI and uploads the output workbook.
type ConvertFileJob struct {
	JobID  string `json:"job_id"`
	GCSURI string `json:"gcs_uri"`

	// Set by the handler once the file is converted.
	OutputURI    string `json:"output_uri,omitempty"`
	Source       string `json:"source,omitempty"`
	RecordCount  int    `json:"record_count"`
	DocumentID   string `json:"document_id,omitempty"`
	ParsingRunID string `json:"parsing_run_id,omitempty"`
	// Unidentified is the probe of a file no source layout matched. Such a
	// job still completes.
	Unidentified string `json:"unidentified,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Job is what a JobHandler receives.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ConvertFileJob) GetID() string        { return j.JobID }
func (j *ConvertFileJob) GetType() JobType     { return JobTypeConvertFile }
func (j *ConvertFileJob) GetStatus() JobStatus { return j.Status }

// Publisher accepts conversion jobs.
type Publisher interface {
	// PublishConvertFile assigns defaults (ID, status, retries), stores the
	// job and enqueues it.
	PublishConvertFile(ctx context.Context, job *ConvertFileJob) error
	Close() error
}

// Consumer runs a handler over published jobs.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for in-flight jobs to finish or ctx to end.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error schedules a retry until
// MaxRetries is exhausted.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for the API and the worker report.
type JobStore interface {
	SaveJob(ctx context.Context, job *ConvertFileJob) error
	GetJob(ctx context.Context, jobID string) (*ConvertFileJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ConvertFileJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter selects jobs by identified source and status. Zero values match
// everything; Limit 0 means no limit.
type JobFilter struct {
	Source string
	Status JobStatus
	Limit  int
	Offset int
}
