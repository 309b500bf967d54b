package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/jobs"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Store keeps conversion jobs in a map. Callers always receive copies, so a
// job held by a worker can be mutated without racing readers. Nothing
// survives a restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ConvertFileJob
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.ConvertFileJob)}
}

// SaveJob inserts or replaces the job with the same ID.
func (s *Store) SaveJob(_ context.Context, job *jobs.ConvertFileJob) error {
	if job.JobID == "" {
		return errors.New("SaveJob: job ID is required")
	}

	snapshot := *job
	s.mu.Lock()
	s.jobs[job.JobID] = &snapshot
	s.mu.Unlock()
	return nil
}

// GetJob returns a copy of the job, or ErrJobNotFound.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.ConvertFileJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: %w: %s", ErrJobNotFound, jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

// ListJobs returns the jobs accepted by filter, newest first. Jobs created
// at the same instant are ordered by ID so paging is stable.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.ConvertFileJob, error) {
	s.mu.RLock()
	matched := make([]*jobs.ConvertFileJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if accepts(filter, job) {
			snapshot := *job
			matched = append(matched, &snapshot)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.JobID < b.JobID
	})

	return page(matched, filter.Offset, filter.Limit), nil
}

// UpdateJobStatus sets the status of a stored job. A non-empty errorMsg
// replaces the recorded error; terminal states stamp CompletedAt.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: %w: %s", ErrJobNotFound, jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if status.Terminal() && job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}
	return nil
}

// CountByStatus returns how many stored jobs are in each status.
func (s *Store) CountByStatus(_ context.Context) map[jobs.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[jobs.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts
}

func accepts(filter jobs.JobFilter, job *jobs.ConvertFileJob) bool {
	if filter.Source != "" && job.Source != filter.Source {
		return false
	}
	return filter.Status == "" || job.Status == filter.Status
}

func page(list []*jobs.ConvertFileJob, offset, limit int) []*jobs.ConvertFileJob {
	if offset >= len(list) {
		return []*jobs.ConvertFileJob{}
	}
	if offset > 0 {
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

var _ jobs.JobStore = (*Store)(nil)
