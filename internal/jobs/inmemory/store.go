package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/bet-tracker/internal/jobs"
)

// Store keeps job records in memory. Records are lost on restart, which is
// fine for a cache that the next refresh rebuilds anyway.
type Store struct {
	mu      sync.RWMutex
	records map[string]jobs.RefreshFinalBalancesJob
}

func NewStore() *Store {
	return &Store{records: make(map[string]jobs.RefreshFinalBalancesJob)}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.RefreshFinalBalancesJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	s.records[job.JobID] = *job
	s.mu.Unlock()
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.RefreshFinalBalancesJob, error) {
	s.mu.RLock()
	rec, ok := s.records[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("GetJob: job %s not found", jobID)
	}
	return &rec, nil
}

func (s *Store) Counts(ctx context.Context) (map[jobs.JobStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[jobs.JobStatus]int)
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts, nil
}

var _ jobs.JobStore = (*Store)(nil)
