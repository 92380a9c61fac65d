package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same compare-and-set semantics
// as MongoStore. It backs tests and local development without a database.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*InterviewJob
}

// NewMemoryStore returns an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*InterviewJob)}
}

func (s *MemoryStore) EnsureJob(_ context.Context, interviewID string, event HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[interviewID]; ok {
		return nil
	}
	s.jobs[interviewID] = &InterviewJob{
		ID:          interviewID,
		Status:      StatusQueued,
		LastUpdated: time.Now().UTC(),
		History:     []HistoryEvent{event},
	}
	return nil
}

func (s *MemoryStore) Transition(_ context.Context, interviewID string, to Status, stage string, event HistoryEvent, expected ...Status) (*InterviewJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[interviewID]
	if !ok {
		return nil, notFoundError(interviewID, "transition")
	}
	if !statusIn(job.Status, expected) {
		return nil, conflictError(interviewID, job.Status, expected)
	}

	job.Status = to
	if stage != "" {
		job.Stage = stage
	}
	if to == StatusProcessing {
		job.ProcessingAttempts++
	}
	job.LastUpdated = time.Now().UTC()
	job.History = append(job.History, event)

	snapshot := *job
	return &snapshot, nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, interviewID string, event HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[interviewID]
	if !ok {
		return notFoundError(interviewID, "history")
	}
	job.History = append(job.History, event)
	job.LastUpdated = time.Now().UTC()
	return nil
}

func (s *MemoryStore) RecordResults(_ context.Context, interviewID string, update ResultsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[interviewID]
	if !ok {
		return notFoundError(interviewID, "results")
	}
	if job.Status != StatusProcessing || job.Results != nil {
		return conflictError(interviewID, job.Status, []Status{StatusProcessing})
	}

	now := time.Now().UTC()
	result := update.Result
	job.Status = StatusCompleted
	job.Results = &result
	job.CompletedAt = &now
	job.LastUpdated = now
	if update.EmbeddingsGCSPath != "" {
		job.EmbeddingsGCSPath = update.EmbeddingsGCSPath
	}
	if update.JSONGCSPath != "" {
		job.JSONGCSPath = update.JSONGCSPath
	}
	job.History = append(job.History, update.Event)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, interviewID string) (*InterviewJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[interviewID]
	if !ok {
		return nil, notFoundError(interviewID, "get")
	}
	snapshot := *job
	snapshot.History = append([]HistoryEvent(nil), job.History...)
	return &snapshot, nil
}

func statusIn(status Status, set []Status) bool {
	for _, candidate := range set {
		if status == candidate {
			return true
		}
	}
	return false
}
