package store

import (
	"context"
	"sync"

	"seriosity/internal/interview/models"
	id "seriosity/pkg/domain"
	"seriosity/pkg/platform/sentinel"
)

// InMemoryStore keeps interviews in a map guarded by a mutex.
type InMemoryStore struct {
	mu         sync.RWMutex
	interviews map[id.InterviewID]*models.Interview
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{interviews: make(map[id.InterviewID]*models.Interview)}
}

func (s *InMemoryStore) Create(_ context.Context, iv *models.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.interviews[iv.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.interviews[iv.ID] = iv.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, interviewID id.InterviewID) (*models.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.interviews[interviewID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return iv.Clone(), nil
}

func (s *InMemoryStore) CompareAndSwap(_ context.Context, iv *models.Interview, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.interviews[iv.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	s.interviews[iv.ID] = iv.Clone()
	return nil
}
