package store

import (
	"context"
	"sync"

	"seriosity/internal/evidence/models"
	"seriosity/internal/score"
	id "seriosity/pkg/domain"
	"seriosity/pkg/platform/sentinel"
)

// InMemoryStore keeps evidence and scores in maps guarded by one mutex.
// Used when DATABASE_URL is unset and in unit tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	evidence map[id.TenantID]*models.TenantEvidence
	scores   map[id.TenantID]score.StoredScore
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		evidence: make(map[id.TenantID]*models.TenantEvidence),
		scores:   make(map[id.TenantID]score.StoredScore),
	}
}

func (s *InMemoryStore) Get(_ context.Context, tenantID id.TenantID) (*models.TenantEvidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.evidence[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return ev.Clone(), nil
}

// CompareAndSwap stores ev if the current version equals expectedVersion.
// A missing record has version 0.
func (s *InMemoryStore) CompareAndSwap(_ context.Context, ev *models.TenantEvidence, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if existing, ok := s.evidence[ev.TenantID]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return sentinel.ErrConflict
	}
	s.evidence[ev.TenantID] = ev.Clone()
	return nil
}

func (s *InMemoryStore) ListTenantIDs(_ context.Context) ([]id.TenantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]id.TenantID, 0, len(s.evidence))
	for tenantID := range s.evidence {
		ids = append(ids, tenantID)
	}
	return ids, nil
}

// SaveScore ignores a score computed from an older evidence version than the
// one already stored.
func (s *InMemoryStore) SaveScore(_ context.Context, tenantID id.TenantID, stored score.StoredScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.scores[tenantID]; ok && existing.EvidenceVersion > stored.EvidenceVersion {
		return nil
	}
	s.scores[tenantID] = stored
	return nil
}

func (s *InMemoryStore) GetScore(_ context.Context, tenantID id.TenantID) (score.StoredScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.scores[tenantID]
	if !ok {
		return score.StoredScore{}, sentinel.ErrNotFound
	}
	return stored, nil
}
