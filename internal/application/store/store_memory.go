package store

import (
	"context"
	"sync"

	"seriosity/internal/application/models"
	id "seriosity/pkg/domain"
	"seriosity/pkg/platform/sentinel"
)

type applicationKey struct {
	propertyID id.PropertyID
	tenantID   id.TenantID
}

// InMemoryStore keeps applications in a map guarded by a mutex.
type InMemoryStore struct {
	mu           sync.RWMutex
	applications map[applicationKey]*models.Application
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{applications: make(map[applicationKey]*models.Application)}
}

func (s *InMemoryStore) Get(_ context.Context, propertyID id.PropertyID, tenantID id.TenantID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[applicationKey{propertyID, tenantID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return app.Clone(), nil
}

// CompareAndSwap inserts when expectedVersion is 0 and the record is absent,
// otherwise replaces it only if the stored version matches.
func (s *InMemoryStore) CompareAndSwap(_ context.Context, app *models.Application, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := applicationKey{app.PropertyID, app.TenantID}
	var current int64
	if existing, ok := s.applications[key]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return sentinel.ErrConflict
	}
	s.applications[key] = app.Clone()
	return nil
}

// InMemoryDirectory maps properties to their landlords.
type InMemoryDirectory struct {
	mu         sync.RWMutex
	properties map[id.PropertyID]id.LandlordID
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{properties: make(map[id.PropertyID]id.LandlordID)}
}

func (d *InMemoryDirectory) LandlordOf(_ context.Context, propertyID id.PropertyID) (id.LandlordID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	landlordID, ok := d.properties[propertyID]
	if !ok {
		return id.LandlordID{}, sentinel.ErrNotFound
	}
	return landlordID, nil
}

// RegisterProperty records or reassigns a property's landlord.
func (d *InMemoryDirectory) RegisterProperty(_ context.Context, propertyID id.PropertyID, landlordID id.LandlordID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.properties[propertyID] = landlordID
	return nil
}
