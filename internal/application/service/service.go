package service

import (
	"context"
	"errors"
	"log/slog"

	"seriosity/internal/application/metrics"
	"seriosity/internal/application/models"
	"seriosity/internal/notification"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/platform/sentinel"
	"seriosity/pkg/requestcontext"
)

// Store persists applications. CompareAndSwap with expectedVersion 0 creates
// the record; the caller sets the new Version.
type Store interface {
	Get(ctx context.Context, propertyID id.PropertyID, tenantID id.TenantID) (*models.Application, error)
	CompareAndSwap(ctx context.Context, app *models.Application, expectedVersion int64) error
}

// Directory resolves who owns a property.
type Directory interface {
	LandlordOf(ctx context.Context, propertyID id.PropertyID) (id.LandlordID, error)
}

// Notifier accepts notifications without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notification)
}

// Service records both sides of an application and raises notifications
// when the derived status changes.
type Service struct {
	store     Store
	directory Directory
	notifier  Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. A nil notifier disables notifications.
func New(store Store, directory Directory, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		notifier:  notifier,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordTenantInterest marks the tenant as interested in the property. A
// repeated call keeps the first timestamp and notifies no one.
func (s *Service) RecordTenantInterest(ctx context.Context, propertyID id.PropertyID, tenantID id.TenantID) (*models.Application, error) {
	now := requestcontext.Now(ctx)
	return s.mutate(ctx, propertyID, tenantID, func(app *models.Application) (bool, error) {
		return app.RecordInterest(now), nil
	})
}

// RecordLandlordDecision stores the landlord's approval or rejection.
func (s *Service) RecordLandlordDecision(ctx context.Context, propertyID id.PropertyID, tenantID id.TenantID, decision models.Decision) (*models.Application, error) {
	if decision != models.DecisionApproved && decision != models.DecisionRejected {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be approved or rejected")
	}
	now := requestcontext.Now(ctx)
	return s.mutate(ctx, propertyID, tenantID, func(app *models.Application) (bool, error) {
		return app.Decide(decision, now)
	})
}

// GetApplicationStatus returns the application between a tenant and a
// property.
func (s *Service) GetApplicationStatus(ctx context.Context, propertyID id.PropertyID, tenantID id.TenantID) (*models.Application, error) {
	app, err := s.store.Get(ctx, propertyID, tenantID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	return app, nil
}

// PropertyLandlord returns the landlord who owns the property.
func (s *Service) PropertyLandlord(ctx context.Context, propertyID id.PropertyID) (id.LandlordID, error) {
	landlordID, err := s.directory.LandlordOf(ctx, propertyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return id.LandlordID{}, dErrors.New(dErrors.CodeNotFound, "property not found")
	}
	if err != nil {
		return id.LandlordID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve property")
	}
	return landlordID, nil
}

// mutate runs a read-modify-write on one application, creating it on first
// contact and retrying once on a lost compare-and-swap. Notifications go
// out only after the write commits and only when the status moved.
func (s *Service) mutate(
	ctx context.Context,
	propertyID id.PropertyID,
	tenantID id.TenantID,
	fn func(app *models.Application) (bool, error),
) (*models.Application, error) {
	if propertyID.IsNil() || tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "property id and tenant id are required")
	}
	const attempts = 2
	for attempt := 1; attempt <= attempts; attempt++ {
		current, err := s.load(ctx, propertyID, tenantID)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		changed, err := fn(next)
		if err != nil {
			return nil, err
		}
		if !changed {
			return current, nil
		}
		next.Version = current.Version + 1
		next.UpdatedAt = requestcontext.Now(ctx)

		err = s.store.CompareAndSwap(ctx, next, current.Version)
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementWriteConflict()
			s.logger.WarnContext(ctx, "application write conflict",
				"request_id", requestcontext.RequestID(ctx),
				"property_id", propertyID,
				"tenant_id", tenantID,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save application")
		}
		s.statusChanged(ctx, current.Status, next)
		return next, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "application was modified concurrently, retry the request")
}

// load returns the stored application, or a fresh one at version 0 owned by
// the property's landlord.
func (s *Service) load(ctx context.Context, propertyID id.PropertyID, tenantID id.TenantID) (*models.Application, error) {
	app, err := s.store.Get(ctx, propertyID, tenantID)
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	landlordID, err := s.PropertyLandlord(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return models.NewApplication(propertyID, tenantID, landlordID, requestcontext.Now(ctx)), nil
}

func (s *Service) statusChanged(ctx context.Context, from models.Status, app *models.Application) {
	if from == app.Status {
		return
	}
	fromLabel := string(from)
	if fromLabel == "" {
		fromLabel = "none"
	}
	s.metrics.IncrementTransition(fromLabel, string(app.Status))
	s.logger.InfoContext(ctx, "application status changed",
		"request_id", requestcontext.RequestID(ctx),
		"property_id", app.PropertyID,
		"tenant_id", app.TenantID,
		"from", fromLabel,
		"to", app.Status,
	)

	var (
		kind       notification.Kind
		recipients = []id.UserID{id.UserID(app.TenantID)}
	)
	switch app.Status {
	case models.StatusChatOpen:
		kind = notification.KindMutualMatch
		recipients = append(recipients, id.UserID(app.LandlordID))
	case models.StatusApproved:
		kind = notification.KindLandlordApproved
	case models.StatusRejected:
		kind = notification.KindApplicationRejected
	default:
		return
	}
	if s.notifier == nil {
		return
	}
	payload := map[string]string{
		"property_id": app.PropertyID.String(),
		"tenant_id":   app.TenantID.String(),
		"landlord_id": app.LandlordID.String(),
	}
	for _, userID := range recipients {
		s.notifier.Notify(ctx, notification.Notification{
			UserID:    userID,
			Kind:      kind,
			Payload:   payload,
			CreatedAt: app.UpdatedAt,
		})
		s.metrics.IncrementNotification(string(kind))
	}
}
