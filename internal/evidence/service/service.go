package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"seriosity/internal/evidence/metrics"
	"seriosity/internal/evidence/models"
	"seriosity/internal/score"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/platform/sentinel"
	"seriosity/pkg/requestcontext"
)

// Store persists tenant evidence with compare-and-swap writes. The caller
// sets the new Version; the write succeeds only while the stored version
// still equals expectedVersion (0 for a record that does not exist yet).
type Store interface {
	Get(ctx context.Context, tenantID id.TenantID) (*models.TenantEvidence, error)
	CompareAndSwap(ctx context.Context, ev *models.TenantEvidence, expectedVersion int64) error
	ListTenantIDs(ctx context.Context) ([]id.TenantID, error)
}

// ScoreStore persists the latest computed breakdown per tenant.
type ScoreStore interface {
	SaveScore(ctx context.Context, tenantID id.TenantID, stored score.StoredScore) error
	GetScore(ctx context.Context, tenantID id.TenantID) (score.StoredScore, error)
}

// ScoreCache fronts ScoreStore for reads. Invalidate drops the entry and
// raises the tenant's version floor; Set ignores scores computed from
// evidence older than the floor or than the entry already cached.
type ScoreCache interface {
	Get(ctx context.Context, tenantID id.TenantID) (score.StoredScore, bool, error)
	Set(ctx context.Context, tenantID id.TenantID, stored score.StoredScore) error
	Invalidate(ctx context.Context, tenantID id.TenantID, evidenceVersion int64) error
}

// MediaStore holds uploaded document files.
type MediaStore interface {
	Store(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Service owns every write to tenant evidence and recomputes the score after
// each one.
type Service struct {
	store   Store
	scores  ScoreStore
	cache   ScoreCache
	media   MediaStore
	logger  *slog.Logger
	metrics *metrics.Metrics
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

// WithScoreCache enables the read-through score cache.
func WithScoreCache(cache ScoreCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithMediaStore(media MediaStore) Option {
	return func(s *Service) {
		s.media = media
	}
}

// New constructs a Service.
func New(store Store, scores ScoreStore, opts ...Option) *Service {
	s := &Service{store: store, scores: scores, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errNoChange lets a mutation report that the record already has the
// requested state, so nothing is written.
var errNoChange = errors.New("no change")

// Recompute triggers, used as metric labels.
const (
	triggerIdentity  = "identity"
	triggerDocument  = "document"
	triggerProfile   = "profile"
	triggerInterview = "interview"
	triggerRepair    = "repair"
)

// GetEvidence returns the tenant's evidence, or an empty record when nothing
// has been collected yet.
func (s *Service) GetEvidence(ctx context.Context, tenantID id.TenantID) (*models.TenantEvidence, error) {
	ev, err := s.store.Get(ctx, tenantID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.NewTenantEvidence(tenantID), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence")
	}
	return ev, nil
}

// mutate runs a read-modify-write against the evidence record, retrying once
// on a lost compare-and-swap, then recomputes and stores the score.
func (s *Service) mutate(ctx context.Context, tenantID id.TenantID, trigger string, fn func(ev *models.TenantEvidence) error) (*models.TenantEvidence, error) {
	const attempts = 2
	for attempt := 1; attempt <= attempts; attempt++ {
		current, err := s.GetEvidence(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		if err := fn(next); err != nil {
			if errors.Is(err, errNoChange) {
				return current, nil
			}
			return nil, err
		}
		next.Version = current.Version + 1
		next.UpdatedAt = requestcontext.Now(ctx)

		err = s.store.CompareAndSwap(ctx, next, current.Version)
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementWriteConflict()
			s.logger.WarnContext(ctx, "evidence write conflict",
				"request_id", requestcontext.RequestID(ctx),
				"tenant_id", tenantID,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save evidence")
		}

		if _, err := s.recompute(ctx, next, trigger); err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "evidence was modified concurrently, retry the request")
}

// recompute derives the score from a committed evidence record and stores it.
func (s *Service) recompute(ctx context.Context, ev *models.TenantEvidence, trigger string) (score.StoredScore, error) {
	breakdown, err := score.Compute(*ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "score computation rejected evidence",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", ev.TenantID,
			"evidence_version", ev.Version,
			"error", err,
		)
		return score.StoredScore{}, err
	}
	stored := score.StoredScore{
		Breakdown:       breakdown,
		EvidenceVersion: ev.Version,
		ComputedAt:      requestcontext.Now(ctx),
	}
	if err := s.scores.SaveScore(ctx, ev.TenantID, stored); err != nil {
		return score.StoredScore{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save score")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ev.TenantID, ev.Version); err != nil {
			s.logger.WarnContext(ctx, "score cache invalidation failed",
				"tenant_id", ev.TenantID,
				"error", err,
			)
		}
	}
	s.metrics.ObserveScore(trigger, breakdown.Total())
	s.logger.InfoContext(ctx, "score recomputed",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", ev.TenantID,
		"trigger", trigger,
		"evidence_version", ev.Version,
		"total", breakdown.Total(),
	)
	return stored, nil
}

// SetIdentityVerified records the outcome of the identity check.
func (s *Service) SetIdentityVerified(ctx context.Context, tenantID id.TenantID, verified bool) (*models.TenantEvidence, error) {
	return s.mutate(ctx, tenantID, triggerIdentity, func(ev *models.TenantEvidence) error {
		if ev.IdentityVerified == verified {
			return errNoChange
		}
		ev.IdentityVerified = verified
		return nil
	})
}

// AppendDocument adds an already-stored document to the tenant's evidence.
func (s *Service) AppendDocument(ctx context.Context, tenantID id.TenantID, kind models.DocumentKind, verified bool, ref string) (models.Document, error) {
	if !kind.IsValid() {
		return models.Document{}, dErrors.New(dErrors.CodeValidation, "kind must be income or reference")
	}
	doc := models.Document{
		ID:         id.NewDocumentID(),
		Kind:       kind,
		Verified:   verified,
		Ref:        ref,
		UploadedAt: requestcontext.Now(ctx),
	}
	_, err := s.mutate(ctx, tenantID, triggerDocument, func(ev *models.TenantEvidence) error {
		ev.AppendDocument(doc)
		return nil
	})
	if err != nil {
		return models.Document{}, err
	}
	return doc, nil
}

// UploadDocument stores the file and appends it unverified. The blob is
// removed again if the evidence write fails.
func (s *Service) UploadDocument(ctx context.Context, tenantID id.TenantID, kind models.DocumentKind, key, contentType string, body io.Reader) (models.Document, error) {
	if !kind.IsValid() {
		return models.Document{}, dErrors.New(dErrors.CodeValidation, "kind must be income or reference")
	}
	if s.media == nil {
		return models.Document{}, dErrors.New(dErrors.CodeUnavailable, "document storage is not configured")
	}
	ref, err := s.media.Store(ctx, key, contentType, body)
	if err != nil {
		return models.Document{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store document")
	}
	doc, err := s.AppendDocument(ctx, tenantID, kind, false, ref)
	if err != nil {
		s.deleteBlob(ctx, ref)
		return models.Document{}, err
	}
	return doc, nil
}

// RemoveDocument deletes a document from the evidence and then its blob.
func (s *Service) RemoveDocument(ctx context.Context, tenantID id.TenantID, documentID id.DocumentID) error {
	var removed models.Document
	_, err := s.mutate(ctx, tenantID, triggerDocument, func(ev *models.TenantEvidence) error {
		doc, ok := ev.RemoveDocument(documentID)
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		removed = doc
		return nil
	})
	if err != nil {
		return err
	}
	if removed.Ref != "" {
		s.deleteBlob(ctx, removed.Ref)
	}
	return nil
}

// SetDocumentVerified flips the verification flag on one document.
func (s *Service) SetDocumentVerified(ctx context.Context, tenantID id.TenantID, documentID id.DocumentID, verified bool) (models.Document, error) {
	var updated models.Document
	_, err := s.mutate(ctx, tenantID, triggerDocument, func(ev *models.TenantEvidence) error {
		doc := ev.FindDocument(documentID)
		if doc == nil {
			return dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		updated = *doc
		if doc.Verified == verified {
			return errNoChange
		}
		doc.Verified = verified
		updated = *doc
		return nil
	})
	if err != nil {
		return models.Document{}, err
	}
	return updated, nil
}

// TouchProfile stamps the first profile completion and every later edit.
func (s *Service) TouchProfile(ctx context.Context, tenantID id.TenantID) (*models.TenantEvidence, error) {
	now := requestcontext.Now(ctx)
	return s.mutate(ctx, tenantID, triggerProfile, func(ev *models.TenantEvidence) error {
		if ev.ProfileCreatedAt == nil {
			created := now
			ev.ProfileCreatedAt = &created
		}
		updated := now
		ev.ProfileUpdatedAt = &updated
		return nil
	})
}

// RecordInterviewOutcome replaces the tenant's interview snapshot.
func (s *Service) RecordInterviewOutcome(ctx context.Context, tenantID id.TenantID, outcome models.InterviewOutcome) error {
	_, err := s.mutate(ctx, tenantID, triggerInterview, func(ev *models.TenantEvidence) error {
		ev.Interview = &outcome
		return nil
	})
	return err
}

func (s *Service) deleteBlob(ctx context.Context, ref string) {
	if s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, ref); err != nil {
		s.logger.WarnContext(ctx, "failed to delete document blob",
			"request_id", requestcontext.RequestID(ctx),
			"ref", ref,
			"error", err,
		)
	}
}
