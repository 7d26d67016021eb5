package service

import (
	"context"
	"errors"

	"seriosity/internal/score"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/platform/sentinel"
	"seriosity/pkg/requestcontext"
)

// GetScore returns the tenant's current score, reading through the cache.
// A tenant without a stored score gets the score of their current evidence,
// which for an unknown tenant is all zeros.
func (s *Service) GetScore(ctx context.Context, tenantID id.TenantID) (score.StoredScore, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, tenantID)
		switch {
		case err != nil:
			s.metrics.IncrementCacheLookup("error")
			s.logger.WarnContext(ctx, "score cache read failed",
				"request_id", requestcontext.RequestID(ctx),
				"tenant_id", tenantID,
				"error", err,
			)
		case ok:
			s.metrics.IncrementCacheLookup("hit")
			return cached, nil
		default:
			s.metrics.IncrementCacheLookup("miss")
		}
	}

	stored, err := s.scores.GetScore(ctx, tenantID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return s.scoreFromEvidence(ctx, tenantID)
	}
	if err != nil {
		return score.StoredScore{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load score")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, stored); err != nil {
			s.logger.WarnContext(ctx, "score cache write failed",
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}
	return stored, nil
}

func (s *Service) scoreFromEvidence(ctx context.Context, tenantID id.TenantID) (score.StoredScore, error) {
	ev, err := s.GetEvidence(ctx, tenantID)
	if err != nil {
		return score.StoredScore{}, err
	}
	breakdown, err := score.Compute(*ev)
	if err != nil {
		return score.StoredScore{}, err
	}
	return score.StoredScore{
		Breakdown:       breakdown,
		EvidenceVersion: ev.Version,
		ComputedAt:      requestcontext.Now(ctx),
	}, nil
}

// Recompute recalculates and stores the score from the current evidence.
// Operators use it to repair a score that failed reconciliation.
func (s *Service) Recompute(ctx context.Context, tenantID id.TenantID) (score.StoredScore, error) {
	ev, err := s.GetEvidence(ctx, tenantID)
	if err != nil {
		return score.StoredScore{}, err
	}
	return s.recompute(ctx, ev, triggerRepair)
}

// ReconcileScore checks the stored score against a fresh computation. A
// tenant with evidence but no stored score is itself a violation.
func (s *Service) ReconcileScore(ctx context.Context, tenantID id.TenantID) error {
	ev, err := s.GetEvidence(ctx, tenantID)
	if err != nil {
		return err
	}
	stored, err := s.scores.GetScore(ctx, tenantID)
	if errors.Is(err, sentinel.ErrNotFound) {
		if ev.Version == 0 {
			return nil
		}
		s.metrics.IncrementReconcileFailure()
		return dErrors.New(dErrors.CodeInvariantViolation, "evidence exists but no score was stored")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load score")
	}
	if err := score.Reconcile(*ev, stored); err != nil {
		s.metrics.IncrementReconcileFailure()
		s.logger.ErrorContext(ctx, "stored score failed reconciliation",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}
	return nil
}

// ListTenantIDs returns every tenant with stored evidence.
func (s *Service) ListTenantIDs(ctx context.Context) ([]id.TenantID, error) {
	ids, err := s.store.ListTenantIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return ids, nil
}
