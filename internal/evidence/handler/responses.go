package handler

import (
	"time"

	"seriosity/internal/evidence/models"
	"seriosity/internal/score"
	id "seriosity/pkg/domain"
)

// ScoreResponse is the body of GET /tenants/{tenantID}/score.
type ScoreResponse struct {
	TenantID        id.TenantID     `json:"tenant_id"`
	Total           int             `json:"total"`
	Breakdown       score.Breakdown `json:"breakdown"`
	EvidenceVersion int64           `json:"evidence_version"`
	ComputedAt      time.Time       `json:"computed_at"`
}

func toScoreResponse(tenantID id.TenantID, stored score.StoredScore) ScoreResponse {
	return ScoreResponse{
		TenantID:        tenantID,
		Total:           stored.Breakdown.Total(),
		Breakdown:       stored.Breakdown,
		EvidenceVersion: stored.EvidenceVersion,
		ComputedAt:      stored.ComputedAt,
	}
}

// EvidenceResponse summarises a tenant's evidence after a write.
type EvidenceResponse struct {
	TenantID           id.TenantID       `json:"tenant_id"`
	IdentityVerified   bool              `json:"identity_verified"`
	IncomeDocuments    []models.Document `json:"income_documents"`
	ReferenceDocuments []models.Document `json:"reference_documents"`
	ProfileCreatedAt   *time.Time        `json:"profile_created_at,omitempty"`
	ProfileUpdatedAt   *time.Time        `json:"profile_updated_at,omitempty"`
	Version            int64             `json:"version"`
}

func toEvidenceResponse(ev *models.TenantEvidence) EvidenceResponse {
	resp := EvidenceResponse{
		TenantID:           ev.TenantID,
		IdentityVerified:   ev.IdentityVerified,
		IncomeDocuments:    ev.IncomeDocuments,
		ReferenceDocuments: ev.ReferenceDocuments,
		ProfileCreatedAt:   ev.ProfileCreatedAt,
		ProfileUpdatedAt:   ev.ProfileUpdatedAt,
		Version:            ev.Version,
	}
	if resp.IncomeDocuments == nil {
		resp.IncomeDocuments = []models.Document{}
	}
	if resp.ReferenceDocuments == nil {
		resp.ReferenceDocuments = []models.Document{}
	}
	return resp
}

// ReconcileResponse reports a successful reconciliation.
type ReconcileResponse struct {
	TenantID id.TenantID `json:"tenant_id"`
	Status   string      `json:"status"`
}
