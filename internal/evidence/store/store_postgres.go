package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"seriosity/internal/evidence/models"
	"seriosity/internal/score"
	id "seriosity/pkg/domain"
	"seriosity/pkg/platform/sentinel"
)

// PostgresStore persists evidence and scores in PostgreSQL. Documents and the
// interview outcome are stored as JSONB on the evidence row; version is the
// compare-and-swap token.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed evidence store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type profileTimes struct {
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type documentsJSON struct {
	Income    []models.Document `json:"income"`
	Reference []models.Document `json:"reference"`
}

func (s *PostgresStore) Get(ctx context.Context, tenantID id.TenantID) (*models.TenantEvidence, error) {
	var (
		identity  string
		docsRaw   []byte
		ivRaw     []byte
		profRaw   []byte
		version   int64
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT identity_status, documents, interview, profile, version, updated_at
		FROM tenant_evidence
		WHERE tenant_id = $1`, uuid.UUID(tenantID),
	).Scan(&identity, &docsRaw, &ivRaw, &profRaw, &version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find evidence: %w", err)
	}

	ev := &models.TenantEvidence{
		TenantID:         tenantID,
		IdentityVerified: identity == identityVerified,
		Version:          version,
		UpdatedAt:        updatedAt,
	}
	var docs documentsJSON
	if len(docsRaw) > 0 {
		if err := json.Unmarshal(docsRaw, &docs); err != nil {
			return nil, fmt.Errorf("unmarshal documents: %w", err)
		}
	}
	ev.IncomeDocuments = docs.Income
	ev.ReferenceDocuments = docs.Reference
	if len(ivRaw) > 0 {
		var outcome models.InterviewOutcome
		if err := json.Unmarshal(ivRaw, &outcome); err != nil {
			return nil, fmt.Errorf("unmarshal interview outcome: %w", err)
		}
		ev.Interview = &outcome
	}
	var prof profileTimes
	if len(profRaw) > 0 {
		if err := json.Unmarshal(profRaw, &prof); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
	}
	ev.ProfileCreatedAt = prof.CreatedAt
	ev.ProfileUpdatedAt = prof.UpdatedAt
	return ev, nil
}

const (
	identityVerified   = "verified"
	identityUnverified = "not_started"
)

// CompareAndSwap inserts the first version of a record or updates it when
// the stored version still equals expectedVersion.
func (s *PostgresStore) CompareAndSwap(ctx context.Context, ev *models.TenantEvidence, expectedVersion int64) error {
	docsRaw, err := json.Marshal(documentsJSON{Income: orEmpty(ev.IncomeDocuments), Reference: orEmpty(ev.ReferenceDocuments)})
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	var ivRaw []byte
	if ev.Interview != nil {
		if ivRaw, err = json.Marshal(ev.Interview); err != nil {
			return fmt.Errorf("marshal interview outcome: %w", err)
		}
	}
	profRaw, err := json.Marshal(profileTimes{CreatedAt: ev.ProfileCreatedAt, UpdatedAt: ev.ProfileUpdatedAt})
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	identity := identityUnverified
	if ev.IdentityVerified {
		identity = identityVerified
	}

	var res sql.Result
	if expectedVersion == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO tenant_evidence (tenant_id, identity_status, documents, interview, profile, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tenant_id) DO NOTHING`,
			uuid.UUID(ev.TenantID), identity, docsRaw, nullJSON(ivRaw), profRaw, ev.Version, ev.UpdatedAt)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE tenant_evidence
			SET identity_status = $2, documents = $3, interview = $4, profile = $5, version = $6, updated_at = $7
			WHERE tenant_id = $1 AND version = $8`,
			uuid.UUID(ev.TenantID), identity, docsRaw, nullJSON(ivRaw), profRaw, ev.Version, ev.UpdatedAt, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("save evidence: %w", err)
	}
	return conflictIfUnchanged(res)
}

func (s *PostgresStore) ListTenantIDs(ctx context.Context) ([]id.TenantID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id FROM tenant_evidence ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()
	var ids []id.TenantID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id.TenantID(raw))
	}
	return ids, rows.Err()
}

// SaveScore upserts the score unless a newer evidence version is stored.
func (s *PostgresStore) SaveScore(ctx context.Context, tenantID id.TenantID, stored score.StoredScore) error {
	raw, err := json.Marshal(stored.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO seriosity_scores (tenant_id, total, breakdown, evidence_version, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE
		SET total = EXCLUDED.total,
		    breakdown = EXCLUDED.breakdown,
		    evidence_version = EXCLUDED.evidence_version,
		    computed_at = EXCLUDED.computed_at
		WHERE seriosity_scores.evidence_version <= EXCLUDED.evidence_version`,
		uuid.UUID(tenantID), stored.Breakdown.Total(), raw, stored.EvidenceVersion, stored.ComputedAt)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetScore(ctx context.Context, tenantID id.TenantID) (score.StoredScore, error) {
	var (
		raw    []byte
		stored score.StoredScore
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT breakdown, evidence_version, computed_at
		FROM seriosity_scores
		WHERE tenant_id = $1`, uuid.UUID(tenantID),
	).Scan(&raw, &stored.EvidenceVersion, &stored.ComputedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return score.StoredScore{}, sentinel.ErrNotFound
		}
		return score.StoredScore{}, fmt.Errorf("find score: %w", err)
	}
	if err := json.Unmarshal(raw, &stored.Breakdown); err != nil {
		return score.StoredScore{}, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	return stored, nil
}

func conflictIfUnchanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func nullJSON(raw []byte) any {
	if raw == nil {
		return nil
	}
	return raw
}

func orEmpty(docs []models.Document) []models.Document {
	if docs == nil {
		return []models.Document{}
	}
	return docs
}
