package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"seriosity/internal/interview/models"
	id "seriosity/pkg/domain"
	"seriosity/pkg/platform/sentinel"
)

// PostgresStore persists interviews. Answers and analysis are JSONB; version
// is the compare-and-swap token.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed interview store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type interviewPayload struct {
	Answers       []models.Answer `json:"answers"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

func (s *PostgresStore) Create(ctx context.Context, iv *models.Interview) error {
	answers, analysis, err := encode(iv)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interviews (id, tenant_id, status, answers, analysis, attempt, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(iv.ID), uuid.UUID(iv.TenantID), string(iv.Status), answers, analysis,
		iv.Attempt, iv.Version, iv.CreatedAt, iv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("create interview: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, interviewID id.InterviewID) (*models.Interview, error) {
	var (
		tenantID    uuid.UUID
		status      string
		answersRaw  []byte
		analysisRaw []byte
		iv          = &models.Interview{ID: interviewID}
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, status, answers, analysis, attempt, version, created_at, updated_at
		FROM interviews
		WHERE id = $1`, uuid.UUID(interviewID),
	).Scan(&tenantID, &status, &answersRaw, &analysisRaw, &iv.Attempt, &iv.Version, &iv.CreatedAt, &iv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find interview: %w", err)
	}
	iv.TenantID = id.TenantID(tenantID)
	iv.Status = models.Status(status)

	var payload interviewPayload
	if err := json.Unmarshal(answersRaw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	iv.Answers = payload.Answers
	if iv.Answers == nil {
		iv.Answers = []models.Answer{}
	}
	iv.FailureReason = payload.FailureReason
	iv.CompletedAt = payload.CompletedAt
	if len(analysisRaw) > 0 {
		var analysis models.Analysis
		if err := json.Unmarshal(analysisRaw, &analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
		iv.Analysis = &analysis
	}
	return iv, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, iv *models.Interview, expectedVersion int64) error {
	answers, analysis, err := encode(iv)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE interviews
		SET status = $2, answers = $3, analysis = $4, attempt = $5, version = $6, updated_at = $7
		WHERE id = $1 AND version = $8`,
		uuid.UUID(iv.ID), string(iv.Status), answers, analysis, iv.Attempt, iv.Version, iv.UpdatedAt, expectedVersion)
	if err != nil {
		return fmt.Errorf("update interview: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, iv.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

// encode splits an interview into its answers document (which also carries
// the failure reason and completion time) and its analysis document.
func encode(iv *models.Interview) ([]byte, any, error) {
	answers, err := json.Marshal(interviewPayload{
		Answers:       iv.Answers,
		FailureReason: iv.FailureReason,
		CompletedAt:   iv.CompletedAt,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal answers: %w", err)
	}
	if iv.Analysis == nil {
		return answers, nil, nil
	}
	analysis, err := json.Marshal(iv.Analysis)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return answers, analysis, nil
}
