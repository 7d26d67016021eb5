package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"seriosity/internal/application/models"
	id "seriosity/pkg/domain"
	"seriosity/pkg/platform/sentinel"
)

// PostgresStore persists applications keyed by (property, tenant). Status is
// stored alongside the signals so it can be queried, but it is always the
// value Derive computed when the row was written.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed application store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, propertyID id.PropertyID, tenantID id.TenantID) (*models.Application, error) {
	var (
		landlordID   uuid.UUID
		interestedAt sql.NullTime
		decision     string
		decidedAt    sql.NullTime
		status       string
		app          = &models.Application{PropertyID: propertyID, TenantID: tenantID}
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT landlord_id, tenant_interested_at, landlord_decision, landlord_decided_at, status, version, created_at, updated_at
		FROM applications
		WHERE property_id = $1 AND tenant_id = $2`,
		uuid.UUID(propertyID), uuid.UUID(tenantID),
	).Scan(&landlordID, &interestedAt, &decision, &decidedAt, &status, &app.Version, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	app.LandlordID = id.LandlordID(landlordID)
	app.TenantInterestedAt = timePtr(interestedAt)
	app.LandlordDecision = models.Decision(decision)
	app.LandlordDecidedAt = timePtr(decidedAt)
	app.Status = models.Status(status)
	return app, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, app *models.Application, expectedVersion int64) error {
	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO applications (property_id, tenant_id, landlord_id, tenant_interested_at, landlord_decision,
				landlord_decided_at, status, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (property_id, tenant_id) DO NOTHING`,
			uuid.UUID(app.PropertyID), uuid.UUID(app.TenantID), uuid.UUID(app.LandlordID),
			nullTime(app.TenantInterestedAt), string(app.LandlordDecision), nullTime(app.LandlordDecidedAt),
			string(app.Status), app.Version, app.CreatedAt, app.UpdatedAt)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE applications
			SET tenant_interested_at = $3, landlord_decision = $4, landlord_decided_at = $5,
				status = $6, version = $7, updated_at = $8
			WHERE property_id = $1 AND tenant_id = $2 AND version = $9`,
			uuid.UUID(app.PropertyID), uuid.UUID(app.TenantID),
			nullTime(app.TenantInterestedAt), string(app.LandlordDecision), nullTime(app.LandlordDecidedAt),
			string(app.Status), app.Version, app.UpdatedAt, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("save application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// PostgresDirectory reads property ownership from the properties table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) LandlordOf(ctx context.Context, propertyID id.PropertyID) (id.LandlordID, error) {
	var landlordID uuid.UUID
	err := d.db.QueryRowContext(ctx, `SELECT landlord_id FROM properties WHERE id = $1`, uuid.UUID(propertyID)).Scan(&landlordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.LandlordID{}, sentinel.ErrNotFound
		}
		return id.LandlordID{}, fmt.Errorf("find property: %w", err)
	}
	return id.LandlordID(landlordID), nil
}

func (d *PostgresDirectory) RegisterProperty(ctx context.Context, propertyID id.PropertyID, landlordID id.LandlordID) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO properties (id, landlord_id) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET landlord_id = EXCLUDED.landlord_id`,
		uuid.UUID(propertyID), uuid.UUID(landlordID))
	if err != nil {
		return fmt.Errorf("register property: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
