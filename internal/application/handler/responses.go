package handler

import (
	"time"

	"seriosity/internal/application/models"
	id "seriosity/pkg/domain"
)

// ApplicationResponse is the public view of an application.
type ApplicationResponse struct {
	PropertyID         id.PropertyID   `json:"property_id"`
	TenantID           id.TenantID     `json:"tenant_id"`
	LandlordID         id.LandlordID   `json:"landlord_id"`
	Status             models.Status   `json:"status"`
	TenantInterestedAt *time.Time      `json:"tenant_interested_at,omitempty"`
	LandlordDecision   models.Decision `json:"landlord_decision"`
	LandlordDecidedAt  *time.Time      `json:"landlord_decided_at,omitempty"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toApplicationResponse(app *models.Application) *ApplicationResponse {
	return &ApplicationResponse{
		PropertyID:         app.PropertyID,
		TenantID:           app.TenantID,
		LandlordID:         app.LandlordID,
		Status:             app.Status,
		TenantInterestedAt: app.TenantInterestedAt,
		LandlordDecision:   app.LandlordDecision,
		LandlordDecidedAt:  app.LandlordDecidedAt,
		UpdatedAt:          app.UpdatedAt,
	}
}
