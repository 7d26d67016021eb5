package models

import (
	"fmt"
	"strings"
	"time"

	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
)

// Decision is the landlord's verdict on an application.
type Decision string

const (
	DecisionNone     Decision = "none"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseDecision accepts the two decisions a landlord can make.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApproved, DecisionRejected:
		return d, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("decision must be approved or rejected, got %q", s))
	}
}

// Status is derived from the two signals; it is never set directly.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusChatOpen Status = "chat_open"
	StatusRejected Status = "rejected"
)

// Derive maps the tenant's interest and the landlord's decision onto an
// application status. A rejection wins over everything else. The second
// result is false when neither signal is set and no application exists.
func Derive(tenantInterested bool, decision Decision) (Status, bool) {
	switch {
	case decision == DecisionRejected:
		return StatusRejected, true
	case decision == DecisionApproved && tenantInterested:
		return StatusChatOpen, true
	case decision == DecisionApproved:
		return StatusApproved, true
	case tenantInterested:
		return StatusPending, true
	default:
		return "", false
	}
}

// Application joins one tenant and one property.
type Application struct {
	PropertyID         id.PropertyID `json:"property_id"`
	TenantID           id.TenantID   `json:"tenant_id"`
	LandlordID         id.LandlordID `json:"landlord_id"`
	TenantInterestedAt *time.Time    `json:"tenant_interested_at,omitempty"`
	LandlordDecision   Decision      `json:"landlord_decision"`
	LandlordDecidedAt  *time.Time    `json:"landlord_decided_at,omitempty"`
	Status             Status        `json:"status"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// NewApplication returns an application with no signals yet. It has no
// status until one side acts.
func NewApplication(propertyID id.PropertyID, tenantID id.TenantID, landlordID id.LandlordID, now time.Time) *Application {
	return &Application{
		PropertyID:       propertyID,
		TenantID:         tenantID,
		LandlordID:       landlordID,
		LandlordDecision: DecisionNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (a *Application) TenantInterested() bool {
	return a.TenantInterestedAt != nil
}

// Clone returns a deep copy.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	out := *a
	if a.TenantInterestedAt != nil {
		t := *a.TenantInterestedAt
		out.TenantInterestedAt = &t
	}
	if a.LandlordDecidedAt != nil {
		t := *a.LandlordDecidedAt
		out.LandlordDecidedAt = &t
	}
	return &out
}

// RecordInterest stamps the tenant's interest once. It reports whether
// anything changed.
func (a *Application) RecordInterest(now time.Time) bool {
	if a.TenantInterestedAt != nil {
		return false
	}
	t := now
	a.TenantInterestedAt = &t
	a.refresh()
	return true
}

// Decide records the landlord's decision. Rejection is terminal: approving a
// rejected application fails, rejecting it again changes nothing.
func (a *Application) Decide(decision Decision, now time.Time) (bool, error) {
	if decision != DecisionApproved && decision != DecisionRejected {
		return false, dErrors.New(dErrors.CodeValidation, "decision must be approved or rejected")
	}
	if a.LandlordDecision == decision {
		return false, nil
	}
	if a.LandlordDecision == DecisionRejected {
		return false, dErrors.New(dErrors.CodeInvalidState, "application was rejected and cannot be approved")
	}
	t := now
	a.LandlordDecision = decision
	a.LandlordDecidedAt = &t
	a.refresh()
	return true, nil
}

func (a *Application) refresh() {
	a.Status, _ = Derive(a.TenantInterested(), a.LandlordDecision)
}
