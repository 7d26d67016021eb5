// Package notification delivers user-facing events without blocking the
// operations that raise them.
package notification

import (
	"context"
	"time"

	id "seriosity/pkg/domain"
)

// Kind names a notification event.
type Kind string

const (
	KindMutualMatch         Kind = "mutual_match"
	KindLandlordApproved    Kind = "landlord_approved"
	KindApplicationRejected Kind = "application_rejected"
)

// Notification is one message to one user.
type Notification struct {
	UserID    id.UserID         `json:"user_id"`
	Kind      Kind              `json:"kind"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Sink delivers a notification to its final transport.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}
