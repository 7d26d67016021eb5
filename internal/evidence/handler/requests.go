package handler

import (
	dErrors "seriosity/pkg/domain-errors"
)

// VerificationRequest is the body for the identity and document
// verification endpoints.
type VerificationRequest struct {
	Verified *bool `json:"verified"`
}

// Validate implements httputil.Validatable.
func (r *VerificationRequest) Validate() error {
	if r == nil || r.Verified == nil {
		return dErrors.New(dErrors.CodeValidation, "verified is required")
	}
	return nil
}
