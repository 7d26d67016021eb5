package handler

import (
	"seriosity/internal/application/models"
)

// DecisionRequest is the body for the landlord decision endpoint.
type DecisionRequest struct {
	Decision string `json:"decision"`

	parsed models.Decision
}

// Validate implements httputil.Validatable.
func (r *DecisionRequest) Validate() error {
	d, err := models.ParseDecision(r.Decision)
	if err != nil {
		return err
	}
	r.parsed = d
	return nil
}
