package score

import (
	"fmt"
	"time"

	"seriosity/internal/evidence/models"
	dErrors "seriosity/pkg/domain-errors"
)

// StoredScore is a persisted breakdown tagged with the evidence version it
// was computed from.
type StoredScore struct {
	Breakdown       Breakdown `json:"breakdown"`
	EvidenceVersion int64     `json:"evidence_version"`
	ComputedAt      time.Time `json:"computed_at"`
}

// Reconcile recomputes the score from evidence and compares it with what was
// stored. Any disagreement is surfaced as an invariant violation: a stale
// stored score, or one that differs at the same evidence version.
func Reconcile(ev models.TenantEvidence, stored StoredScore) error {
	if stored.EvidenceVersion != ev.Version {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("stored score is for evidence version %d, current is %d", stored.EvidenceVersion, ev.Version))
	}
	fresh, err := Compute(ev)
	if err != nil {
		return err
	}
	if fresh != stored.Breakdown {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("stored breakdown %+v (total %d) differs from recomputed %+v (total %d)",
				stored.Breakdown.Components(), stored.Breakdown.Total(), fresh.Components(), fresh.Total()))
	}
	return nil
}
