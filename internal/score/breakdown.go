package score

import (
	"encoding/json"
	"fmt"

	dErrors "seriosity/pkg/domain-errors"
)

// Component caps. They sum to MaxTotal exactly.
const (
	MaxIDVerified          = 15
	MaxIncomeProof         = 25
	MaxInterviewClarity    = 20
	MaxResponseConsistency = 15
	MaxResponsiveness      = 15
	MaxReferences          = 10
	MaxTotal               = 100
)

// Components are the six named inputs to a Breakdown.
type Components struct {
	IDVerified          int `json:"id_verified"`
	IncomeProof         int `json:"income_proof"`
	InterviewClarity    int `json:"interview_clarity"`
	ResponseConsistency int `json:"response_consistency"`
	Responsiveness      int `json:"responsiveness"`
	References          int `json:"references"`
}

// Sum adds the components without capping.
func (c Components) Sum() int {
	return c.IDVerified + c.IncomeProof + c.InterviewClarity +
		c.ResponseConsistency + c.Responsiveness + c.References
}

// Breakdown is a validated Seriosity score. The zero value is the valid
// all-zero score; any other value must come from NewBreakdown so the caps and
// the total invariant hold.
type Breakdown struct {
	components Components
	total      int
}

// NewBreakdown validates every component against its cap and derives the
// total as min(MaxTotal, sum).
func NewBreakdown(c Components) (Breakdown, error) {
	checks := []struct {
		name  string
		value int
		max   int
	}{
		{"id_verified", c.IDVerified, MaxIDVerified},
		{"income_proof", c.IncomeProof, MaxIncomeProof},
		{"interview_clarity", c.InterviewClarity, MaxInterviewClarity},
		{"response_consistency", c.ResponseConsistency, MaxResponseConsistency},
		{"responsiveness", c.Responsiveness, MaxResponsiveness},
		{"references", c.References, MaxReferences},
	}
	for _, chk := range checks {
		if chk.value < 0 || chk.value > chk.max {
			return Breakdown{}, dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("%s=%d outside [0,%d]", chk.name, chk.value, chk.max))
		}
	}
	if c.IDVerified != 0 && c.IDVerified != MaxIDVerified {
		return Breakdown{}, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("id_verified=%d must be 0 or %d", c.IDVerified, MaxIDVerified))
	}
	return Breakdown{components: c, total: min(MaxTotal, c.Sum())}, nil
}

// Components returns a copy of the component values.
func (b Breakdown) Components() Components { return b.components }

// Total returns the capped score.
func (b Breakdown) Total() int { return b.total }

type breakdownJSON struct {
	Components
	Total int `json:"total"`
}

// MarshalJSON flattens the components next to the total.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(breakdownJSON{Components: b.components, Total: b.total})
}

// UnmarshalJSON rebuilds the breakdown through NewBreakdown and rejects a
// stored total that disagrees with its components.
func (b *Breakdown) UnmarshalJSON(data []byte) error {
	var raw breakdownJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := NewBreakdown(raw.Components)
	if err != nil {
		return err
	}
	if built.total != raw.Total {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("stored total %d does not match components sum %d", raw.Total, built.total))
	}
	*b = built
	return nil
}
