package score

import (
	"fmt"
	"math"
	"time"

	"seriosity/internal/evidence/models"
	dErrors "seriosity/pkg/domain-errors"
)

const (
	evasivenessPenalty  = 5
	interviewCompletion = 5
	day                 = 24 * time.Hour
)

// Compute maps tenant evidence to a breakdown. It is pure: the only times it
// reads are the timestamps stored on the evidence.
//
// An error means the evidence itself is corrupt (analysis scores outside
// [0,1]); it is never produced for well-formed input.
func Compute(ev models.TenantEvidence) (Breakdown, error) {
	clarity, consistency, err := interviewPoints(ev.Interview)
	if err != nil {
		return Breakdown{}, err
	}
	return NewBreakdown(Components{
		IDVerified:          idVerifiedPoints(ev.IdentityVerified),
		IncomeProof:         incomePoints(len(ev.IncomeDocuments), ev.VerifiedIncomeCount()),
		InterviewClarity:    clarity,
		ResponseConsistency: consistency,
		Responsiveness:      responsivenessPoints(ev),
		References:          referencePoints(len(ev.ReferenceDocuments)),
	})
}

func idVerifiedPoints(verified bool) int {
	if verified {
		return MaxIDVerified
	}
	return 0
}

// incomePoints: none → 0, only unverified → 15, one verified → 20,
// two or more verified → 25.
func incomePoints(total, verified int) int {
	switch {
	case total == 0:
		return 0
	case verified == 0:
		return 15
	case verified == 1:
		return 20
	default:
		return MaxIncomeProof
	}
}

func referencePoints(count int) int {
	switch {
	case count == 0:
		return 0
	case count == 1:
		return 5
	default:
		return MaxReferences
	}
}

func interviewPoints(outcome *models.InterviewOutcome) (clarity, consistency int, err error) {
	if !outcome.Completed() {
		return 0, 0, nil
	}
	if err := checkUnitInterval("clarity", outcome.Clarity); err != nil {
		return 0, 0, err
	}
	if err := checkUnitInterval("consistency", outcome.Consistency); err != nil {
		return 0, 0, err
	}
	clarity = int(math.Round(outcome.Clarity * MaxInterviewClarity))
	if outcome.Evasive {
		clarity = max(0, clarity-evasivenessPenalty)
	}
	consistency = int(math.Round(outcome.Consistency * MaxResponseConsistency))
	return clarity, consistency, nil
}

func checkUnitInterval(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("interview %s %v outside [0,1]", name, v))
	}
	return nil
}

// responsivenessPoints awards the completion bonus plus a time bonus based on
// how long the tenant took to finish their profile.
func responsivenessPoints(ev models.TenantEvidence) int {
	points := 0
	if ev.Interview.Completed() {
		points += interviewCompletion
	}
	if ev.ProfileCreatedAt != nil && ev.ProfileUpdatedAt != nil {
		points += timeBonus(ev.ProfileUpdatedAt.Sub(*ev.ProfileCreatedAt))
	}
	return min(MaxResponsiveness, points)
}

func timeBonus(elapsed time.Duration) int {
	days := max(0, elapsed.Hours()/day.Hours())
	switch {
	case days <= 1:
		return 10
	case days <= 3:
		return 7
	case days <= 7:
		return 5
	default:
		return 2
	}
}
