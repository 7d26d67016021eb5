package models

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	evmodels "seriosity/internal/evidence/models"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
)

// PlaceholderTranscript stands in for an answer whose transcription failed
// after all retries, so the aggregate still has one slot per question.
const PlaceholderTranscript = "[transcription unavailable]"

// Status is the interview lifecycle shared with the evidence record.
type Status = evmodels.InterviewStatus

const (
	StatusInProgress = evmodels.InterviewStatusInProgress
	StatusDone       = evmodels.InterviewStatusDone
	StatusFailed     = evmodels.InterviewStatusFailed
)

// MediaKind is the form a recorded answer takes.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaText  MediaKind = "text"
)

// ParseMediaKind maps a request Content-Type onto a media kind.
func ParseMediaKind(contentType string) (MediaKind, error) {
	mediaType, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	mediaType = strings.TrimSpace(mediaType)
	switch {
	case mediaType == "text/plain":
		return MediaText, nil
	case strings.HasPrefix(mediaType, "audio/"):
		return MediaAudio, nil
	case strings.HasPrefix(mediaType, "video/"):
		return MediaVideo, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported answer content type %q", contentType))
	}
}

// Answer is one question's recorded response and, after processing, its
// transcript.
type Answer struct {
	QuestionID       id.QuestionID `json:"question_id"`
	MediaKind        MediaKind     `json:"media_kind"`
	MediaRef         string        `json:"media_ref,omitempty"`
	ContentType      string        `json:"content_type,omitempty"`
	Text             string        `json:"text,omitempty"`
	Transcript       string        `json:"transcript,omitempty"`
	TranscriptFailed bool          `json:"transcript_failed,omitempty"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	SubmittedAt      time.Time     `json:"submitted_at"`
}

// Analysis is the aggregate assessment returned by the analyzer.
type Analysis struct {
	Clarity     float64           `json:"clarity"`
	Consistency float64           `json:"consistency"`
	Evasive     bool              `json:"evasive"`
	Facts       map[string]string `json:"facts,omitempty"`
}

// Validate rejects scores outside [0,1].
func (a Analysis) Validate() error {
	if math.IsNaN(a.Clarity) || a.Clarity < 0 || a.Clarity > 1 {
		return fmt.Errorf("clarity %v outside [0,1]", a.Clarity)
	}
	if math.IsNaN(a.Consistency) || a.Consistency < 0 || a.Consistency > 1 {
		return fmt.Errorf("consistency %v outside [0,1]", a.Consistency)
	}
	return nil
}

// Interview is one interview attempt by a tenant. Attempt increases on every
// reprocess; a processing run that started under an older attempt must not
// write its results.
type Interview struct {
	ID            id.InterviewID `json:"id"`
	TenantID      id.TenantID    `json:"tenant_id"`
	Status        Status         `json:"status"`
	Answers       []Answer       `json:"answers"`
	Analysis      *Analysis      `json:"analysis,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Attempt       int            `json:"attempt"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// NewInterview starts an interview in progress.
func NewInterview(tenantID id.TenantID, now time.Time) *Interview {
	return &Interview{
		ID:        id.NewInterviewID(),
		TenantID:  tenantID,
		Status:    StatusInProgress,
		Answers:   []Answer{},
		Attempt:   1,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (i *Interview) Clone() *Interview {
	if i == nil {
		return nil
	}
	out := *i
	out.Answers = slices.Clone(i.Answers)
	if i.Analysis != nil {
		a := *i.Analysis
		a.Facts = maps.Clone(i.Analysis.Facts)
		out.Analysis = &a
	}
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// UpsertAnswer replaces the answer for the same question in place, keeping
// first-submission order, or appends a new one. It returns the replaced
// answer, if any.
func (i *Interview) UpsertAnswer(answer Answer) (Answer, bool) {
	for idx, existing := range i.Answers {
		if existing.QuestionID == answer.QuestionID {
			i.Answers[idx] = answer
			return existing, true
		}
	}
	i.Answers = append(i.Answers, answer)
	return Answer{}, false
}

// Restart puts a finished or running interview back in progress under a new
// attempt, clearing everything the previous run produced.
func (i *Interview) Restart(now time.Time) {
	i.Status = StatusInProgress
	i.Attempt++
	i.Analysis = nil
	i.FailureReason = ""
	i.CompletedAt = nil
	for idx := range i.Answers {
		i.Answers[idx].Transcript = ""
		i.Answers[idx].TranscriptFailed = false
		i.Answers[idx].FailureReason = ""
	}
	i.UpdatedAt = now
}

// AggregateTranscript joins transcripts in question order, one labelled
// block per answer.
func (i *Interview) AggregateTranscript() string {
	var b strings.Builder
	for idx, answer := range i.Answers {
		if idx > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", answer.QuestionID, answer.Transcript)
	}
	return b.String()
}

// QuestionIDs lists the answered questions in order.
func (i *Interview) QuestionIDs() []id.QuestionID {
	out := make([]id.QuestionID, len(i.Answers))
	for idx, answer := range i.Answers {
		out[idx] = answer.QuestionID
	}
	return out
}

// Outcome is the snapshot written into the tenant's evidence. Only a done
// interview carries analysis values.
func (i *Interview) Outcome() evmodels.InterviewOutcome {
	outcome := evmodels.InterviewOutcome{
		InterviewID: i.ID,
		Status:      i.Status,
	}
	if i.CompletedAt != nil {
		outcome.CompletedAt = *i.CompletedAt
	}
	if i.Status == StatusDone && i.Analysis != nil {
		outcome.Clarity = i.Analysis.Clarity
		outcome.Consistency = i.Analysis.Consistency
		outcome.Evasive = i.Analysis.Evasive
		outcome.Facts = maps.Clone(i.Analysis.Facts)
	}
	return outcome
}
