package handler

import (
	"time"

	"seriosity/internal/interview/models"
	id "seriosity/pkg/domain"
)

// InterviewResponse is the client view of an interview. Storage references
// stay internal.
type InterviewResponse struct {
	ID            id.InterviewID   `json:"id"`
	TenantID      id.TenantID      `json:"tenant_id"`
	Status        models.Status    `json:"status"`
	Attempt       int              `json:"attempt"`
	Answers       []AnswerResponse `json:"answers"`
	Analysis      *models.Analysis `json:"analysis,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

type AnswerResponse struct {
	QuestionID       id.QuestionID    `json:"question_id"`
	MediaKind        models.MediaKind `json:"media_kind"`
	Transcript       string           `json:"transcript,omitempty"`
	TranscriptFailed bool             `json:"transcript_failed,omitempty"`
	FailureReason    string           `json:"failure_reason,omitempty"`
	SubmittedAt      time.Time        `json:"submitted_at"`
}

func toInterviewResponse(iv *models.Interview) InterviewResponse {
	answers := make([]AnswerResponse, len(iv.Answers))
	for i, a := range iv.Answers {
		answers[i] = AnswerResponse{
			QuestionID:       a.QuestionID,
			MediaKind:        a.MediaKind,
			Transcript:       a.Transcript,
			TranscriptFailed: a.TranscriptFailed,
			FailureReason:    a.FailureReason,
			SubmittedAt:      a.SubmittedAt,
		}
	}
	return InterviewResponse{
		ID:            iv.ID,
		TenantID:      iv.TenantID,
		Status:        iv.Status,
		Attempt:       iv.Attempt,
		Answers:       answers,
		Analysis:      iv.Analysis,
		FailureReason: iv.FailureReason,
		CreatedAt:     iv.CreatedAt,
		UpdatedAt:     iv.UpdatedAt,
		CompletedAt:   iv.CompletedAt,
	}
}
