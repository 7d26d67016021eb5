package ports

import (
	"context"

	"seriosity/internal/interview/models"
	id "seriosity/pkg/domain"
)

// Recording is one media answer handed to a transcriber.
type Recording struct {
	QuestionID  id.QuestionID
	Kind        models.MediaKind
	ContentType string
	Filename    string
	Data        []byte
}

// Transcriber turns a recorded answer into text. Failures should be
// *TranscriptionError so the pipeline can tell transient from permanent.
//
//go:generate mockgen -source=ports.go -destination=../mocks/ports_mock.go -package=mocks Transcriber,Analyzer
type Transcriber interface {
	Transcribe(ctx context.Context, recording Recording) (string, error)
}

// ProfileContext gives the analyzer what it needs to interpret answers.
type ProfileContext struct {
	TenantID    id.TenantID
	QuestionIDs []id.QuestionID
}

// Analyzer scores the aggregate transcript of an interview. Failures should
// be *AnalysisError.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string, profile ProfileContext) (models.Analysis, error)
}
