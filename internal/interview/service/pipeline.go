package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"seriosity/internal/interview/models"
	"seriosity/internal/interview/ports"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/platform/sentinel"
	"seriosity/pkg/requestcontext"
)

const reasonNoTranscribable = "no transcribable answers"

var tracer = otel.Tracer("seriosity/internal/interview")

// ProcessInterview transcribes every answer, analyzes the aggregate and
// finalizes the interview as done or failed. A failed run is persisted and
// also returned as CodeAnalysisFailed. If the interview is reprocessed while
// this run is in flight, nothing is written and CodeConflict is returned.
func (s *Service) ProcessInterview(ctx context.Context, interviewID id.InterviewID) (*models.Interview, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveProcessLatency(time.Since(start)) }()

	ctx, span := tracer.Start(ctx, "interview.process",
		trace.WithAttributes(attribute.String("interview.id", interviewID.String())))
	defer span.End()

	snapshot, err := s.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, recordSpanError(span, err)
	}
	if snapshot.Status != models.StatusInProgress {
		return nil, recordSpanError(span, dErrors.New(dErrors.CodeInvalidState, "interview is not in progress"))
	}
	span.SetAttributes(
		attribute.Int("interview.attempt", snapshot.Attempt),
		attribute.Int("interview.answers", len(snapshot.Answers)),
	)

	// External calls run detached from the caller so an abandoned request
	// lets them finish; their results are checked against the attempt below.
	runCtx := context.WithoutCancel(ctx)

	result := snapshot.Clone()
	result.Answers = s.transcribeAll(runCtx, snapshot)

	if err := s.checkStillCurrent(runCtx, snapshot); err != nil {
		return nil, recordSpanError(span, err)
	}

	if !anyTranscribed(result.Answers) {
		return s.finishFailed(runCtx, span, snapshot, result, reasonNoTranscribable)
	}

	analysis, err := s.analyze(runCtx, result)
	if err != nil {
		s.logger.ErrorContext(ctx, "interview analysis failed",
			"request_id", requestcontext.RequestID(ctx),
			"interview_id", interviewID,
			"attempt", snapshot.Attempt,
			"category", ports.CategoryOf(err),
			"error", err,
		)
		return s.finishFailed(runCtx, span, snapshot, result, fmt.Sprintf("analysis %s", ports.CategoryOf(err)))
	}

	now := requestcontext.Now(ctx)
	result.Status = models.StatusDone
	result.Analysis = &analysis
	result.FailureReason = ""
	result.CompletedAt = &now
	if err := s.commit(runCtx, snapshot, result); err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := s.recordOutcome(runCtx, result); err != nil {
		return nil, recordSpanError(span, err)
	}

	s.metrics.IncrementOutcome(string(models.StatusDone))
	s.logger.InfoContext(ctx, "interview processed",
		"request_id", requestcontext.RequestID(ctx),
		"interview_id", interviewID,
		"tenant_id", result.TenantID,
		"attempt", result.Attempt,
		"fallbacks", countFallbacks(result.Answers),
		"clarity", analysis.Clarity,
		"consistency", analysis.Consistency,
		"evasive", analysis.Evasive,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// transcribeAll runs one transcription per answer on a bounded pool and
// returns the answers in their original order. It never fails: answers whose
// transcription gives out carry the placeholder instead.
func (s *Service) transcribeAll(ctx context.Context, iv *models.Interview) []models.Answer {
	answers := slices.Clone(iv.Answers)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for i := range answers {
		g.Go(func() error {
			answers[i] = s.transcribeAnswer(ctx, iv.ID, answers[i])
			return nil
		})
	}
	_ = g.Wait()

	return answers
}

func (s *Service) transcribeAnswer(ctx context.Context, interviewID id.InterviewID, answer models.Answer) models.Answer {
	answer.TranscriptFailed = false
	answer.FailureReason = ""

	if answer.MediaKind == models.MediaText {
		answer.Transcript = answer.Text
		s.metrics.IncrementTranscription(string(answer.MediaKind), "passthrough")
		return answer
	}

	ctx, span := tracer.Start(ctx, "interview.transcribe", trace.WithAttributes(
		attribute.String("question.id", answer.QuestionID.String()),
		attribute.String("media.kind", string(answer.MediaKind)),
	))
	defer span.End()

	transcript, err := s.transcribeWithRetry(ctx, answer)
	if err != nil {
		category := ports.CategoryOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(category))
		s.logger.WarnContext(ctx, "transcription failed, using placeholder",
			"request_id", requestcontext.RequestID(ctx),
			"interview_id", interviewID,
			"question_id", answer.QuestionID,
			"category", category,
			"error", err,
		)
		s.metrics.IncrementTranscription(string(answer.MediaKind), "fallback")
		answer.Transcript = models.PlaceholderTranscript
		answer.TranscriptFailed = true
		answer.FailureReason = fmt.Sprintf("transcription %s", category)
		return answer
	}

	s.metrics.IncrementTranscription(string(answer.MediaKind), "ok")
	answer.Transcript = transcript
	return answer
}

func (s *Service) transcribeWithRetry(ctx context.Context, answer models.Answer) (string, error) {
	var transcript string
	operation := func() error {
		recording, err := s.loadRecording(ctx, answer)
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.TranscribeTimeout)
		defer cancel()

		started := time.Now()
		text, err := s.transcriber.Transcribe(callCtx, recording)
		s.metrics.ObserveTranscribeLatency(string(answer.MediaKind), time.Since(started))
		if err == nil && strings.TrimSpace(text) == "" {
			err = ports.NewTranscriptionError(ports.ErrorBadData, "empty transcript", nil)
		}
		if err != nil {
			if !ports.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		transcript = strings.TrimSpace(text)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.logger.DebugContext(ctx, "retrying transcription",
			"question_id", answer.QuestionID,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}
	if err := backoff.RetryNotify(operation, s.retryPolicy(ctx), notify); err != nil {
		return "", err
	}
	return transcript, nil
}

func (s *Service) loadRecording(ctx context.Context, answer models.Answer) (ports.Recording, error) {
	if s.media == nil {
		return ports.Recording{}, backoff.Permanent(
			ports.NewTranscriptionError(ports.ErrorInvalidInput, "answer storage is not configured", nil))
	}
	rc, contentType, err := s.media.Open(ctx, answer.MediaRef)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ports.Recording{}, backoff.Permanent(
			ports.NewTranscriptionError(ports.ErrorBadData, "recording is missing", err))
	}
	if err != nil {
		return ports.Recording{}, ports.NewTranscriptionError(ports.ErrorOutage, "failed to open recording", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return ports.Recording{}, ports.NewTranscriptionError(ports.ErrorOutage, "failed to read recording", err)
	}
	if contentType == "" {
		contentType = answer.ContentType
	}
	return ports.Recording{
		QuestionID:  answer.QuestionID,
		Kind:        answer.MediaKind,
		ContentType: contentType,
		Filename:    recordingFilename(answer),
		Data:        data,
	}, nil
}

func (s *Service) analyze(ctx context.Context, iv *models.Interview) (models.Analysis, error) {
	ctx, span := tracer.Start(ctx, "interview.analyze")
	defer span.End()

	transcript := iv.AggregateTranscript()
	profile := ports.ProfileContext{
		TenantID:    iv.TenantID,
		QuestionIDs: iv.QuestionIDs(),
	}

	var analysis models.Analysis
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
		defer cancel()

		result, err := s.analyzer.Analyze(callCtx, transcript, profile)
		if err == nil {
			if verr := result.Validate(); verr != nil {
				err = ports.NewAnalysisError(ports.ErrorBadData, "analysis out of range", verr)
			}
		}
		if err != nil {
			s.metrics.IncrementAnalysisAttempt("error")
			if !ports.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		s.metrics.IncrementAnalysisAttempt("ok")
		analysis = result
		return nil
	}

	if err := backoff.Retry(operation, s.retryPolicy(ctx)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(ports.CategoryOf(err)))
		return models.Analysis{}, err
	}
	return analysis, nil
}

// retryPolicy allows MaxAttempts calls in total with exponential waits.
func (s *Service) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxAttempts-1)), ctx)
}

// checkStillCurrent reports CodeConflict when the interview was reprocessed
// or finalized by someone else while this run was transcribing.
func (s *Service) checkStillCurrent(ctx context.Context, snapshot *models.Interview) error {
	latest, err := s.GetInterview(ctx, snapshot.ID)
	if err != nil {
		return err
	}
	if latest.Attempt != snapshot.Attempt || latest.Status != models.StatusInProgress {
		return s.abandoned(ctx, snapshot)
	}
	return nil
}

func (s *Service) abandoned(ctx context.Context, snapshot *models.Interview) error {
	s.metrics.IncrementOutcome("abandoned")
	s.logger.InfoContext(ctx, "interview run abandoned, discarding results",
		"request_id", requestcontext.RequestID(ctx),
		"interview_id", snapshot.ID,
		"attempt", snapshot.Attempt,
	)
	return dErrors.New(dErrors.CodeConflict, "interview changed while processing, results discarded")
}

// commit writes the run's result against the version it started from. Any
// change since then means the run is stale.
func (s *Service) commit(ctx context.Context, snapshot, result *models.Interview) error {
	result.Version = snapshot.Version + 1
	result.UpdatedAt = requestcontext.Now(ctx)
	err := s.store.CompareAndSwap(ctx, result, snapshot.Version)
	if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrNotFound) {
		return s.abandoned(ctx, snapshot)
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save interview")
	}
	return nil
}

func (s *Service) finishFailed(ctx context.Context, span trace.Span, snapshot, result *models.Interview, reason string) (*models.Interview, error) {
	now := requestcontext.Now(ctx)
	result.Status = models.StatusFailed
	result.Analysis = nil
	result.FailureReason = reason
	result.CompletedAt = &now
	if err := s.commit(ctx, snapshot, result); err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := s.recordOutcome(ctx, result); err != nil {
		return nil, recordSpanError(span, err)
	}

	s.metrics.IncrementOutcome(string(models.StatusFailed))
	s.logger.WarnContext(ctx, "interview processing failed",
		"request_id", requestcontext.RequestID(ctx),
		"interview_id", result.ID,
		"tenant_id", result.TenantID,
		"attempt", result.Attempt,
		"reason", reason,
	)
	return result, recordSpanError(span, dErrors.New(dErrors.CodeAnalysisFailed, "interview processing failed: "+reason))
}

// recordOutcome copies a finalized interview into the tenant's evidence. The
// interview is already committed, so transient failures are retried on the
// pipeline's backoff policy before giving up.
func (s *Service) recordOutcome(ctx context.Context, iv *models.Interview) error {
	if s.evidence == nil {
		return nil
	}
	op := func() error {
		err := s.evidence.RecordInterviewOutcome(ctx, iv.TenantID, iv.Outcome())
		if err != nil && !retryableOutcomeError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.WarnContext(ctx, "recording interview outcome failed, retrying",
			"request_id", requestcontext.RequestID(ctx),
			"interview_id", iv.ID,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}
	if err := backoff.RetryNotify(op, s.retryPolicy(ctx), notify); err != nil {
		s.logger.ErrorContext(ctx, "failed to record interview outcome",
			"request_id", requestcontext.RequestID(ctx),
			"interview_id", iv.ID,
			"tenant_id", iv.TenantID,
			"error", err,
		)
		return err
	}
	return nil
}

func retryableOutcomeError(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeConflict, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		return true
	default:
		return false
	}
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func anyTranscribed(answers []models.Answer) bool {
	for _, answer := range answers {
		if !answer.TranscriptFailed && answer.Transcript != "" {
			return true
		}
	}
	return false
}

func countFallbacks(answers []models.Answer) int {
	n := 0
	for _, answer := range answers {
		if answer.TranscriptFailed {
			n++
		}
	}
	return n
}

func recordingFilename(answer models.Answer) string {
	ext := ".bin"
	if _, sub, ok := strings.Cut(answer.ContentType, "/"); ok {
		sub, _, _ = strings.Cut(sub, ";")
		if sub = strings.TrimSpace(sub); sub != "" {
			ext = "." + sub
		}
	}
	return answer.QuestionID.String() + ext
}
