package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	evmodels "seriosity/internal/evidence/models"
	"seriosity/internal/interview/metrics"
	"seriosity/internal/interview/models"
	"seriosity/internal/interview/ports"
	"seriosity/internal/media"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/platform/sentinel"
	"seriosity/pkg/requestcontext"
)

// Store persists interviews. CompareAndSwap writes only while the stored
// version equals expectedVersion; the caller sets the new Version.
type Store interface {
	Create(ctx context.Context, iv *models.Interview) error
	Get(ctx context.Context, interviewID id.InterviewID) (*models.Interview, error)
	CompareAndSwap(ctx context.Context, iv *models.Interview, expectedVersion int64) error
}

// MediaStore holds recorded answers.
type MediaStore interface {
	Store(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, ref string) error
}

// EvidenceRecorder receives the terminal outcome of a processing run and
// recomputes the tenant's score from it.
type EvidenceRecorder interface {
	RecordInterviewOutcome(ctx context.Context, tenantID id.TenantID, outcome evmodels.InterviewOutcome) error
}

// Config bounds the processing pipeline.
type Config struct {
	Workers           int
	TranscribeTimeout time.Duration
	AnalysisTimeout   time.Duration
	MaxAttempts       int
	InitialInterval   time.Duration
	MaxInterval       time.Duration
}

// DefaultConfig matches the server defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           4,
		TranscribeTimeout: 45 * time.Second,
		AnalysisTimeout:   60 * time.Second,
		MaxAttempts:       3,
		InitialInterval:   500 * time.Millisecond,
		MaxInterval:       5 * time.Second,
	}
}

// AnswerMedia is one submitted answer body. ContentType decides whether it
// is stored as a recording or kept as text.
type AnswerMedia struct {
	ContentType string
	Filename    string
	Body        io.Reader
}

const maxTextAnswerLength = 10_000

// Service runs the interview lifecycle from first answer to scored outcome.
type Service struct {
	store       Store
	media       MediaStore
	transcriber ports.Transcriber
	analyzer    ports.Analyzer
	evidence    EvidenceRecorder
	cfg         Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// New constructs a Service.
func New(
	store Store,
	mediaStore MediaStore,
	transcriber ports.Transcriber,
	analyzer ports.Analyzer,
	evidence EvidenceRecorder,
	opts ...Option,
) *Service {
	s := &Service{
		store:       store,
		media:       mediaStore,
		transcriber: transcriber,
		analyzer:    analyzer,
		evidence:    evidence,
		cfg:         DefaultConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Workers < 1 {
		s.cfg.Workers = 1
	}
	if s.cfg.MaxAttempts < 1 {
		s.cfg.MaxAttempts = 1
	}
	return s
}

// StartInterview opens a new interview for the tenant.
func (s *Service) StartInterview(ctx context.Context, tenantID id.TenantID) (*models.Interview, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}
	iv := models.NewInterview(tenantID, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, iv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create interview")
	}
	s.logger.InfoContext(ctx, "interview started",
		"request_id", requestcontext.RequestID(ctx),
		"interview_id", iv.ID,
		"tenant_id", tenantID,
	)
	return iv, nil
}

// GetInterview loads one interview.
func (s *Service) GetInterview(ctx context.Context, interviewID id.InterviewID) (*models.Interview, error) {
	iv, err := s.store.Get(ctx, interviewID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "interview not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load interview")
	}
	return iv, nil
}

// SubmitAnswer records or replaces the answer to one question. Recordings
// go to the media store; nothing is transcribed until processing.
func (s *Service) SubmitAnswer(ctx context.Context, interviewID id.InterviewID, questionID id.QuestionID, in AnswerMedia) (*models.Interview, error) {
	kind, err := models.ParseMediaKind(in.ContentType)
	if err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "answer body is required")
	}
	current, err := s.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusInProgress {
		return nil, dErrors.New(dErrors.CodeInvalidState, "interview is not accepting answers")
	}

	answer := models.Answer{
		QuestionID:  questionID,
		MediaKind:   kind,
		ContentType: in.ContentType,
		SubmittedAt: requestcontext.Now(ctx),
	}
	if kind == models.MediaText {
		text, err := readTextAnswer(in.Body)
		if err != nil {
			return nil, err
		}
		answer.Text = text
	} else {
		if s.media == nil {
			return nil, dErrors.New(dErrors.CodeUnavailable, "answer storage is not configured")
		}
		key := media.NewKey("interviews/"+interviewID.String()+"/"+questionID.String(), in.Filename)
		ref, err := s.media.Store(ctx, key, in.ContentType, in.Body)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store answer")
		}
		answer.MediaRef = ref
	}

	var replaced models.Answer
	var hadPrevious bool
	updated, err := s.mutate(ctx, interviewID, func(iv *models.Interview) error {
		if iv.Status != models.StatusInProgress {
			return dErrors.New(dErrors.CodeInvalidState, "interview is not accepting answers")
		}
		replaced, hadPrevious = iv.UpsertAnswer(answer)
		return nil
	})
	if err != nil {
		if answer.MediaRef != "" {
			s.deleteBlob(ctx, answer.MediaRef)
		}
		return nil, err
	}
	if hadPrevious && replaced.MediaRef != "" && replaced.MediaRef != answer.MediaRef {
		s.deleteBlob(ctx, replaced.MediaRef)
	}

	s.logger.InfoContext(ctx, "interview answer submitted",
		"request_id", requestcontext.RequestID(ctx),
		"interview_id", interviewID,
		"question_id", questionID,
		"media_kind", kind,
		"replaced", hadPrevious,
	)
	return updated, nil
}

// ReprocessInterview puts the interview back in progress under a new
// attempt. A run still in flight for the previous attempt discards its
// results when it finishes.
func (s *Service) ReprocessInterview(ctx context.Context, interviewID id.InterviewID) (*models.Interview, error) {
	now := requestcontext.Now(ctx)
	var previous models.Status
	iv, err := s.mutate(ctx, interviewID, func(iv *models.Interview) error {
		previous = iv.Status
		iv.Restart(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "interview reset for reprocessing",
		"request_id", requestcontext.RequestID(ctx),
		"interview_id", interviewID,
		"previous_status", previous,
		"attempt", iv.Attempt,
	)
	return iv, nil
}

// SyncOutcome writes a finalized interview's outcome into the tenant's
// evidence again. Operators use it when processing committed the interview
// but could not record the outcome.
func (s *Service) SyncOutcome(ctx context.Context, interviewID id.InterviewID) (*models.Interview, error) {
	iv, err := s.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if iv.Status != models.StatusDone && iv.Status != models.StatusFailed {
		return nil, dErrors.New(dErrors.CodeInvalidState, "interview has not finished processing")
	}
	if err := s.recordOutcome(ctx, iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// mutate runs a read-modify-write on one interview, retrying once on a lost
// compare-and-swap.
func (s *Service) mutate(ctx context.Context, interviewID id.InterviewID, fn func(iv *models.Interview) error) (*models.Interview, error) {
	const attempts = 2
	for attempt := 1; attempt <= attempts; attempt++ {
		current, err := s.GetInterview(ctx, interviewID)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.Version = current.Version + 1
		next.UpdatedAt = requestcontext.Now(ctx)

		err = s.store.CompareAndSwap(ctx, next, current.Version)
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.WarnContext(ctx, "interview write conflict",
				"request_id", requestcontext.RequestID(ctx),
				"interview_id", interviewID,
				"attempt", attempt,
			)
			continue
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "interview not found")
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save interview")
		}
		return next, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "interview was modified concurrently, retry the request")
}

func readTextAnswer(body io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxTextAnswerLength+1))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read answer")
	}
	if len(raw) > maxTextAnswerLength {
		return "", dErrors.New(dErrors.CodeValidation, "text answer is too long")
	}
	if !utf8.Valid(raw) {
		return "", dErrors.New(dErrors.CodeValidation, "text answer must be valid UTF-8")
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", dErrors.New(dErrors.CodeValidation, "text answer is empty")
	}
	return text, nil
}

func (s *Service) deleteBlob(ctx context.Context, ref string) {
	if s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, ref); err != nil {
		s.logger.WarnContext(ctx, "failed to delete answer blob",
			"request_id", requestcontext.RequestID(ctx),
			"ref", ref,
			"error", err,
		)
	}
}
