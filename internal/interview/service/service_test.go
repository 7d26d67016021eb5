package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	evmodels "seriosity/internal/evidence/models"
	evservice "seriosity/internal/evidence/service"
	evstore "seriosity/internal/evidence/store"
	"seriosity/internal/interview/mocks"
	"seriosity/internal/interview/models"
	"seriosity/internal/interview/ports"
	"seriosity/internal/interview/store"
	"seriosity/internal/media"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/requestcontext"
)

// flakyEvidence fails the first failures outcome writes with code.
type flakyEvidence struct {
	next     EvidenceRecorder
	failures int
	code     dErrors.Code
	calls    int
}

func (f *flakyEvidence) RecordInterviewOutcome(ctx context.Context, tenantID id.TenantID, outcome evmodels.InterviewOutcome) error {
	f.calls++
	if f.calls <= f.failures {
		return dErrors.New(f.code, "evidence write failed")
	}
	return f.next.RecordInterviewOutcome(ctx, tenantID, outcome)
}

// =============================================================================
// Interview Service Test Suite
// =============================================================================
// Runs the real service against in-memory stores and a real evidence
// service, with the external transcriber and analyzer mocked.

type InterviewServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	transcriber *mocks.MockTranscriber
	analyzer    *mocks.MockAnalyzer
	store       *store.InMemoryStore
	media       *media.InMemoryStore
	evStore     *evstore.InMemoryStore
	evidence    *evservice.Service
	service     *Service
	ctx         context.Context
	tenantID    id.TenantID
}

func TestInterviewServiceSuite(t *testing.T) {
	suite.Run(t, new(InterviewServiceSuite))
}

func (s *InterviewServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.transcriber = mocks.NewMockTranscriber(s.ctrl)
	s.analyzer = mocks.NewMockAnalyzer(s.ctrl)
	s.store = store.NewInMemoryStore()
	s.media = media.NewInMemoryStore()
	s.evStore = evstore.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.evidence = evservice.New(s.evStore, s.evStore, evservice.WithLogger(logger))
	s.service = New(s.store, s.media, s.transcriber, s.analyzer, s.evidence,
		WithLogger(logger),
		WithConfig(Config{
			Workers:           3,
			TranscribeTimeout: time.Second,
			AnalysisTimeout:   time.Second,
			MaxAttempts:       3,
			InitialInterval:   time.Millisecond,
			MaxInterval:       2 * time.Millisecond,
		}),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	s.tenantID = id.NewTenantID()
}

func (s *InterviewServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *InterviewServiceSuite) start() *models.Interview {
	iv, err := s.service.StartInterview(s.ctx, s.tenantID)
	s.Require().NoError(err)
	return iv
}

func (s *InterviewServiceSuite) submitText(interviewID id.InterviewID, question, text string) *models.Interview {
	iv, err := s.service.SubmitAnswer(s.ctx, interviewID, id.QuestionID(question), AnswerMedia{
		ContentType: "text/plain",
		Body:        strings.NewReader(text),
	})
	s.Require().NoError(err)
	return iv
}

func (s *InterviewServiceSuite) submitAudio(interviewID id.InterviewID, question string) *models.Interview {
	iv, err := s.service.SubmitAnswer(s.ctx, interviewID, id.QuestionID(question), AnswerMedia{
		ContentType: "audio/webm",
		Filename:    question + ".webm",
		Body:        strings.NewReader("audio-bytes-" + question),
	})
	s.Require().NoError(err)
	return iv
}

func goodAnalysis() models.Analysis {
	return models.Analysis{Clarity: 0.8, Consistency: 0.6, Facts: map[string]string{"employer": "Acme"}}
}

// =============================================================================
// Answer Submission
// =============================================================================

func (s *InterviewServiceSuite) TestSubmitAnswer() {
	s.Run("media is stored and referenced, not transcribed", func() {
		iv := s.start()
		updated := s.submitAudio(iv.ID, "q1")

		s.Require().Len(updated.Answers, 1)
		answer := updated.Answers[0]
		s.Equal(models.MediaAudio, answer.MediaKind)
		s.True(strings.HasPrefix(answer.MediaRef, "mem://interviews/"+iv.ID.String()+"/q1/"))
		s.Empty(answer.Transcript)
		s.Equal(1, s.media.Len())
	})

	s.Run("resubmitting replaces in place and removes the old recording", func() {
		s.media = media.NewInMemoryStore()
		s.service.media = s.media
		iv := s.start()
		s.submitAudio(iv.ID, "q1")
		s.submitText(iv.ID, "q2", "I work at Acme")
		updated := s.submitText(iv.ID, "q1", "Actually, in writing")

		s.Require().Len(updated.Answers, 2)
		s.Equal(id.QuestionID("q1"), updated.Answers[0].QuestionID)
		s.Equal(models.MediaText, updated.Answers[0].MediaKind)
		s.Equal("Actually, in writing", updated.Answers[0].Text)
		s.Equal(id.QuestionID("q2"), updated.Answers[1].QuestionID)
		s.Equal(0, s.media.Len())
	})

	s.Run("unsupported content type is rejected", func() {
		iv := s.start()
		_, err := s.service.SubmitAnswer(s.ctx, iv.ID, "q1", AnswerMedia{
			ContentType: "application/pdf",
			Body:        strings.NewReader("%PDF"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("empty and oversized text are rejected", func() {
		iv := s.start()
		_, err := s.service.SubmitAnswer(s.ctx, iv.ID, "q1", AnswerMedia{ContentType: "text/plain", Body: strings.NewReader("   ")})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.SubmitAnswer(s.ctx, iv.ID, "q1", AnswerMedia{
			ContentType: "text/plain",
			Body:        strings.NewReader(strings.Repeat("a", maxTextAnswerLength+1)),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown interview is not found", func() {
		_, err := s.service.SubmitAnswer(s.ctx, id.NewInterviewID(), "q1", AnswerMedia{ContentType: "text/plain", Body: strings.NewReader("hi")})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *InterviewServiceSuite) TestSubmitAfterDoneIsInvalidState() {
	iv := s.start()
	s.submitText(iv.ID, "q1", "I have lived in the same flat for six years")
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).Return(goodAnalysis(), nil)

	_, err := s.service.ProcessInterview(s.ctx, iv.ID)
	s.Require().NoError(err)

	_, err = s.service.SubmitAnswer(s.ctx, iv.ID, "q2", AnswerMedia{ContentType: "text/plain", Body: strings.NewReader("late")})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

// =============================================================================
// Processing
// =============================================================================

func (s *InterviewServiceSuite) TestProcessHappyPathUpdatesScore() {
	iv := s.start()
	s.submitText(iv.ID, "q1", "I work as a nurse")
	s.submitAudio(iv.ID, "q2")

	s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec ports.Recording) (string, error) {
			s.Equal(id.QuestionID("q2"), rec.QuestionID)
			s.Equal(models.MediaAudio, rec.Kind)
			s.Equal("audio-bytes-q2", string(rec.Data))
			return "  I have two references  ", nil
		})
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, transcript string, profile ports.ProfileContext) (models.Analysis, error) {
			s.Equal("[q1]\nI work as a nurse\n\n[q2]\nI have two references", transcript)
			s.Equal(s.tenantID, profile.TenantID)
			s.Equal([]id.QuestionID{"q1", "q2"}, profile.QuestionIDs)
			return goodAnalysis(), nil
		})

	done, err := s.service.ProcessInterview(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, done.Status)
	s.Require().NotNil(done.Analysis)
	s.Require().NotNil(done.CompletedAt)

	stored, err := s.service.GetInterview(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, stored.Status)

	// clarity round(0.8*20)=16, consistency round(0.6*15)=9, responsiveness 5
	scored, err := s.evidence.GetScore(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(30, scored.Breakdown.Total())
}

func (s *InterviewServiceSuite) TestTwoOfFiveFailuresStillCompletes() {
	iv := s.start()
	s.submitText(iv.ID, "q1", "I pay rent on the first of the month")
	for _, q := range []string{"q2", "q3", "q4", "q5"} {
		s.submitAudio(iv.ID, q)
	}

	var q4Calls, q5Calls atomic.Int32
	s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec ports.Recording) (string, error) {
			switch rec.QuestionID {
			case "q4":
				q4Calls.Add(1)
				return "", ports.NewTranscriptionError(ports.ErrorOutage, "upstream 503", nil)
			case "q5":
				q5Calls.Add(1)
				return "", ports.NewTranscriptionError(ports.ErrorBadData, "unreadable audio", nil)
			default:
				return "answer for " + string(rec.QuestionID), nil
			}
		}).AnyTimes()

	var aggregate string
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, transcript string, _ ports.ProfileContext) (models.Analysis, error) {
			aggregate = transcript
			return goodAnalysis(), nil
		})

	done, err := s.service.ProcessInterview(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, done.Status)

	s.Equal(int32(3), q4Calls.Load(), "retryable failures use every attempt")
	s.Equal(int32(1), q5Calls.Load(), "permanent failures are not retried")

	s.Equal(5, strings.Count(aggregate, "[q"))
	s.Equal(2, strings.Count(aggregate, models.PlaceholderTranscript))
	s.Less(strings.Index(aggregate, "[q1]"), strings.Index(aggregate, "[q5]"))

	s.Require().Len(done.Answers, 5)
	s.True(done.Answers[3].TranscriptFailed)
	s.Equal("transcription outage", done.Answers[3].FailureReason)
	s.True(done.Answers[4].TranscriptFailed)
	s.Equal("transcription bad_data", done.Answers[4].FailureReason)
	s.False(done.Answers[1].TranscriptFailed)
}

func (s *InterviewServiceSuite) TestPerCallTimeoutFallsBackToPlaceholder() {
	s.service.cfg.TranscribeTimeout = 20 * time.Millisecond
	s.service.cfg.MaxAttempts = 2
	iv := s.start()
	s.submitText(iv.ID, "q1", "text answer")
	s.submitAudio(iv.ID, "q2")

	s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ ports.Recording) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}).Times(2)
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).Return(goodAnalysis(), nil)

	done, err := s.service.ProcessInterview(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, done.Status)
	s.Equal("transcription timeout", done.Answers[1].FailureReason)
}

func (s *InterviewServiceSuite) TestZeroTranscribableAnswersFails() {
	s.Run("every recording fails", func() {
		iv := s.start()
		s.submitAudio(iv.ID, "q1")
		s.submitAudio(iv.ID, "q2")
		s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).
			Return("", ports.NewTranscriptionError(ports.ErrorInvalidInput, "unsupported codec", nil)).Times(2)

		failed, err := s.service.ProcessInterview(s.ctx, iv.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAnalysisFailed))
		s.Require().NotNil(failed)
		s.Equal(models.StatusFailed, failed.Status)
		s.Equal(reasonNoTranscribable, failed.FailureReason)

		ev, err := s.evidence.GetEvidence(s.ctx, s.tenantID)
		s.Require().NoError(err)
		s.Require().NotNil(ev.Interview)
		s.Equal(models.StatusFailed, ev.Interview.Status)
	})

	s.Run("no answers at all", func() {
		iv := s.start()
		failed, err := s.service.ProcessInterview(s.ctx, iv.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAnalysisFailed))
		s.Equal(models.StatusFailed, failed.Status)

		scored, err := s.evidence.GetScore(s.ctx, s.tenantID)
		s.Require().NoError(err)
		s.Equal(0, scored.Breakdown.Total())
	})
}

func (s *InterviewServiceSuite) TestAnalysisFailure() {
	s.Run("outage is retried then fails the run", func() {
		iv := s.start()
		s.submitText(iv.ID, "q1", "hello")
		s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(models.Analysis{}, ports.NewAnalysisError(ports.ErrorOutage, "503", nil)).Times(3)

		failed, err := s.service.ProcessInterview(s.ctx, iv.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAnalysisFailed))
		s.Equal(models.StatusFailed, failed.Status)
		s.Equal("analysis outage", failed.FailureReason)
		s.Nil(failed.Analysis)

		stored, err := s.service.GetInterview(s.ctx, iv.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusFailed, stored.Status)
	})

	s.Run("out of range scores are not retried", func() {
		iv := s.start()
		s.submitText(iv.ID, "q1", "hello")
		s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(models.Analysis{Clarity: 1.4, Consistency: 0.5}, nil).Times(1)

		failed, err := s.service.ProcessInterview(s.ctx, iv.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAnalysisFailed))
		s.Equal("analysis bad_data", failed.FailureReason)
	})
}

func (s *InterviewServiceSuite) TestProcessRequiresInProgress() {
	iv := s.start()
	s.submitText(iv.ID, "q1", "hello")
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).Return(goodAnalysis(), nil)
	_, err := s.service.ProcessInterview(s.ctx, iv.ID)
	s.Require().NoError(err)

	_, err = s.service.ProcessInterview(s.ctx, iv.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *InterviewServiceSuite) TestCallerCancellationDoesNotAbortRun() {
	iv := s.start()
	s.submitAudio(iv.ID, "q1")

	ctx, cancel := context.WithCancel(s.ctx)
	s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(callCtx context.Context, _ ports.Recording) (string, error) {
			cancel()
			s.NoError(callCtx.Err())
			return "still transcribed", nil
		})
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).Return(goodAnalysis(), nil)

	done, err := s.service.ProcessInterview(ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, done.Status)
}

// =============================================================================
// Reprocessing and Abandonment
// =============================================================================

func (s *InterviewServiceSuite) TestReprocessClearsPreviousRun() {
	iv := s.start()
	s.submitText(iv.ID, "q1", "hello")
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).Return(goodAnalysis(), nil).Times(2)

	_, err := s.service.ProcessInterview(s.ctx, iv.ID)
	s.Require().NoError(err)

	restarted, err := s.service.ReprocessInterview(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, restarted.Status)
	s.Equal(2, restarted.Attempt)
	s.Nil(restarted.Analysis)
	s.Nil(restarted.CompletedAt)
	s.Empty(restarted.Answers[0].Transcript)
	s.Equal("hello", restarted.Answers[0].Text)

	again, err := s.service.ProcessInterview(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, again.Status)
	s.Equal(2, again.Attempt)
}

func (s *InterviewServiceSuite) TestReprocessDuringRunDiscardsResults() {
	iv := s.start()
	s.submitAudio(iv.ID, "q1")
	s.submitAudio(iv.ID, "q2")

	var once sync.Once
	s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ ports.Recording) (string, error) {
			once.Do(func() {
				_, err := s.service.ReprocessInterview(ctx, iv.ID)
				s.NoError(err)
			})
			return "transcribed", nil
		}).Times(2)

	_, err := s.service.ProcessInterview(s.ctx, iv.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	stored, err := s.service.GetInterview(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, stored.Status)
	s.Equal(2, stored.Attempt)
	for _, answer := range stored.Answers {
		s.Empty(answer.Transcript)
	}

	ev, err := s.evidence.GetEvidence(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Nil(ev.Interview)
}

func (s *InterviewServiceSuite) TestStartInterviewRequiresTenant() {
	_, err := s.service.StartInterview(s.ctx, id.TenantID{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// =============================================================================
// Outcome recording
// =============================================================================

func (s *InterviewServiceSuite) serviceWithEvidence(evidence EvidenceRecorder) *Service {
	return New(s.store, s.media, s.transcriber, s.analyzer, evidence,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithConfig(Config{
			Workers:           1,
			TranscribeTimeout: time.Second,
			AnalysisTimeout:   time.Second,
			MaxAttempts:       3,
			InitialInterval:   time.Millisecond,
			MaxInterval:       2 * time.Millisecond,
		}),
	)
}

func (s *InterviewServiceSuite) TestOutcomeWriteIsRetried() {
	flaky := &flakyEvidence{next: s.evidence, failures: 2, code: dErrors.CodeInternal}
	svc := s.serviceWithEvidence(flaky)
	iv := s.start()
	s.submitText(iv.ID, "q1", "I work as a nurse")
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).Return(goodAnalysis(), nil)

	done, err := svc.ProcessInterview(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, done.Status)
	s.Equal(3, flaky.calls)

	ev, err := s.evidence.GetEvidence(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().NotNil(ev.Interview)
	s.Equal(iv.ID, ev.Interview.InterviewID)
}

func (s *InterviewServiceSuite) TestOutcomeWriteNotRetriedOnValidationError() {
	flaky := &flakyEvidence{next: s.evidence, failures: 1, code: dErrors.CodeValidation}
	svc := s.serviceWithEvidence(flaky)
	iv := s.start()
	s.submitText(iv.ID, "q1", "I work as a nurse")
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).Return(goodAnalysis(), nil)

	_, err := svc.ProcessInterview(s.ctx, iv.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(1, flaky.calls)
}

func (s *InterviewServiceSuite) TestSyncOutcomeRepairsMissingOutcome() {
	flaky := &flakyEvidence{next: s.evidence, failures: 3, code: dErrors.CodeUnavailable}
	svc := s.serviceWithEvidence(flaky)
	iv := s.start()
	s.submitText(iv.ID, "q1", "I work as a nurse")
	s.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).Return(goodAnalysis(), nil)

	_, err := svc.ProcessInterview(s.ctx, iv.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	stored, err := svc.GetInterview(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, stored.Status)
	ev, err := s.evidence.GetEvidence(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Nil(ev.Interview)

	synced, err := svc.SyncOutcome(s.ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, synced.Status)

	ev, err = s.evidence.GetEvidence(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().NotNil(ev.Interview)
	s.Equal(iv.ID, ev.Interview.InterviewID)
	scored, err := s.evidence.GetScore(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(30, scored.Breakdown.Total())
}

func (s *InterviewServiceSuite) TestSyncOutcomeRequiresFinishedInterview() {
	iv := s.start()
	_, err := s.service.SyncOutcome(s.ctx, iv.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}
