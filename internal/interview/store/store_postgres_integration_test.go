//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"seriosity/internal/interview/models"
	"seriosity/internal/interview/store"
	id "seriosity/pkg/domain"
	"seriosity/pkg/platform/sentinel"
	"seriosity/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "interviews"))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	iv := models.NewInterview(id.NewTenantID(), now)
	s.Require().NoError(s.store.Create(ctx, iv))
	s.ErrorIs(s.store.Create(ctx, iv), sentinel.ErrAlreadyExists)

	next := iv.Clone()
	next.UpsertAnswer(models.Answer{QuestionID: "q1", MediaKind: models.MediaText, Text: "hello", Transcript: "hello", SubmittedAt: now})
	next.UpsertAnswer(models.Answer{QuestionID: "q2", MediaKind: models.MediaAudio, MediaRef: "s3://bucket/a.webm", ContentType: "audio/webm",
		Transcript: models.PlaceholderTranscript, TranscriptFailed: true, FailureReason: "transcription timeout", SubmittedAt: now})
	next.Status = models.StatusDone
	next.Analysis = &models.Analysis{Clarity: 0.75, Consistency: 0.5, Evasive: true, Facts: map[string]string{"pets": "cat"}}
	completed := now.Add(time.Minute)
	next.CompletedAt = &completed
	next.Version = 2
	next.UpdatedAt = completed
	s.Require().NoError(s.store.CompareAndSwap(ctx, next, 1))

	got, err := s.store.Get(ctx, iv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, got.Status)
	s.Equal(int64(2), got.Version)
	s.Require().Len(got.Answers, 2)
	s.Equal(id.QuestionID("q1"), got.Answers[0].QuestionID)
	s.True(got.Answers[1].TranscriptFailed)
	s.Require().NotNil(got.Analysis)
	s.Equal("cat", got.Analysis.Facts["pets"])
	s.True(got.Analysis.Evasive)
	s.Require().NotNil(got.CompletedAt)
	s.True(completed.Equal(*got.CompletedAt))
}

func (s *PostgresStoreSuite) TestCompareAndSwapConflicts() {
	ctx := context.Background()
	iv := models.NewInterview(id.NewTenantID(), time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, iv))

	stale := iv.Clone()
	stale.Version = 3
	s.ErrorIs(s.store.CompareAndSwap(ctx, stale, 2), sentinel.ErrConflict)

	missing := models.NewInterview(id.NewTenantID(), time.Now().UTC())
	missing.Version = 2
	s.ErrorIs(s.store.CompareAndSwap(ctx, missing, 1), sentinel.ErrNotFound)

	_, err := s.store.Get(ctx, id.NewInterviewID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
