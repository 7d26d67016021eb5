//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"seriosity/internal/evidence/cache"
	"seriosity/internal/score"
	id "seriosity/pkg/domain"
	"seriosity/pkg/testutil/containers"
)

type RedisScoreCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisScoreCache
}

func TestRedisScoreCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisScoreCacheSuite))
}

func (s *RedisScoreCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.NewRedisScoreCache(s.redis.Client, time.Minute)
}

func (s *RedisScoreCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisScoreCacheSuite) TestMissThenHit() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	_, ok, err := s.cache.Get(ctx, tenantID)
	s.Require().NoError(err)
	s.False(ok)

	b, err := score.NewBreakdown(score.Components{IDVerified: 15, References: 5})
	s.Require().NoError(err)
	stored := score.StoredScore{Breakdown: b, EvidenceVersion: 3, ComputedAt: time.Now().UTC().Truncate(time.Second)}
	s.Require().NoError(s.cache.Set(ctx, tenantID, stored))

	got, ok, err := s.cache.Get(ctx, tenantID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(stored.Breakdown, got.Breakdown)
	s.Equal(int64(3), got.EvidenceVersion)
	s.True(stored.ComputedAt.Equal(got.ComputedAt))
}

func (s *RedisScoreCacheSuite) TestInvalidate() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	s.Require().NoError(s.cache.Set(ctx, tenantID, score.StoredScore{EvidenceVersion: 1}))

	s.Require().NoError(s.cache.Invalidate(ctx, tenantID, 2))

	_, ok, err := s.cache.Get(ctx, tenantID)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisScoreCacheSuite) TestSetAfterInvalidateIgnoresOlderScore() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	older, err := score.NewBreakdown(score.Components{IDVerified: 15})
	s.Require().NoError(err)

	// A reader loaded version 1, then a writer committed version 2.
	s.Require().NoError(s.cache.Invalidate(ctx, tenantID, 2))
	s.Require().NoError(s.cache.Set(ctx, tenantID, score.StoredScore{Breakdown: older, EvidenceVersion: 1}))

	_, ok, err := s.cache.Get(ctx, tenantID)
	s.Require().NoError(err)
	s.False(ok, "score below the version floor must not be cached")

	s.Require().NoError(s.cache.Set(ctx, tenantID, score.StoredScore{EvidenceVersion: 2}))
	got, ok, err := s.cache.Get(ctx, tenantID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(int64(2), got.EvidenceVersion)
}

func (s *RedisScoreCacheSuite) TestSetKeepsNewerEntry() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	s.Require().NoError(s.cache.Set(ctx, tenantID, score.StoredScore{EvidenceVersion: 5}))
	s.Require().NoError(s.cache.Set(ctx, tenantID, score.StoredScore{EvidenceVersion: 4}))

	got, ok, err := s.cache.Get(ctx, tenantID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(int64(5), got.EvidenceVersion)
}

func (s *RedisScoreCacheSuite) TestCorruptEntryIsAMiss() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	s.Require().NoError(s.redis.Client.HSet(ctx, "seriosity:score:"+tenantID.String(), "score", "{not json").Err())

	_, ok, err := s.cache.Get(ctx, tenantID)
	s.Require().NoError(err)
	s.False(ok)
}
