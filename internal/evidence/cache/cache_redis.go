package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"seriosity/internal/score"
	id "seriosity/pkg/domain"
)

const (
	scoreKeyPrefix = "seriosity:score:"

	fieldVersion = "version"
	fieldScore   = "score"
)

// setScript stores a score unless the key already holds a newer evidence
// version, either as a cached score or as a floor left by Invalidate.
var setScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'score', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// invalidateScript drops the cached score and raises the version floor.
var invalidateScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if (not current) or tonumber(current) < tonumber(ARGV[1]) then
  redis.call('HSET', KEYS[1], 'version', ARGV[1])
end
redis.call('HDEL', KEYS[1], 'score')
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// RedisScoreCache is a read-through cache for computed scores. Each tenant
// key is a hash of the evidence version and the encoded score. Writers
// invalidate with the version they committed, and readers filling a miss
// cannot store a score older than that.
type RedisScoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScoreCache constructs the cache. A non-positive ttl falls back to
// ten minutes.
func NewRedisScoreCache(client *redis.Client, ttl time.Duration) *RedisScoreCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisScoreCache{client: client, ttl: ttl}
}

// Get returns the cached score and whether it was present.
func (c *RedisScoreCache) Get(ctx context.Context, tenantID id.TenantID) (score.StoredScore, bool, error) {
	raw, err := c.client.HGet(ctx, scoreKey(tenantID), fieldScore).Bytes()
	if errors.Is(err, redis.Nil) {
		return score.StoredScore{}, false, nil
	}
	if err != nil {
		return score.StoredScore{}, false, fmt.Errorf("get cached score: %w", err)
	}
	var stored score.StoredScore
	if err := json.Unmarshal(raw, &stored); err != nil {
		// A corrupt entry is dropped and treated as a miss.
		_ = c.client.HDel(ctx, scoreKey(tenantID), fieldScore).Err()
		return score.StoredScore{}, false, nil
	}
	return stored, true, nil
}

// Set populates the cache after a miss. A score older than the tenant's
// version floor is silently discarded.
func (c *RedisScoreCache) Set(ctx context.Context, tenantID id.TenantID, stored score.StoredScore) error {
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	err = setScript.Run(ctx, c.client, []string{scoreKey(tenantID)},
		stored.EvidenceVersion,
		raw,
		c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("set cached score: %w", err)
	}
	return nil
}

// Invalidate drops the cached score for a tenant and records evidenceVersion
// as the oldest version a later Set may store.
func (c *RedisScoreCache) Invalidate(ctx context.Context, tenantID id.TenantID, evidenceVersion int64) error {
	err := invalidateScript.Run(ctx, c.client, []string{scoreKey(tenantID)},
		evidenceVersion,
		c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("invalidate cached score: %w", err)
	}
	return nil
}

func scoreKey(tenantID id.TenantID) string {
	return scoreKeyPrefix + tenantID.String()
}
