package polls

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pollbox/backend/internal/models"
)

const resultsKeyPrefix = "poll:results:"

// ResultsCache keeps serialized results views in Redis for a short TTL.
// Votes and poll mutations invalidate the entry; any Redis failure degrades
// to the database read.
type ResultsCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultsCache creates a results cache.
func NewResultsCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ResultsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the cached results for a poll, or nil on miss.
func (c *ResultsCache) Get(ctx context.Context, pollID uuid.UUID) *models.PollResults {
	raw, err := c.rdb.Get(ctx, resultsKeyPrefix+pollID.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("results cache get", zap.Error(err))
		}
		return nil
	}
	var res models.PollResults
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.Warn("results cache decode", zap.Error(err))
		return nil
	}
	return &res
}

// Set stores the results for a poll.
func (c *ResultsCache) Set(ctx context.Context, pollID uuid.UUID, res *models.PollResults) {
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, resultsKeyPrefix+pollID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("results cache set", zap.Error(err))
	}
}

// Invalidate drops the cached results for a poll.
func (c *ResultsCache) Invalidate(ctx context.Context, pollID uuid.UUID) {
	if err := c.rdb.Del(ctx, resultsKeyPrefix+pollID.String()).Err(); err != nil {
		c.logger.Warn("results cache invalidate", zap.Error(err))
	}
}
