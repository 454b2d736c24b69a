package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"district-exam-service/internal/app"
	"district-exam-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// LeaderboardCache keeps ranked leaderboards in Redis so multiple
// service instances share one hot copy. Rows are stored as a JSON blob:
// SET exam:{examID}:leaderboard with a jittered TTL. Cache misses fall
// through to the source under singleflight. Exam and question state is
// never cached so time-window decisions always read current state.
type LeaderboardCache struct {
	client *redis.Client
	source app.LeaderboardSource
	ttl    time.Duration
	sf     singleflight.Group
}

func NewLeaderboardCache(client *redis.Client, source app.LeaderboardSource, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		source: source,
		ttl:    ttl,
	}
}

func (c *LeaderboardCache) Leaderboard(ctx context.Context, examID int64) ([]domain.LeaderboardRow, error) {
	key := c.key(examID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		if rows, ok := decodeRows(raw); ok {
			return rows, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			if rows, ok := decodeRows(raw); ok {
				return rows, nil
			}
		}

		rows, err := c.source.Leaderboard(ctx, examID)
		if err != nil {
			return nil, err
		}

		// A non-positive TTL disables caching entirely; a zero-expiry SET
		// would pin a stale board forever.
		if c.ttl > 0 {
			if raw, err := json.Marshal(rows); err == nil {
				// best effort; a failed write just means the next read recomputes
				_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardRow), nil
}

func (c *LeaderboardCache) key(examID int64) string {
	return "exam:" + strconv.FormatInt(examID, 10) + ":leaderboard"
}

func decodeRows(raw []byte) ([]domain.LeaderboardRow, bool) {
	var rows []domain.LeaderboardRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

// ttlWithJitter adds up to 10% to spread expirations. The top-level
// rand source is safe for the concurrent misses singleflight lets
// through on distinct exams.
func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
