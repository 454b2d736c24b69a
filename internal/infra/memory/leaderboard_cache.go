package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"district-exam-service/internal/app"
	"district-exam-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// LeaderboardCache memoizes ranked leaderboards with a short TTL to keep
// hot exams from hammering the store. Exam and question state is never
// cached anywhere; only this read-only projection tolerates staleness.
type LeaderboardCache struct {
	source app.LeaderboardSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[int64]cachedBoard
}

type cachedBoard struct {
	rows      []domain.LeaderboardRow
	expiresAt time.Time
}

func NewLeaderboardCache(source app.LeaderboardSource, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[int64]cachedBoard),
	}
}

func (c *LeaderboardCache) Leaderboard(ctx context.Context, examID int64) ([]domain.LeaderboardRow, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[examID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.rows, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(boardKey(examID), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[examID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.rows, nil
		}
		c.mu.RUnlock()

		rows, err := c.source.Leaderboard(ctx, examID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[examID] = cachedBoard{rows: rows, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardRow), nil
}

func boardKey(examID int64) string {
	return strconv.FormatInt(examID, 10)
}

// ttlWithJitter adds up to 10% to spread expirations. The top-level
// rand source is safe for the concurrent misses singleflight lets
// through on distinct exams.
func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
