package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxTurns   = 40
	defaultSessionTTL = 24 * time.Hour
	sessionKeyPrefix  = "studymate:ai:session:"
)

// RedisSessions stores each session as a capped Redis list that expires
// ttl after its last write.
type RedisSessions struct {
	rdb      redis.Cmdable
	ttl      time.Duration
	maxTurns int
}

func NewRedisSessions(rdb redis.Cmdable, ttl time.Duration, maxTurns int) *RedisSessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &RedisSessions{rdb: rdb, ttl: ttl, maxTurns: maxTurns}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func (s *RedisSessions) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, raw)
	}

	key := sessionKey(sessionID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisSessions) Recent(ctx context.Context, sessionID string, n int) ([]Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := s.rdb.LRange(ctx, sessionKey(sessionID), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	turns := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}
