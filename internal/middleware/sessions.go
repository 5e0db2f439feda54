package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSessions is the server-side session registry. A session code is
// only honoured while its id is present here, which is what makes logout
// and deactivation effective before the code itself expires.
type RedisSessions struct {
	redis *redis.Client
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{redis: client}
}

func sessionKey(sessionID string) string { return "session:" + sessionID }

func userSessionsKey(userID uuid.UUID) string { return "user_sessions:" + userID.String() }

func (s *RedisSessions) Register(ctx context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error {
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, sessionKey(sessionID), userID.String(), ttl)
	pipe.SAdd(ctx, userSessionsKey(userID), sessionID)
	pipe.Expire(ctx, userSessionsKey(userID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSessions) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.redis.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSessions) Revoke(ctx context.Context, sessionID string, userID uuid.UUID) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, userSessionsKey(userID), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeAll drops every session of the user.
func (s *RedisSessions) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	ids, err := s.redis.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userSessionsKey(userID))
	return s.redis.Del(ctx, keys...).Err()
}
