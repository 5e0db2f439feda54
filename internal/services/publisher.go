package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"inspecta-backend/internal/models"
)

// Publisher pushes WebSocket messages through Redis pub/sub.
type Publisher interface {
	PublishUser(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
	PublishDomain(ctx context.Context, domainID uuid.UUID, msg models.WSMessage)
}

type RedisPublisher struct {
	redis  *redis.Client
	logger *zap.Logger
}

func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{redis: client, logger: logger}
}

func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

func DomainChannel(domainID uuid.UUID) string {
	return fmt.Sprintf("domain_updates:%s", domainID.String())
}

func (p *RedisPublisher) PublishUser(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	p.publish(ctx, UserChannel(userID), msg)
}

func (p *RedisPublisher) PublishDomain(ctx context.Context, domainID uuid.UUID, msg models.WSMessage) {
	p.publish(ctx, DomainChannel(domainID), msg)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to encode ws message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if err := p.redis.Publish(ctx, channel, string(data)).Err(); err != nil {
		p.logger.Warn("failed to publish ws message", zap.String("channel", channel), zap.Error(err))
	}
}
