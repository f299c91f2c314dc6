package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pathways-backend/internal/models"
)

const (
	ToastInfo    = "info"
	ToastSuccess = "success"
	ToastError   = "error"
)

// Notifier is the event sink for user-facing messages. Delivery is best
// effort; a failed publish is logged and never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message, kind string)
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// UserChannel is the pub/sub channel the websocket hub subscribes to for a user.
func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

type RedisNotifier struct {
	redis *redis.Client
	log   zerolog.Logger
}

func NewRedisNotifier(redisClient *redis.Client, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{redis: redisClient, log: log}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, message, kind string) {
	n.Publish(ctx, userID, models.WSMessage{
		Type:    "toast",
		Payload: models.ToastEvent{Message: message, Kind: kind},
	})
}

// Publish sends a WebSocket update via Redis pub/sub
func (n *RedisNotifier) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		n.log.Error().Err(err).Str("type", msg.Type).Msg("failed to encode notification")
		return
	}
	if err := n.redis.Publish(context.WithoutCancel(ctx), UserChannel(userID), string(data)).Err(); err != nil {
		n.log.Warn().Err(err).Str("user_id", userID.String()).Str("type", msg.Type).Msg("failed to publish notification")
	}
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, uuid.UUID, string, string)   {}
func (NopNotifier) Publish(context.Context, uuid.UUID, models.WSMessage) {}
