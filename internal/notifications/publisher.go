package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/mutual-backend/internal/models"
)

// ChannelPrefix prefixes the per-user Redis channel: notifications:<userID>.
const ChannelPrefix = "notifications:"

// ChannelPattern matches every per-user notification channel.
const ChannelPattern = ChannelPrefix + "*"

// Channel returns the Redis channel for a user.
func Channel(userID string) string {
	return ChannelPrefix + userID
}

// UserFromChannel extracts the user id from a channel name.
func UserFromChannel(channel string) (string, bool) {
	userID, ok := strings.CutPrefix(channel, ChannelPrefix)
	return userID, ok && userID != ""
}

// Publisher pushes stored notifications to live listeners.
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, Channel(n.UserID), data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// NopPublisher drops every notification; used when live delivery is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.Notification) error { return nil }
