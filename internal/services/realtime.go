package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/mutual-backend/internal/models"
	"github.com/AnshRaj112/mutual-backend/internal/notifications"
)

const subscriberBuffer = 16

// NotificationHub fans out notifications to the live connections of this
// instance. Across instances it is fed by the Redis notification channels.
type NotificationHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan models.Notification]struct{}
	log  *zap.Logger
}

func NewNotificationHub(log *zap.Logger) *NotificationHub {
	return &NotificationHub{
		subs: make(map[string]map[chan models.Notification]struct{}),
		log:  log,
	}
}

// Subscribe registers a listener for userID. Call the returned func to leave.
func (h *NotificationHub) Subscribe(userID string) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan models.Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[userID]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, userID)
				}
			}
		})
	}
}

// FanOut delivers n to every local listener of its user. Slow listeners drop
// messages instead of blocking the hub; the inbox still has them.
func (h *NotificationHub) FanOut(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[n.UserID] {
		select {
		case ch <- n:
		default:
			h.log.Debug("dropping live notification for slow listener", zap.String("user_id", n.UserID))
		}
	}
}

// Listeners returns the number of live listeners of userID.
func (h *NotificationHub) Listeners(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Publish implements notifications.Publisher for single-instance setups
// that deliver straight to local listeners.
func (h *NotificationHub) Publish(_ context.Context, n *models.Notification) error {
	h.FanOut(*n)
	return nil
}

// RunRedisSubscriber feeds the hub from the Redis notification channels
// until ctx ends, reconnecting with backoff.
func (h *NotificationHub) RunRedisSubscriber(ctx context.Context, client *redis.Client) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := h.consume(ctx, client, func() { backoff = time.Second })
		if ctx.Err() != nil {
			return
		}
		h.log.Warn("notification subscriber disconnected", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (h *NotificationHub) consume(ctx context.Context, client *redis.Client, onConnected func()) error {
	pubsub := client.PSubscribe(ctx, notifications.ChannelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	onConnected()
	h.log.Info("notification subscriber started", zap.String("pattern", notifications.ChannelPattern))

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}

		userID, ok := notifications.UserFromChannel(msg.Channel)
		if !ok {
			continue
		}
		var n models.Notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			h.log.Warn("bad notification payload", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		n.UserID = userID
		h.FanOut(n)
	}
}
