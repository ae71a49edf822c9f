package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/mutual-backend/pkg/clientip"
)

const (
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
)

// RateLimitConfig configures the shared per-IP limiter.
type RateLimitConfig struct {
	// MaxRequests allowed per Window before the IP is blocked for Block.
	MaxRequests int
	Window      time.Duration
	Block       time.Duration
	TrustProxy  bool
}

// RateLimiter counts requests per IP in Redis so the limit holds across
// instances. Excess traffic blocks the IP for a while.
type RateLimiter struct {
	client *redis.Client
	cfg    RateLimitConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, cfg RateLimitConfig, log *zap.Logger) *RateLimiter {
	return &RateLimiter{client: client, cfg: cfg, log: log, now: time.Now}
}

func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromRequest(r, l.cfg.TrustProxy)
		ctx := r.Context()

		blocked, err := l.IsBlocked(ctx, ip)
		if err == nil && blocked {
			writeError(w, http.StatusTooManyRequests, "Your IP has been temporarily blocked due to excessive requests. Please try again later.")
			return
		}

		count, err := l.hit(ctx, ip)
		if err != nil {
			// If Redis fails, allow the request (fail open)
			l.log.Warn("rate limiter unavailable", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(l.cfg.MaxRequests) {
			if err := l.client.Set(ctx, BlockedIPKeyPrefix+ip, "1", l.cfg.Block).Err(); err != nil {
				l.log.Warn("block ip failed", zap.Error(err))
			}
			l.log.Info("ip blocked", zap.String("ip", ip), zap.Duration("for", l.cfg.Block))
			w.Header().Set("Retry-After", strconv.Itoa(int(l.cfg.Block.Seconds())))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Your IP has been temporarily blocked. Please try again later.")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.MaxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(l.cfg.MaxRequests)-count, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(l.now().Add(l.cfg.Window).Unix(), 10))

		next.ServeHTTP(w, r)
	})
}

// hit counts one request and returns the count in the current window.
// The counter and its TTL are written in one MULTI so a key never outlives
// its window; NX keeps later hits from extending it.
func (l *RateLimiter) hit(ctx context.Context, ip string) (int64, error) {
	key := RateLimitKeyPrefix + ip
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.cfg.Window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Unblock removes an IP from the blocked list.
func (l *RateLimiter) Unblock(ctx context.Context, ip string) error {
	return l.client.Del(ctx, BlockedIPKeyPrefix+ip, RateLimitKeyPrefix+ip).Err()
}

// IsBlocked checks if an IP is currently blocked.
func (l *RateLimiter) IsBlocked(ctx context.Context, ip string) (bool, error) {
	count, err := l.client.Exists(ctx, BlockedIPKeyPrefix+ip).Result()
	return count > 0, err
}
