package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionKeyPrefix is the Redis key prefix for sessions (session:<jti> -> user id)
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
)

// ErrInvalidSession is returned for a malformed, expired or revoked token.
var ErrInvalidSession = errors.New("invalid session")

// SessionManager issues signed bearer tokens backed by a revocable Redis
// session. A user holds one session at a time; a new one replaces the old.
type SessionManager struct {
	redis  *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(client *redis.Client, secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		redis:  client,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Create starts a new session for userID and returns its bearer token.
func (m *SessionManager) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	if err := m.InvalidateUser(ctx, userID); err != nil {
		return "", err
	}

	now := m.now()
	sessionID := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	pipe := m.redis.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+sessionID, userID.String(), m.ttl)
	pipe.Set(ctx, UserSessionKeyPrefix+userID.String(), sessionID, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return signed, nil
}

// Validate checks the token signature, expiry and that its session is live.
func (m *SessionManager) Validate(ctx context.Context, tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrInvalidSession
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ID == "" {
		return uuid.Nil, ErrInvalidSession
	}

	stored, err := m.redis.Get(ctx, SessionKeyPrefix+claims.ID).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrInvalidSession
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	if stored != userID.String() {
		return uuid.Nil, ErrInvalidSession
	}

	return userID, nil
}

// InvalidateUser revokes the user's current session, if any.
func (m *SessionManager) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	userSessionKey := UserSessionKeyPrefix + userID.String()

	sessionID, err := m.redis.Get(ctx, userSessionKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("load session: %w", err)
	}
	keys := []string{userSessionKey}
	if sessionID != "" {
		keys = append(keys, SessionKeyPrefix+sessionID)
	}
	if err := m.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
