package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/mutual-backend/internal/models"
	"github.com/AnshRaj112/mutual-backend/internal/notifications"
)

const (
	matchTitle          = "new!"
	matchMessage        = "mutual positive feedback! you have a new match."
	defaultContactLabel = "a contact"
	sentTitle           = "Feedback sent"
	sentMessage         = "your anonymous feedback was recorded."
	inboxLimit          = 200
)

// MatchParty is one side of a match.
type MatchParty struct {
	UserID uuid.UUID
	// ContactLabel is this party's own label for the other side.
	ContactLabel string
}

// Match is a relationship that just became mutual.
type Match struct {
	Key       string
	MatchedAt time.Time
	Parties   [2]MatchParty
}

// DedupeKey identifies the match notifications of one match marker.
func (m Match) DedupeKey() string {
	return fmt.Sprintf("match:%s:%d", m.Key, m.MatchedAt.UnixMicro())
}

// NotificationService emits notifications and serves each user's inbox.
type NotificationService struct {
	store     notifications.Store
	publisher notifications.Publisher
	log       *zap.Logger
	now       func() time.Time
	timeout   time.Duration
}

func NewNotificationService(store notifications.Store, publisher notifications.Publisher, log *zap.Logger, timeout time.Duration) *NotificationService {
	if publisher == nil {
		publisher = notifications.NopPublisher{}
	}
	return &NotificationService{
		store:     store,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		timeout:   timeout,
	}
}

// EmitMatch stores one match notification per party. Re-emitting the same
// match writes nothing new.
func (s *NotificationService) EmitMatch(ctx context.Context, m Match) error {
	var errs []error
	for _, p := range m.Parties {
		label := p.ContactLabel
		if label == "" {
			label = defaultContactLabel
		}
		n := &models.Notification{
			UserID:       p.UserID.String(),
			Kind:         models.NotificationMatch,
			Title:        matchTitle,
			Message:      matchMessage,
			ContactLabel: label,
			DedupeKey:    m.DedupeKey(),
		}
		if err := s.emit(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EmitInfo stores an informational notification for one user.
func (s *NotificationService) EmitInfo(ctx context.Context, userID uuid.UUID, dedupeKey, title, message string) error {
	return s.emit(ctx, &models.Notification{
		UserID:    userID.String(),
		Kind:      models.NotificationInfo,
		Title:     title,
		Message:   message,
		DedupeKey: dedupeKey,
	})
}

func (s *NotificationService) emit(ctx context.Context, n *models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n.CreatedAt = s.now().UTC()
	inserted, err := s.store.Insert(ctx, n)
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	if !inserted {
		return nil
	}

	if err := s.publisher.Publish(ctx, n); err != nil {
		// The record is stored; live delivery is best-effort.
		s.log.Warn("publish notification failed",
			zap.String("user_id", n.UserID),
			zap.String("kind", string(n.Kind)),
			zap.Error(err))
	}
	return nil
}

// List returns the user's notifications newest first.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.store.ListByUser(ctx, userID.String(), inboxLimit)
	if err != nil {
		return nil, s.wrap(err)
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID uuid.UUID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: notification id", ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.wrap(s.store.MarkRead(ctx, userID.String(), oid))
}

func (s *NotificationService) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: notification id", ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.wrap(s.store.Delete(ctx, userID.String(), oid))
}

func (s *NotificationService) ClearAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.store.DeleteAllForUser(ctx, userID.String())
	if err != nil {
		return 0, s.wrap(err)
	}
	return n, nil
}

// PurgeOlderThan deletes notifications created before cutoff.
func (s *NotificationService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, s.wrap(err)
	}
	return n, nil
}

func (s *NotificationService) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, notifications.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return ClassifyStorageError(err)
	}
}
