// Package notifications persists inbox entries and publishes them for live delivery.
package notifications

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/mutual-backend/internal/models"
)

// ErrNotFound is returned when a notification does not exist for the user.
var ErrNotFound = errors.New("notification not found")

// Store persists notifications.
type Store interface {
	// Insert stores n and fills n.ID. When n.DedupeKey is set and a record with
	// the same (UserID, DedupeKey) exists, nothing is written and false is returned.
	Insert(ctx context.Context, n *models.Notification) (bool, error)
	// ListByUser returns the user's notifications newest first.
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID string, id primitive.ObjectID) error
	// Delete and DeleteAllForUser hide records and strip their content. The
	// dedupe key stays claimed so a retried emission cannot bring them back.
	Delete(ctx context.Context, userID string, id primitive.ObjectID) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	// DeleteOlderThan removes records, hidden ones included, for good.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
