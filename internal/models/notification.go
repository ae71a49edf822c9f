package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationKind string

const (
	NotificationMatch NotificationKind = "match"
	NotificationInfo  NotificationKind = "info"
)

// Notification is an inbox entry for one user.
type Notification struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"user_id"`
	Kind         NotificationKind   `bson:"kind" json:"type"`
	Title        string             `bson:"title" json:"title"`
	Message      string             `bson:"message" json:"message"`
	ContactLabel string             `bson:"contact_label" json:"contact_label"`
	IsRead       bool               `bson:"is_read" json:"is_read"`
	// DedupeKey makes emission idempotent per user; never serialized outward.
	DedupeKey string    `bson:"dedupe_key,omitempty" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	// DeletedAt marks a record the user removed. The stripped record keeps
	// its dedupe key until retention purges it.
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"-"`
}
