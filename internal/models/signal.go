package models

import (
	"time"

	"github.com/google/uuid"
)

// Signal is one anonymous positive vote from a sender about a relationship.
// At most one exists per (RelationshipKey, SenderToken).
type Signal struct {
	ID              uuid.UUID
	RelationshipKey string
	SenderToken     string
	// SenderUserID is only used to address match notifications.
	SenderUserID uuid.UUID
	// ContactLabel is the sender's own name for the other party. It is only
	// ever shown back to the same sender.
	ContactLabel string
	CreatedAt    time.Time
}

// Relationship carries the one-time match marker of a relationship key.
type Relationship struct {
	Key        string
	MatchedAt  *time.Time
	NotifiedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Matched reports whether the match marker has been claimed.
func (r *Relationship) Matched() bool {
	return r != nil && r.MatchedAt != nil
}
