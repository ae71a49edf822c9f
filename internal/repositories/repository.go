// Package repositories holds the signal, credit and match ledgers.
// Every conditional write the match pipeline depends on is a single
// storage-level statement, so correctness does not rely on read-then-write.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AnshRaj112/mutual-backend/internal/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository is the credit ledger plus user registration.
type UserRepository interface {
	// Register creates the user for phoneToken or returns the existing one.
	Register(ctx context.Context, phoneToken, phoneEncrypted string, now time.Time) (user *models.User, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// SpendCredit decrements the credit only if at least one unit is left.
	SpendCredit(ctx context.Context, id uuid.UUID) (bool, error)
	// ResetAllCredits grants every user one credit and restarts their period.
	ResetAllCredits(ctx context.Context, now time.Time) (int64, error)
	// RolloverCredits grants one credit to users whose period started at or before now-period.
	RolloverCredits(ctx context.Context, now time.Time, period time.Duration) (int64, error)
}

// SignalRepository is the signal ledger.
type SignalRepository interface {
	// Insert records the signal unless one already exists for (key, sender token).
	Insert(ctx context.Context, signal *models.Signal) (bool, error)
	ForKey(ctx context.Context, key string) ([]models.Signal, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RelationshipRepository holds the one-time match marker per relationship key.
type RelationshipRepository interface {
	// Lock creates the relationship if needed and holds its row lock until the
	// surrounding transaction ends.
	Lock(ctx context.Context, key string, now time.Time) (*models.Relationship, error)
	// ClaimMatch sets the match marker if unset; only one caller ever wins.
	ClaimMatch(ctx context.Context, key string, now time.Time) (bool, error)
	MarkNotified(ctx context.Context, key string, now time.Time) error
	// Unnotified lists matched relationships whose notifications are not
	// confirmed, matched before the given time.
	Unnotified(ctx context.Context, matchedBefore time.Time, limit int) ([]models.Relationship, error)
	// DeleteOrphaned removes relationships untouched since cutoff that have no signals left.
	DeleteOrphaned(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Users         UserRepository
	Signals       SignalRepository
	Relationships RelationshipRepository
}

// Ledger vends repositories and runs units of work atomically.
type Ledger interface {
	// Repos returns repositories where every call commits on its own.
	Repos() Repos
	// InTx runs fn in one transaction: commit when fn returns nil, roll back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}
