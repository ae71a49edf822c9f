package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/mutual-backend/internal/models"
)

func TestMemoryStore_DedupeAndOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &models.Notification{UserID: "u1", Kind: models.NotificationInfo, Title: "older", CreatedAt: testNow}
	ok, err := s.Insert(ctx, first)
	require.NoError(t, err)
	require.True(t, ok)

	match := &models.Notification{UserID: "u1", Kind: models.NotificationMatch, Title: "newer", DedupeKey: "match:k", CreatedAt: testNow.Add(time.Minute)}
	ok, err = s.Insert(ctx, match)
	require.NoError(t, err)
	require.True(t, ok)

	again := &models.Notification{UserID: "u1", Kind: models.NotificationMatch, DedupeKey: "match:k", CreatedAt: testNow.Add(2 * time.Minute)}
	ok, err = s.Insert(ctx, again)
	require.NoError(t, err)
	assert.False(t, ok)

	other := &models.Notification{UserID: "u2", Kind: models.NotificationMatch, DedupeKey: "match:k", CreatedAt: testNow}
	ok, err = s.Insert(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok, "dedupe is per user")

	got, err := s.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].Title)
	assert.Equal(t, "older", got[1].Title)

	got, err = s.ListByUser(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStore_OwnershipEnforced(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n := &models.Notification{UserID: "u1", CreatedAt: testNow}
	_, err := s.Insert(ctx, n)
	require.NoError(t, err)

	assert.ErrorIs(t, s.MarkRead(ctx, "u2", n.ID), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "u2", n.ID), ErrNotFound)
	assert.ErrorIs(t, s.MarkRead(ctx, "u1", primitive.NewObjectID()), ErrNotFound)

	require.NoError(t, s.MarkRead(ctx, "u1", n.ID))
	got, err := s.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.True(t, got[0].IsRead)

	require.NoError(t, s.Delete(ctx, "u1", n.ID))
	got, err = s.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_DeleteKeepsDedupeKeyUntilPurge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n := &models.Notification{UserID: "u1", Title: "It's a match", DedupeKey: "match:k", CreatedAt: testNow}
	_, err := s.Insert(ctx, n)
	require.NoError(t, err)

	cleared, err := s.DeleteAllForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	cleared, err = s.DeleteAllForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, cleared, "already deleted")
	assert.ErrorIs(t, s.Delete(ctx, "u1", n.ID), ErrNotFound)
	assert.ErrorIs(t, s.MarkRead(ctx, "u1", n.ID), ErrNotFound)

	ok, err := s.Insert(ctx, &models.Notification{UserID: "u1", DedupeKey: "match:k", CreatedAt: testNow})
	require.NoError(t, err)
	assert.False(t, ok, "a deleted record still claims its dedupe key")

	got, err := s.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	s.mu.Lock()
	tomb := s.records[n.ID]
	s.mu.Unlock()
	require.NotNil(t, tomb.DeletedAt)
	assert.Empty(t, tomb.Title, "content is stripped")

	purged, err := s.DeleteOlderThan(ctx, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	ok, err = s.Insert(ctx, &models.Notification{UserID: "u1", DedupeKey: "match:k", CreatedAt: testNow})
	require.NoError(t, err)
	assert.True(t, ok, "retention purge releases the key")
}

func TestMemoryStore_DeleteOlderThan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, &models.Notification{UserID: "u1", CreatedAt: testNow.Add(time.Duration(i) * 24 * time.Hour)})
		require.NoError(t, err)
	}

	n, err := s.DeleteOlderThan(ctx, testNow.Add(36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := s.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
