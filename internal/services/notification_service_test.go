package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"github.com/AnshRaj112/mutual-backend/internal/models"
	"github.com/AnshRaj112/mutual-backend/internal/notifications"
)

type recordingPublisher struct {
	published []models.Notification
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, n *models.Notification) error {
	p.published = append(p.published, *n)
	return p.err
}

func newNotifier(t *testing.T, pub notifications.Publisher) (*NotificationService, *notifications.MemoryStore) {
	t.Helper()
	store := notifications.NewMemoryStore()
	s := NewNotificationService(store, pub, zaptest.NewLogger(t), time.Second)
	s.now = func() time.Time { return baseTime }
	return s, store
}

func TestNotificationService_EmitMatchIsIdempotent(t *testing.T) {
	pub := &recordingPublisher{}
	s, _ := newNotifier(t, pub)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	m := Match{Key: "k", MatchedAt: baseTime, Parties: [2]MatchParty{{UserID: a, ContactLabel: "Bob"}, {UserID: b}}}

	require.NoError(t, s.EmitMatch(ctx, m))
	require.NoError(t, s.EmitMatch(ctx, m))
	assert.Len(t, pub.published, 2, "second emission publishes nothing")

	listA, err := s.List(ctx, a)
	require.NoError(t, err)
	require.Len(t, listA, 1)
	assert.Equal(t, "Bob", listA[0].ContactLabel)
	assert.Equal(t, models.NotificationMatch, listA[0].Kind)

	// a later match marker for the same key is a new match
	m.MatchedAt = baseTime.Add(time.Microsecond)
	require.NoError(t, s.EmitMatch(ctx, m))
	listB, err := s.List(ctx, b)
	require.NoError(t, err)
	assert.Len(t, listB, 2)
}

func TestNotificationService_PublishFailureKeepsRecord(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	s, _ := newNotifier(t, pub)
	ctx := context.Background()
	u := uuid.New()

	require.NoError(t, s.EmitInfo(ctx, u, "sent:1", sentTitle, sentMessage))
	list, err := s.List(ctx, u)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotificationService_InboxOperations(t *testing.T) {
	s, _ := newNotifier(t, nil)
	ctx := context.Background()
	u, other := uuid.New(), uuid.New()

	require.NoError(t, s.EmitInfo(ctx, u, "one", "t", "m"))
	require.NoError(t, s.EmitInfo(ctx, u, "two", "t", "m"))
	list, err := s.List(ctx, u)
	require.NoError(t, err)
	require.Len(t, list, 2)
	id := list[0].ID.Hex()

	assert.ErrorIs(t, s.MarkRead(ctx, other, id), ErrNotFound, "foreign notification")
	assert.ErrorIs(t, s.MarkRead(ctx, u, "zzz"), ErrInvalidInput)
	require.NoError(t, s.MarkRead(ctx, u, id))
	list, _ = s.List(ctx, u)
	for _, n := range list {
		assert.Equal(t, n.ID.Hex() == id, n.IsRead)
	}

	assert.ErrorIs(t, s.Delete(ctx, u, primitive.NewObjectID().Hex()), ErrNotFound)
	require.NoError(t, s.Delete(ctx, u, id))
	list, _ = s.List(ctx, u)
	assert.Len(t, list, 1)

	n, err := s.ClearAll(ctx, u)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	list, err = s.List(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNotificationService_PurgeOlderThan(t *testing.T) {
	s, _ := newNotifier(t, nil)
	ctx := context.Background()
	u := uuid.New()

	require.NoError(t, s.EmitInfo(ctx, u, "old", "t", "m"))
	s.now = func() time.Time { return baseTime.Add(48 * time.Hour) }
	require.NoError(t, s.EmitInfo(ctx, u, "new", "t", "m"))

	n, err := s.PurgeOlderThan(ctx, baseTime.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestNotificationService_TransientStoreError(t *testing.T) {
	s, _ := newNotifier(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.List(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTransient)
}

func TestMatchDedupeKey(t *testing.T) {
	m := Match{Key: "abc", MatchedAt: time.UnixMicro(1700000000000001)}
	assert.Equal(t, "match:abc:1700000000000001", m.DedupeKey())
}
