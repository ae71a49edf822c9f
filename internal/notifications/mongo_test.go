package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/AnshRaj112/mutual-backend/internal/models"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newMockT(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestMongoStore_InsertPlain(t *testing.T) {
	mt := newMockT(t)

	mt.Run("insert", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		n := &models.Notification{UserID: "u1", Kind: models.NotificationInfo, Title: "Feedback sent", CreatedAt: testNow}
		inserted, err := store.Insert(context.Background(), n)
		require.NoError(mt, err)
		assert.True(mt, inserted)
		assert.False(mt, n.ID.IsZero())
	})
}

func TestMongoStore_InsertDedupe(t *testing.T) {
	mt := newMockT(t)

	mt.Run("upserted", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: id}}}},
		))

		n := &models.Notification{ID: id, UserID: "u1", Kind: models.NotificationMatch, DedupeKey: "match:k", CreatedAt: testNow}
		inserted, err := store.Insert(context.Background(), n)
		require.NoError(mt, err)
		assert.True(mt, inserted)
	})

	mt.Run("already present", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))

		n := &models.Notification{UserID: "u1", Kind: models.NotificationMatch, DedupeKey: "match:k", CreatedAt: testNow}
		inserted, err := store.Insert(context.Background(), n)
		require.NoError(mt, err)
		assert.False(mt, inserted)
	})

	mt.Run("duplicate key race", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		n := &models.Notification{UserID: "u1", Kind: models.NotificationMatch, DedupeKey: "match:k", CreatedAt: testNow}
		inserted, err := store.Insert(context.Background(), n)
		require.NoError(mt, err)
		assert.False(mt, inserted)
	})

	mt.Run("server error", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad value",
			Name:    "BadValue",
		}))

		n := &models.Notification{UserID: "u1", DedupeKey: "match:k", CreatedAt: testNow}
		_, err := store.Insert(context.Background(), n)
		assert.Error(mt, err)
	})
}

func TestMongoStore_ListByUser(t *testing.T) {
	mt := newMockT(t)

	mt.Run("newest first", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		newer, older := primitive.NewObjectID(), primitive.NewObjectID()
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: newer},
				{Key: "user_id", Value: "u1"},
				{Key: "kind", Value: "match"},
				{Key: "title", Value: "New match"},
				{Key: "is_read", Value: false},
				{Key: "created_at", Value: testNow},
			},
			bson.D{
				{Key: "_id", Value: older},
				{Key: "user_id", Value: "u1"},
				{Key: "kind", Value: "info"},
				{Key: "title", Value: "Feedback sent"},
				{Key: "is_read", Value: true},
				{Key: "created_at", Value: testNow.Add(-time.Hour)},
			},
		))

		got, err := store.ListByUser(context.Background(), "u1", 50)
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, newer, got[0].ID)
		assert.Equal(mt, models.NotificationMatch, got[0].Kind)
		assert.True(mt, got[1].IsRead)
	})

	mt.Run("empty inbox", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		got, err := store.ListByUser(context.Background(), "u1", 0)
		require.NoError(mt, err)
		assert.NotNil(mt, got)
		assert.Empty(mt, got)
	})
}

func TestMongoStore_MarkRead(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(mt, store.MarkRead(context.Background(), "u1", primitive.NewObjectID()))
	})

	mt.Run("not found", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := store.MarkRead(context.Background(), "u1", primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoStore_Deletes(t *testing.T) {
	mt := newMockT(t)

	mt.Run("delete one", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		require.NoError(mt, store.Delete(context.Background(), "u1", primitive.NewObjectID()))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
		_, err := started.Command.LookupErr("updates", "0", "u", "$currentDate", "deleted_at")
		assert.NoError(mt, err, "delete leaves a tombstone")
		_, err = started.Command.LookupErr("updates", "0", "q", "deleted_at", "$exists")
		assert.NoError(mt, err)
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		err := store.Delete(context.Background(), "u1", primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("clear all", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 3},
			bson.E{Key: "nModified", Value: 3},
		))
		n, err := store.DeleteAllForUser(context.Background(), "u1")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
	})

	mt.Run("purge", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 5}))
		n, err := store.DeleteOlderThan(context.Background(), testNow)
		require.NoError(mt, err)
		assert.Equal(mt, int64(5), n)
	})
}

func TestMongoStore_EnsureIndexes(t *testing.T) {
	mt := newMockT(t)

	mt.Run("create", func(mt *mtest.T) {
		store := NewMongoStoreForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, store.EnsureIndexes(context.Background()))
	})
}
