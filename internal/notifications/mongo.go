package notifications

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/mutual-backend/internal/models"
)

// CollectionName is the MongoDB collection holding notifications.
const CollectionName = "notifications"

// visible matches records the user has not deleted.
var visible = bson.M{"$exists": false}

// hideUpdate strips a record down to its dedupe tombstone.
var hideUpdate = bson.M{
	"$currentDate": bson.M{"deleted_at": true},
	"$unset":       bson.M{"title": "", "message": "", "contact_label": ""},
}

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName)}
}

// NewMongoStoreForCollection binds the store to an explicit collection.
func NewMongoStoreForCollection(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// EnsureIndexes creates the inbox and dedupe indexes. Safe to call at every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("user_created_at"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "dedupe_key", Value: 1},
			},
			Options: options.Index().
				SetName("user_dedupe_key").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"dedupe_key": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("created_at"),
		},
	}

	if _, err := s.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, n *models.Notification) (bool, error) {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}

	if n.DedupeKey == "" {
		if _, err := s.coll.InsertOne(ctx, n); err != nil {
			return false, fmt.Errorf("insert notification: %w", err)
		}
		return true, nil
	}

	filter := bson.M{"user_id": n.UserID, "dedupe_key": n.DedupeKey}
	update := bson.M{"$setOnInsert": n}
	res, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("upsert notification: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID, "deleted_at": visible}, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return out, nil
}

func (s *MongoStore) MarkRead(ctx context.Context, userID string, id primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID, "deleted_at": visible},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, userID string, id primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID, "deleted_at": visible}, hideUpdate)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.coll.UpdateMany(ctx, bson.M{"user_id": userID, "deleted_at": visible}, hideUpdate)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return res.MatchedCount, nil
}

func (s *MongoStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return res.DeletedCount, nil
}
