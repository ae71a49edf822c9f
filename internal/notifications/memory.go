package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/mutual-backend/internal/models"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[primitive.ObjectID]*models.Notification
	dedupe  map[string]primitive.ObjectID
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[primitive.ObjectID]*models.Notification),
		dedupe:  make(map[string]primitive.ObjectID),
		now:     time.Now,
	}
}

func dedupeIndex(userID, key string) string {
	return userID + "\x00" + key
}

func (s *MemoryStore) Insert(ctx context.Context, n *models.Notification) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.DedupeKey != "" {
		if _, exists := s.dedupe[dedupeIndex(n.UserID, n.DedupeKey)]; exists {
			return false, nil
		}
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	cp := *n
	s.records[n.ID] = &cp
	if n.DedupeKey != "" {
		s.dedupe[dedupeIndex(n.UserID, n.DedupeKey)] = n.ID
	}
	return true, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Notification{}
	for _, n := range s.records {
		if n.UserID == userID && n.DeletedAt == nil {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, userID string, id primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.records[id]
	if !ok || n.UserID != userID || n.DeletedAt != nil {
		return ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string, id primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.records[id]
	if !ok || n.UserID != userID || n.DeletedAt != nil {
		return ErrNotFound
	}
	s.hide(n)
	return nil
}

func (s *MemoryStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.deleteWhere(ctx,
		func(n *models.Notification) bool { return n.UserID == userID && n.DeletedAt == nil },
		s.hide)
}

func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteWhere(ctx,
		func(n *models.Notification) bool { return n.CreatedAt.Before(cutoff) },
		s.remove)
}

func (s *MemoryStore) deleteWhere(ctx context.Context, match func(*models.Notification) bool, drop func(*models.Notification)) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, rec := range s.records {
		if match(rec) {
			drop(rec)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) hide(n *models.Notification) {
	at := s.now().UTC()
	*n = models.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      n.Kind,
		DedupeKey: n.DedupeKey,
		CreatedAt: n.CreatedAt,
		DeletedAt: &at,
	}
}

func (s *MemoryStore) remove(n *models.Notification) {
	delete(s.records, n.ID)
	if n.DedupeKey != "" {
		delete(s.dedupe, dedupeIndex(n.UserID, n.DedupeKey))
	}
}
