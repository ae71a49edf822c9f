package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnshRaj112/mutual-backend/internal/models"
)

// MemoryLedger is an in-process Ledger for development and tests.
// Transactions are serialized on one ledger-wide lock and undone from an
// undo log on error. Production configs refuse this backend.
type MemoryLedger struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	usersByToken  map[string]uuid.UUID
	signals       map[signalKey]*models.Signal
	relationships map[string]*models.Relationship
}

type signalKey struct {
	relationshipKey string
	senderToken     string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		users:         make(map[uuid.UUID]*models.User),
		usersByToken:  make(map[string]uuid.UUID),
		signals:       make(map[signalKey]*models.Signal),
		relationships: make(map[string]*models.Relationship),
	}
}

func (l *MemoryLedger) Repos() Repos {
	return l.repos(&memTx{ledger: l, autocommit: true})
}

func (l *MemoryLedger) InTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memTx{ledger: l}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	return fn(ctx, l.repos(tx))
}

func (l *MemoryLedger) repos(tx *memTx) Repos {
	return Repos{
		Users:         &memUsers{tx: tx},
		Signals:       &memSignals{tx: tx},
		Relationships: &memRelationships{tx: tx},
	}
}

// memTx is one unit of work. In autocommit mode each call takes the ledger
// lock itself and nothing is recorded for undo.
type memTx struct {
	ledger     *MemoryLedger
	autocommit bool
	undo       []func()
}

func (t *memTx) begin(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.autocommit {
		t.ledger.mu.Lock()
		return t.ledger.mu.Unlock, nil
	}
	return func() {}, nil
}

func (t *memTx) record(fn func()) {
	if !t.autocommit {
		t.undo = append(t.undo, fn)
	}
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

type memUsers struct {
	tx *memTx
}

func (r *memUsers) Register(ctx context.Context, phoneToken, phoneEncrypted string, now time.Time) (*models.User, bool, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer done()

	l := r.tx.ledger
	if id, ok := l.usersByToken[phoneToken]; ok {
		u := l.users[id]
		if phoneEncrypted != "" && u.PhoneEncrypted != phoneEncrypted {
			prev := u.PhoneEncrypted
			u.PhoneEncrypted = phoneEncrypted
			r.tx.record(func() { u.PhoneEncrypted = prev })
		}
		cp := *u
		return &cp, false, nil
	}

	u := &models.User{
		ID:             uuid.New(),
		PhoneToken:     phoneToken,
		PhoneEncrypted: phoneEncrypted,
		Credit:         1,
		PeriodAnchor:   now,
		CreatedAt:      now,
	}
	l.users[u.ID] = u
	l.usersByToken[phoneToken] = u.ID
	r.tx.record(func() {
		delete(l.users, u.ID)
		delete(l.usersByToken, phoneToken)
	})
	cp := *u
	return &cp, true, nil
}

func (r *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	u, ok := r.tx.ledger.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) SpendCredit(ctx context.Context, id uuid.UUID) (bool, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return false, err
	}
	defer done()

	u, ok := r.tx.ledger.users[id]
	if !ok || u.Credit < 1 {
		return false, nil
	}
	u.Credit--
	r.tx.record(func() { u.Credit++ })
	return true, nil
}

func (r *memUsers) ResetAllCredits(ctx context.Context, now time.Time) (int64, error) {
	return r.grant(ctx, func(*models.User) bool { return true }, func(*models.User) time.Time { return now })
}

func (r *memUsers) RolloverCredits(ctx context.Context, now time.Time, period time.Duration) (int64, error) {
	stale := now.Add(-period)
	return r.grant(ctx,
		func(u *models.User) bool { return !u.PeriodAnchor.After(stale) },
		func(u *models.User) time.Time { return AdvanceAnchor(u.PeriodAnchor, now, period) })
}

func (r *memUsers) grant(ctx context.Context, match func(*models.User) bool, anchor func(*models.User) time.Time) (int64, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	var n int64
	for _, u := range r.tx.ledger.users {
		u := u
		if !match(u) {
			continue
		}
		prevCredit, prevAnchor := u.Credit, u.PeriodAnchor
		u.Credit = 1
		u.PeriodAnchor = anchor(u)
		r.tx.record(func() {
			u.Credit = prevCredit
			u.PeriodAnchor = prevAnchor
		})
		n++
	}
	return n, nil
}

type memSignals struct {
	tx *memTx
}

func (r *memSignals) Insert(ctx context.Context, signal *models.Signal) (bool, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return false, err
	}
	defer done()

	l := r.tx.ledger
	k := signalKey{relationshipKey: signal.RelationshipKey, senderToken: signal.SenderToken}
	if _, exists := l.signals[k]; exists {
		return false, nil
	}
	signal.ID = uuid.New()
	cp := *signal
	l.signals[k] = &cp
	r.tx.record(func() { delete(l.signals, k) })
	return true, nil
}

func (r *memSignals) ForKey(ctx context.Context, key string) ([]models.Signal, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	var out []models.Signal
	for k, s := range r.tx.ledger.signals {
		if k.relationshipKey == key {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memSignals) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	l := r.tx.ledger
	var n int64
	for k, s := range l.signals {
		k, s := k, s
		if s.CreatedAt.Before(cutoff) {
			delete(l.signals, k)
			r.tx.record(func() { l.signals[k] = s })
			n++
		}
	}
	return n, nil
}

type memRelationships struct {
	tx *memTx
}

func (r *memRelationships) Lock(ctx context.Context, key string, now time.Time) (*models.Relationship, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	l := r.tx.ledger
	rel, ok := l.relationships[key]
	if !ok {
		rel = &models.Relationship{Key: key, CreatedAt: now, UpdatedAt: now}
		l.relationships[key] = rel
		r.tx.record(func() { delete(l.relationships, key) })
	} else {
		prev := rel.UpdatedAt
		rel.UpdatedAt = now
		r.tx.record(func() { rel.UpdatedAt = prev })
	}
	return copyRelationship(rel), nil
}

func (r *memRelationships) ClaimMatch(ctx context.Context, key string, now time.Time) (bool, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return false, err
	}
	defer done()

	rel, ok := r.tx.ledger.relationships[key]
	if !ok || rel.MatchedAt != nil {
		return false, nil
	}
	t := now
	rel.MatchedAt = &t
	r.tx.record(func() { rel.MatchedAt = nil })
	return true, nil
}

func (r *memRelationships) MarkNotified(ctx context.Context, key string, now time.Time) error {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	rel, ok := r.tx.ledger.relationships[key]
	if !ok || rel.NotifiedAt != nil {
		return nil
	}
	t := now
	rel.NotifiedAt = &t
	r.tx.record(func() { rel.NotifiedAt = nil })
	return nil
}

func (r *memRelationships) Unnotified(ctx context.Context, matchedBefore time.Time, limit int) ([]models.Relationship, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	var out []models.Relationship
	for _, rel := range r.tx.ledger.relationships {
		if rel.MatchedAt != nil && rel.NotifiedAt == nil && rel.MatchedAt.Before(matchedBefore) {
			out = append(out, *copyRelationship(rel))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchedAt.Before(*out[j].MatchedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRelationships) DeleteOrphaned(ctx context.Context, cutoff time.Time) (int64, error) {
	done, err := r.tx.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	l := r.tx.ledger
	live := make(map[string]bool, len(l.signals))
	for k := range l.signals {
		live[k.relationshipKey] = true
	}

	var n int64
	for key, rel := range l.relationships {
		key, rel := key, rel
		if live[key] || !rel.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(l.relationships, key)
		r.tx.record(func() { l.relationships[key] = rel })
		n++
	}
	return n, nil
}

func copyRelationship(rel *models.Relationship) *models.Relationship {
	cp := *rel
	if rel.MatchedAt != nil {
		t := *rel.MatchedAt
		cp.MatchedAt = &t
	}
	if rel.NotifiedAt != nil {
		t := *rel.NotifiedAt
		cp.NotifiedAt = &t
	}
	return &cp
}
