package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/mutual-backend/internal/logger"
	"github.com/AnshRaj112/mutual-backend/internal/repositories"
)

const (
	maintenanceLock = "maintenance"
	// reconcileGrace leaves fresh matches to the request that claimed them.
	reconcileGrace = time.Minute
	reconcileBatch = 100
)

// PurgeResult reports what a retention sweep removed.
type PurgeResult struct {
	SignalsDeleted       int64 `json:"signals_deleted"`
	RelationshipsDeleted int64 `json:"relationships_deleted"`
	NotificationsDeleted int64 `json:"notifications_deleted"`
}

// MaintenanceConfig holds the periods of the background jobs.
type MaintenanceConfig struct {
	CreditPeriod time.Duration
	Retention    time.Duration
	Interval     time.Duration
	Timeout      time.Duration
}

// MaintenanceService runs credit rollover, retention purges and match
// notification reconciliation.
type MaintenanceService struct {
	ledger   repositories.Ledger
	notifier *NotificationService
	locker   Locker
	log      *zap.Logger
	cfg      MaintenanceConfig
	now      func() time.Time
}

func NewMaintenanceService(ledger repositories.Ledger, notifier *NotificationService, locker Locker, log *zap.Logger, cfg MaintenanceConfig) *MaintenanceService {
	if locker == nil {
		locker = LocalLocker{}
	}
	return &MaintenanceService{
		ledger:   ledger,
		notifier: notifier,
		locker:   locker,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *MaintenanceService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// RolloverCredits restores one credit to every user whose period has ended.
// Running it twice for the same period changes nothing.
func (s *MaintenanceService) RolloverCredits(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	n, err := s.ledger.Repos().Users.RolloverCredits(ctx, s.timestamp(), s.cfg.CreditPeriod)
	if err != nil {
		return 0, s.wrap("rollover credits", err)
	}
	return n, nil
}

// ResetAllCredits grants every user one credit regardless of period.
func (s *MaintenanceService) ResetAllCredits(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	n, err := s.ledger.Repos().Users.ResetAllCredits(ctx, s.timestamp())
	if err != nil {
		return 0, s.wrap("reset credits", err)
	}
	return n, nil
}

// PurgeOlderThan deletes signals and notifications older than age, then
// relationships left without signals. A relationship that still has one
// signal keeps its match marker.
func (s *MaintenanceService) PurgeOlderThan(ctx context.Context, age time.Duration) (PurgeResult, error) {
	var res PurgeResult
	if age <= 0 {
		return res, fmt.Errorf("%w: purge age must be positive", ErrInvalidInput)
	}
	cutoff := s.timestamp().Add(-age)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	repos := s.ledger.Repos()
	var err error
	if res.SignalsDeleted, err = repos.Signals.DeleteOlderThan(ctx, cutoff); err != nil {
		return res, s.wrap("purge signals", err)
	}
	if res.RelationshipsDeleted, err = repos.Relationships.DeleteOrphaned(ctx, cutoff); err != nil {
		return res, s.wrap("purge relationships", err)
	}
	if res.NotificationsDeleted, err = s.notifier.PurgeOlderThan(ctx, cutoff); err != nil {
		return res, fmt.Errorf("purge notifications: %w", err)
	}
	return res, nil
}

// ReconcileMatches re-emits notifications for matches whose delivery was
// never confirmed. Emission is idempotent, so a duplicate run is harmless.
func (s *MaintenanceService) ReconcileMatches(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	repos := s.ledger.Repos()
	pending, err := repos.Relationships.Unnotified(ctx, s.now().UTC().Add(-reconcileGrace), reconcileBatch)
	if err != nil {
		return 0, s.wrap("list unnotified matches", err)
	}

	delivered := 0
	for _, rel := range pending {
		short := logger.ShortKey(rel.Key)
		signals, err := repos.Signals.ForKey(ctx, rel.Key)
		if err != nil {
			return delivered, s.wrap("load signals", err)
		}

		m, ok := matchFromSignals(rel.Key, *rel.MatchedAt, signals)
		if !ok {
			s.log.Warn("matched relationship lost its signals; marking notified", zap.String("relationship", short))
		} else if err := s.notifier.EmitMatch(ctx, m); err != nil {
			s.log.Warn("reconcile emit failed", zap.String("relationship", short), zap.Error(err))
			continue
		}

		if err := repos.Relationships.MarkNotified(ctx, rel.Key, s.timestamp()); err != nil {
			return delivered, s.wrap("mark notified", err)
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// RunOnce runs every job under the shared lease. Returns false when another
// instance holds the lease.
func (s *MaintenanceService) RunOnce(ctx context.Context) bool {
	release, ok, err := s.locker.Acquire(ctx, maintenanceLock, s.cfg.Interval)
	if err != nil {
		s.log.Warn("maintenance lock unavailable", zap.Error(err))
		return false
	}
	if !ok {
		s.log.Debug("maintenance running elsewhere")
		return false
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("maintenance lock release failed", zap.Error(err))
		}
	}()

	if n, err := s.RolloverCredits(ctx); err != nil {
		s.log.Error("credit rollover failed", zap.Error(err))
	} else if n > 0 {
		s.log.Info("credits rolled over", zap.Int64("users", n))
	}

	if res, err := s.PurgeOlderThan(ctx, s.cfg.Retention); err != nil {
		s.log.Error("retention purge failed", zap.Error(err))
	} else {
		s.log.Info("retention purge done",
			zap.Int64("signals", res.SignalsDeleted),
			zap.Int64("relationships", res.RelationshipsDeleted),
			zap.Int64("notifications", res.NotificationsDeleted))
	}

	if n, err := s.ReconcileMatches(ctx); err != nil {
		s.log.Error("match reconciliation failed", zap.Error(err))
	} else if n > 0 {
		s.log.Info("match notifications reconciled", zap.Int("matches", n))
	}
	return true
}

// Start runs the jobs immediately and then every Interval until ctx ends.
func (s *MaintenanceService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

func (s *MaintenanceService) wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, ClassifyStorageError(err))
}
