package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/mutual-backend/internal/database"
	"github.com/AnshRaj112/mutual-backend/internal/logger"
	"github.com/AnshRaj112/mutual-backend/internal/models"
	"github.com/AnshRaj112/mutual-backend/internal/repositories"
	"github.com/AnshRaj112/mutual-backend/pkg/utils"
)

// MaxContactLabelLength bounds the optional label a sender keeps for the recipient.
const MaxContactLabelLength = 100

// SignalRequest is one anonymous positive signal.
type SignalRequest struct {
	SenderUserID   uuid.UUID
	SenderPhone    string
	RecipientPhone string
	ContactLabel   string
}

// SignalService runs the feedback pipeline: record the signal, spend the
// sender's credit and detect a mutual match, all in one transaction.
type SignalService struct {
	ledger   repositories.Ledger
	hasher   *utils.Hasher
	notifier *NotificationService
	log      *zap.Logger
	now      func() time.Time
	timeout  time.Duration
}

func NewSignalService(ledger repositories.Ledger, hasher *utils.Hasher, notifier *NotificationService, log *zap.Logger, timeout time.Duration) *SignalService {
	return &SignalService{
		ledger:   ledger,
		hasher:   hasher,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		timeout:  timeout,
	}
}

// Submit records a signal. The result is always set; the error carries the
// detail for every result other than Accepted.
func (s *SignalService) Submit(ctx context.Context, req SignalRequest) (SignalResult, error) {
	err := s.submit(ctx, req)
	result := resultOf(err)

	switch result {
	case Accepted, AlreadyRecorded, InsufficientCredit, InvalidInput:
		s.log.Debug("signal processed", zap.Stringer("result", result), zap.String("user_id", req.SenderUserID.String()))
	case TransientFailure:
		s.log.Warn("signal failed transiently", zap.String("user_id", req.SenderUserID.String()), zap.Error(err))
	case InternalInconsistency:
		s.log.Error("signal rollback failed",
			zap.String("user_id", req.SenderUserID.String()),
			zap.String("reconcile", "manual"),
			zap.Error(err))
	default:
		s.log.Error("signal failed", zap.String("user_id", req.SenderUserID.String()), zap.Error(err))
	}
	return result, err
}

func (s *SignalService) submit(ctx context.Context, req SignalRequest) error {
	if req.SenderUserID == uuid.Nil {
		return fmt.Errorf("%w: sender id required", ErrInvalidInput)
	}
	label := strings.TrimSpace(req.ContactLabel)
	if utf8.RuneCountInString(label) > MaxContactLabelLength {
		return fmt.Errorf("%w: %w", ErrInvalidInput, &utils.ValidationError{Field: "contact_label", Message: "Contact label is too long"})
	}

	senderToken, err := s.hasher.Token(req.SenderPhone)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	key, err := s.hasher.PairKey(req.SenderPhone, req.RecipientPhone)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	// Microsecond precision survives a round trip through PostgreSQL, so the
	// match dedupe key computed here equals the one the reconciler recomputes.
	now := s.now().UTC().Truncate(time.Microsecond)
	signal := &models.Signal{
		RelationshipKey: key,
		SenderToken:     senderToken,
		SenderUserID:    req.SenderUserID,
		ContactLabel:    label,
		CreatedAt:       now,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var match *Match
	err = s.ledger.InTx(txCtx, func(ctx context.Context, repos repositories.Repos) error {
		match = nil

		user, err := repos.Users.GetByID(ctx, req.SenderUserID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.PhoneToken != senderToken {
			return ErrPhoneMismatch
		}

		rel, err := repos.Relationships.Lock(ctx, key, now)
		if err != nil {
			return err
		}

		inserted, err := repos.Signals.Insert(ctx, signal)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrAlreadyRecorded
		}

		spent, err := repos.Users.SpendCredit(ctx, user.ID)
		if err != nil {
			return err
		}
		if !spent {
			return ErrInsufficientCredit
		}

		if rel.Matched() {
			return nil
		}
		match, err = detectMatch(ctx, repos, key, now)
		return err
	})
	if err != nil {
		if errors.Is(err, database.ErrRollbackFailed) && !IsTransient(err) {
			return fmt.Errorf("%w: %w", ErrInternalInconsistency, err)
		}
		return err
	}

	// Committed. Notifications must not depend on the caller staying connected.
	emitCtx := context.WithoutCancel(ctx)
	if err := s.notifier.EmitInfo(emitCtx, req.SenderUserID, "sent:"+signal.ID.String(), sentTitle, sentMessage); err != nil {
		s.log.Warn("sent notification failed", zap.String("user_id", req.SenderUserID.String()), zap.Error(err))
	}
	if match != nil {
		s.deliverMatch(emitCtx, *match)
	}
	return nil
}

// detectMatch claims the match marker when the key has exactly two signals
// from distinct senders. Only the claiming transaction gets a Match.
func detectMatch(ctx context.Context, repos repositories.Repos, key string, now time.Time) (*Match, error) {
	signals, err := repos.Signals.ForKey(ctx, key)
	if err != nil {
		return nil, err
	}
	m, ok := matchFromSignals(key, now, signals)
	if !ok {
		return nil, nil
	}

	claimed, err := repos.Relationships.ClaimMatch(ctx, key, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}
	return &m, nil
}

func matchFromSignals(key string, matchedAt time.Time, signals []models.Signal) (Match, bool) {
	if len(signals) != 2 || signals[0].SenderToken == signals[1].SenderToken {
		return Match{}, false
	}
	return Match{
		Key:       key,
		MatchedAt: matchedAt,
		Parties: [2]MatchParty{
			{UserID: signals[0].SenderUserID, ContactLabel: signals[0].ContactLabel},
			{UserID: signals[1].SenderUserID, ContactLabel: signals[1].ContactLabel},
		},
	}, true
}

// deliverMatch emits both match notifications and records delivery. On
// failure the relationship stays unnotified for the reconciler.
func (s *SignalService) deliverMatch(ctx context.Context, m Match) {
	short := logger.ShortKey(m.Key)
	if err := s.notifier.EmitMatch(ctx, m); err != nil {
		s.log.Error("match notification failed; left for reconciler", zap.String("relationship", short), zap.Error(err))
		return
	}

	markCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.ledger.Repos().Relationships.MarkNotified(markCtx, m.Key, s.now().UTC()); err != nil {
		s.log.Warn("mark notified failed", zap.String("relationship", short), zap.Error(err))
		return
	}
	s.log.Info("match notified", zap.String("relationship", short))
}
