package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/mutual-backend/internal/models"
	"github.com/AnshRaj112/mutual-backend/internal/repositories"
	"github.com/AnshRaj112/mutual-backend/pkg/utils"
)

// UserService registers phone owners. Numbers are not verified.
type UserService struct {
	ledger  repositories.Ledger
	hasher  *utils.Hasher
	cipher  *utils.Cipher
	log     *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

// NewUserService creates the service. cipher may be nil, in which case the
// phone number is not kept at all.
func NewUserService(ledger repositories.Ledger, hasher *utils.Hasher, cipher *utils.Cipher, log *zap.Logger, timeout time.Duration) *UserService {
	return &UserService{
		ledger:  ledger,
		hasher:  hasher,
		cipher:  cipher,
		log:     log,
		now:     time.Now,
		timeout: timeout,
	}
}

// Register returns the user owning phone, creating it with one credit if new.
func (s *UserService) Register(ctx context.Context, phone string) (*models.User, bool, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	token, err := s.hasher.Token(normalized)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var sealed string
	if s.cipher != nil {
		if sealed, err = s.cipher.Encrypt(normalized); err != nil {
			return nil, false, fmt.Errorf("seal phone: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, created, err := s.ledger.Repos().Users.Register(ctx, token, sealed, s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return nil, false, ClassifyStorageError(err)
	}
	if created {
		s.log.Info("user registered", zap.String("user_id", user.ID.String()))
	}
	return user, created, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.ledger.Repos().Users.GetByID(ctx, id)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, repositories.ErrNotFound):
		return nil, ErrUserNotFound
	default:
		return nil, ClassifyStorageError(err)
	}
}

// Profile is what a signed-in user sees about their own account.
type Profile struct {
	User *models.User
	// Phone is the registered number opened from its sealed copy. Empty when
	// no cipher is configured or the value was sealed under another key.
	Phone string
}

// Profile returns the user's account with the registered phone unsealed.
func (s *UserService) Profile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: user}
	if s.cipher == nil || user.PhoneEncrypted == "" {
		return p, nil
	}
	if p.Phone, err = s.cipher.Decrypt(user.PhoneEncrypted); err != nil {
		s.log.Warn("sealed phone unreadable", zap.String("user_id", id.String()), zap.Error(err))
		p.Phone = ""
	}
	return p, nil
}
