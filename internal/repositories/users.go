package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AnshRaj112/mutual-backend/internal/database"
	"github.com/AnshRaj112/mutual-backend/internal/models"
)

type PostgresUserRepository struct {
	db database.DBTX
}

func NewPostgresUserRepository(db database.DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Register(ctx context.Context, phoneToken, phoneEncrypted string, now time.Time) (*models.User, bool, error) {
	query :=
		`INSERT INTO users (phone_token, phone_encrypted, period_anchor, created_at)
		 VALUES ($1, NULLIF($2::text, ''), $3, $3)
		 ON CONFLICT (phone_token) DO UPDATE
		 SET phone_encrypted = COALESCE(EXCLUDED.phone_encrypted, users.phone_encrypted)
		 RETURNING id, credit, period_anchor, created_at, (xmax = 0) AS inserted
		 `

	user := &models.User{PhoneToken: phoneToken, PhoneEncrypted: phoneEncrypted}
	var created bool
	err := r.db.QueryRowContext(ctx, query, phoneToken, phoneEncrypted, now).
		Scan(&user.ID, &user.Credit, &user.PeriodAnchor, &user.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	return user, created, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query :=
		`SELECT id, phone_token, COALESCE(phone_encrypted, ''), credit, period_anchor, created_at
		 FROM users
		 WHERE id = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.PhoneToken, &user.PhoneEncrypted, &user.Credit, &user.PeriodAnchor, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresUserRepository) SpendCredit(ctx context.Context, id uuid.UUID) (bool, error) {
	query :=
		`UPDATE users SET credit = credit - 1
		 WHERE id = $1 AND credit >= 1
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}

func (r *PostgresUserRepository) ResetAllCredits(ctx context.Context, now time.Time) (int64, error) {
	query :=
		`UPDATE users SET credit = 1, period_anchor = $1
		 `

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return rowsAffected(res)
}

func (r *PostgresUserRepository) RolloverCredits(ctx context.Context, now time.Time, period time.Duration) (int64, error) {
	// The anchor moves forward by whole periods so the schedule never drifts.
	query :=
		`UPDATE users SET credit = 1,
		   period_anchor = period_anchor
		     + make_interval(secs => floor(extract(epoch FROM ($1::timestamptz - period_anchor)) / $2) * $2)
		 WHERE period_anchor <= $1::timestamptz - make_interval(secs => $2)
		 `

	res, err := r.db.ExecContext(ctx, query, now, period.Seconds())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return rowsAffected(res)
}

// AdvanceAnchor returns anchor moved forward by the largest whole number of
// periods that does not pass now.
func AdvanceAnchor(anchor, now time.Time, period time.Duration) time.Time {
	if period <= 0 || now.Before(anchor) {
		return anchor
	}
	return anchor.Add(now.Sub(anchor) / period * period)
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
