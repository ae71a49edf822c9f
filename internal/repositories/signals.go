package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/mutual-backend/internal/database"
	"github.com/AnshRaj112/mutual-backend/internal/models"
)

type PostgresSignalRepository struct {
	db database.DBTX
}

func NewPostgresSignalRepository(db database.DBTX) *PostgresSignalRepository {
	return &PostgresSignalRepository{db: db}
}

func (r *PostgresSignalRepository) Insert(ctx context.Context, signal *models.Signal) (bool, error) {
	query :=
		`INSERT INTO signals (relationship_key, sender_token, sender_user_id, contact_label, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (relationship_key, sender_token) DO NOTHING
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		signal.RelationshipKey, signal.SenderToken, signal.SenderUserID, signal.ContactLabel, signal.CreatedAt).
		Scan(&signal.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return true, nil
}

func (r *PostgresSignalRepository) ForKey(ctx context.Context, key string) ([]models.Signal, error) {
	query :=
		`SELECT id, relationship_key, sender_token, sender_user_id, contact_label, created_at
		 FROM signals
		 WHERE relationship_key = $1
		 ORDER BY created_at
		 `

	rows, err := r.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var s models.Signal
		if err := rows.Scan(&s.ID, &s.RelationshipKey, &s.SenderToken, &s.SenderUserID, &s.ContactLabel, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		signals = append(signals, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return signals, nil
}

func (r *PostgresSignalRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query :=
		`DELETE FROM signals WHERE created_at < $1
		 `

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return rowsAffected(res)
}
