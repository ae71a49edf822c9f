package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AnshRaj112/mutual-backend/internal/database"
	"github.com/AnshRaj112/mutual-backend/internal/models"
)

type PostgresRelationshipRepository struct {
	db database.DBTX
}

func NewPostgresRelationshipRepository(db database.DBTX) *PostgresRelationshipRepository {
	return &PostgresRelationshipRepository{db: db}
}

// Lock upserts the relationship row. The DO UPDATE takes the row lock, so two
// transactions on the same key run one after the other.
func (r *PostgresRelationshipRepository) Lock(ctx context.Context, key string, now time.Time) (*models.Relationship, error) {
	query :=
		`INSERT INTO relationships (relationship_key, created_at, updated_at)
		 VALUES ($1, $2, $2)
		 ON CONFLICT (relationship_key) DO UPDATE
		 SET updated_at = EXCLUDED.updated_at
		 RETURNING relationship_key, matched_at, notified_at, created_at, updated_at
		 `

	rel, err := scanRelationship(r.db.QueryRowContext(ctx, query, key, now))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rel, nil
}

func (r *PostgresRelationshipRepository) ClaimMatch(ctx context.Context, key string, now time.Time) (bool, error) {
	query :=
		`UPDATE relationships SET matched_at = $2
		 WHERE relationship_key = $1 AND matched_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, key, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRelationshipRepository) MarkNotified(ctx context.Context, key string, now time.Time) error {
	query :=
		`UPDATE relationships SET notified_at = $2
		 WHERE relationship_key = $1 AND notified_at IS NULL
		 `

	if _, err := r.db.ExecContext(ctx, query, key, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRelationshipRepository) Unnotified(ctx context.Context, matchedBefore time.Time, limit int) ([]models.Relationship, error) {
	query :=
		`SELECT relationship_key, matched_at, notified_at, created_at, updated_at
		 FROM relationships
		 WHERE matched_at IS NOT NULL AND notified_at IS NULL AND matched_at < $1
		 ORDER BY matched_at
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, matchedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRelationshipRepository) DeleteOrphaned(ctx context.Context, cutoff time.Time) (int64, error) {
	query :=
		`DELETE FROM relationships r
		 WHERE r.updated_at < $1
		 AND NOT EXISTS (SELECT 1 FROM signals s WHERE s.relationship_key = r.relationship_key)
		 `

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return rowsAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelationship(row rowScanner) (*models.Relationship, error) {
	var (
		rel      models.Relationship
		matched  sql.NullTime
		notified sql.NullTime
	)
	if err := row.Scan(&rel.Key, &matched, &notified, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
		return nil, err
	}
	if matched.Valid {
		t := matched.Time
		rel.MatchedAt = &t
	}
	if notified.Valid {
		t := notified.Time
		rel.NotifiedAt = &t
	}
	return &rel, nil
}
