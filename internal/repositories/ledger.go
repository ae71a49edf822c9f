package repositories

import (
	"context"
	"database/sql"

	"github.com/AnshRaj112/mutual-backend/internal/database"
)

// PostgresLedger vends PostgreSQL-backed repositories.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func newPostgresRepos(db database.DBTX) Repos {
	return Repos{
		Users:         NewPostgresUserRepository(db),
		Signals:       NewPostgresSignalRepository(db),
		Relationships: NewPostgresRelationshipRepository(db),
	}
}

func (l *PostgresLedger) Repos() Repos {
	return newPostgresRepos(l.db)
}

func (l *PostgresLedger) InTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	return database.WithTx(ctx, l.db, nil, func(ctx context.Context, tx database.DBTX) error {
		return fn(ctx, newPostgresRepos(tx))
	})
}
