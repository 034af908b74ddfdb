package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres implements the Storage interface on PostgreSQL through pgx.
type Postgres struct {
	sqlStore
}

// NewPostgres connects to dsn and applies pending migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := NewPostgresDB(db)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresDB wraps an open handle without migrating it.
func NewPostgresDB(db *sql.DB) *Postgres {
	return &Postgres{sqlStore{db: db, d: postgresDialect, now: time.Now}}
}

// Migrate applies pending schema migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, p.db, p.d); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
