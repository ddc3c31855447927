package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
)

type Database struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.DatabaseConfig) (*Database, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{pool: pool}, nil
}

// FromPool wraps an existing pool. Closing the Database closes the pool.
func FromPool(pool *pgxpool.Pool) *Database {
	return &Database{pool: pool}
}

func (d *Database) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *Database) Pool() *pgxpool.Pool {
	return d.pool
}
