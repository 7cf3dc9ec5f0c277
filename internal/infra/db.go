// Package infra wires external collaborators: Postgres, Redis, Firebase.
package infra

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB opens a pgx connection pool against the configured DSN.
func NewDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, dsn)
}
