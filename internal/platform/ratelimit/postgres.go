package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// queryRower is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBackend delegates increment-and-check to the rate_limit_hit
// stored function so the whole hit is one atomic round trip.
type PostgresBackend struct {
	db queryRower
}

func NewPostgresBackend(db queryRower) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Name() string { return "postgres" }

func (b *PostgresBackend) Check(ctx context.Context, p Params) (Result, error) {
	var (
		count   int64
		resetAt time.Time
	)
	err := b.db.QueryRow(ctx,
		`SELECT hit_count, reset_at FROM rate_limit_hit($1, $2)`,
		p.Key, p.Window.Milliseconds(),
	).Scan(&count, &resetAt)
	if err != nil {
		return Result{}, fmt.Errorf("rate_limit_hit %s: %w", p.Key, err)
	}
	return result(count, p.Limit, resetAt), nil
}
