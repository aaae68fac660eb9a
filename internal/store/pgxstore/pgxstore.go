// Package pgxstore provides the "pgx" store.Driver: the same Postgres schema
// as the sqlx driver accessed through a pgx connection pool, with the change
// feed read from a dedicated LISTEN connection.
package pgxstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/store"
	"github.com/jensholdgaard/draft-auction/internal/store/postgres"
)

func init() {
	store.Register("pgx", openPgx)
}

// openPgx is the store.Driver for the "pgx" backend.
func openPgx(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	feed, err := NewListener(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &store.Repositories{
		Players: NewPlayerRepo(pool),
		Teams:   NewTeamRepo(pool),
		Users:   NewUserRepo(pool),
		State:   NewStateRepo(pool, clk),
		Feed:    feed,
		Closer: store.CloserFunc(func() error {
			feed.Close()
			pool.Close()
			return nil
		}),
		Ping: pool.Ping,
	}, nil
}

// Connect opens and verifies a pgx connection pool.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging pgx pool: %w", err)
	}
	return pool, nil
}
