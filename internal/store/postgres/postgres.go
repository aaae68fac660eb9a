// Package postgres provides the "sqlx" store.Driver: the shared store in
// Postgres accessed through sqlx, with the change feed driven by LISTEN/NOTIFY.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// NotifyChannel is the channel the schema triggers notify on.
const NotifyChannel = "draft_changes"

// Schema is the DDL for the shared store, applied on open.
//
//go:embed migrations/001_initial.sql
var Schema string

func init() {
	store.Register("sqlx", openSQLX)
}

// openSQLX is the store.Driver for the "sqlx" backend.
func openSQLX(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	feed, err := NewListener(ctx, cfg.DSN())
	if err != nil {
		db.Close()
		return nil, err
	}

	return &store.Repositories{
		Players: NewPlayerRepo(db),
		Teams:   NewTeamRepo(db),
		Users:   NewUserRepo(db),
		State:   NewStateRepo(db, clk),
		Feed:    feed,
		Closer: store.CloserFunc(func() error {
			feedErr := feed.Close()
			if err := db.Close(); err != nil {
				return err
			}
			return feedErr
		}),
		Ping: db.PingContext,
	}, nil
}

// Connect opens and verifies a Postgres connection with OTEL instrumentation.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.DSN()

	// Register the OTel-instrumented driver wrapping lib/pq.
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("registering otel driver: %w", err)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// Migrate applies Schema. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
