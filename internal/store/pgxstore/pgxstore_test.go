package pgxstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/store"
	"github.com/jensholdgaard/draft-auction/internal/store/pgxstore"
	"github.com/jensholdgaard/draft-auction/internal/store/postgres"
	"github.com/jensholdgaard/draft-auction/internal/store/storetest"
)

// newTestConfig starts a Postgres container and returns settings for the pgx
// driver. The container is terminated when the test ends.
func newTestConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("draft_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("getting host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("getting port: %v", err)
	}
	return config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		DBName:   "draft_test",
		SSLMode:  "disable",
		Driver:   "pgx",
	}
}

func TestConformance(t *testing.T) {
	cfg := newTestConfig(t)
	ctx := context.Background()

	pool, err := pgxstore.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	storetest.Run(t, func(t *testing.T) *store.Repositories {
		truncate(t, pool)
		feed, err := pgxstore.NewListener(ctx, pool)
		if err != nil {
			t.Fatalf("NewListener() error = %v", err)
		}
		t.Cleanup(feed.Close)
		return &store.Repositories{
			Players: pgxstore.NewPlayerRepo(pool),
			Teams:   pgxstore.NewTeamRepo(pool),
			Users:   pgxstore.NewUserRepo(pool),
			State:   pgxstore.NewStateRepo(pool, clock.Real{}),
			Feed:    feed,
		}
	})
}

func TestOpen_ViaRegistry(t *testing.T) {
	cfg := newTestConfig(t)
	ctx := context.Background()

	for i := range 2 {
		repos, err := store.Open(ctx, cfg, clock.Real{})
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		if err := repos.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
		if err := repos.Closer.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `TRUNCATE players, teams, users, auction_state`); err != nil {
		t.Fatalf("truncating: %v", err)
	}
}
