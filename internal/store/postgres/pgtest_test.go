package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/store/postgres"
)

// testDB is a migrated Postgres container shared by the subtests of one test.
type testDB struct {
	db  *sqlx.DB
	dsn string
	cfg config.DatabaseConfig
}

// newTestDB starts a Postgres container and applies the schema. The container
// is terminated when the test ends.
func newTestDB(t *testing.T) *testDB {
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

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}
	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("getting host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("getting port: %v", err)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return &testDB{
		db:  db,
		dsn: dsn,
		cfg: config.DatabaseConfig{
			Host:     host,
			Port:     port.Int(),
			User:     "test",
			Password: "test",
			DBName:   "draft_test",
			SSLMode:  "disable",
			Driver:   "sqlx",
		},
	}
}

// truncate empties every table.
func (d *testDB) truncate(t *testing.T) {
	t.Helper()
	if _, err := d.db.Exec(`TRUNCATE players, teams, users, auction_state`); err != nil {
		t.Fatalf("truncating: %v", err)
	}
}
