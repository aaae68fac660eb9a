package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/store"

	// Import drivers so their init() functions register them.
	_ "github.com/jensholdgaard/draft-auction/internal/store/memstore"
	_ "github.com/jensholdgaard/draft-auction/internal/store/pgxstore"
	_ "github.com/jensholdgaard/draft-auction/internal/store/postgres"
)

// fakeDriver is a store.Driver that always succeeds without connecting to a DB.
func fakeDriver(_ context.Context, _ config.DatabaseConfig, _ clock.Clock) (*store.Repositories, error) {
	return &store.Repositories{}, nil
}

func TestOpen(t *testing.T) {
	store.Register("test-driver", fakeDriver)

	tests := []struct {
		name    string
		driver  string
		wantErr bool
	}{
		{name: "registered driver succeeds", driver: "test-driver"},
		{name: "memory driver succeeds", driver: "memory"},
		{name: "unknown driver fails", driver: "nonexistent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DatabaseConfig{Driver: tt.driver}
			_, err := store.Open(context.Background(), cfg, clock.Real{})
			if (err != nil) != tt.wantErr {
				t.Errorf("Open(driver=%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
		})
	}
}

func TestOpen_MemoryIsShared(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: "memory"}
	a, err := store.Open(ctx, cfg, clock.Real{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	b, err := store.Open(ctx, cfg, clock.Real{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := a.Teams.Create(ctx, &store.Team{ID: 901, Name: "Shared"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	teams, err := b.Teams.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	found := false
	for _, tm := range teams {
		found = found || tm.ID == 901
	}
	if !found {
		t.Error("team written through one Open is invisible through another")
	}
}

func TestRegister(t *testing.T) {
	// The Postgres drivers are registered by init() but cannot connect here,
	// so Open must fail with a connection error rather than an unknown driver.
	for _, driver := range []string{"sqlx", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			cfg := config.DatabaseConfig{Driver: driver, Host: "127.0.0.1", Port: 1, SSLMode: "disable"}
			_, err := store.Open(context.Background(), cfg, clock.Real{})
			if err == nil {
				t.Fatal("expected error (no DB running), got nil")
			}
			if strings.Contains(err.Error(), "unknown store driver") {
				t.Errorf("expected connection error, got unknown driver error: %v", err)
			}
		})
	}
}
