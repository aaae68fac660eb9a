package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jensholdgaard/draft-auction/internal/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
database:
  host: "db.example.com"
  port: 5433
  user: "draft"
  password: "secret"
  dbname: "draft"
  sslmode: "require"
  driver: "sqlx"
server:
  port: 9090
telemetry:
  service_name: "my-draft"
  otlp_endpoint: "localhost:4318"
auction:
  max_rounds: 10
  teams_per_round: 3
  draw_delay: 1s
discord:
  token: "tok"
  channel_id: "42"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if cfg.Telemetry.ServiceName != "my-draft" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "my-draft")
				}
				if cfg.Auction.MaxRounds != 10 || cfg.Auction.TeamsPerRound != 3 {
					t.Errorf("got rounds/teams %d/%d, want 10/3", cfg.Auction.MaxRounds, cfg.Auction.TeamsPerRound)
				}
				if cfg.Auction.DrawDelay != time.Second {
					t.Errorf("got draw delay %v, want 1s", cfg.Auction.DrawDelay)
				}
				if cfg.Auction.AnnouncementTTL != 4*time.Second {
					t.Errorf("got announcement ttl %v, want 4s", cfg.Auction.AnnouncementTTL)
				}
				if cfg.Discord.ChannelID != "42" {
					t.Errorf("got channel %q, want %q", cfg.Discord.ChannelID, "42")
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
server:
  port: 8080
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "memory" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "memory")
				}
				if cfg.Auction.MaxRounds != 15 {
					t.Errorf("got max rounds %d, want 15", cfg.Auction.MaxRounds)
				}
				if cfg.Auction.TeamsPerRound != 4 {
					t.Errorf("got teams per round %d, want 4", cfg.Auction.TeamsPerRound)
				}
				if cfg.Auction.DrawDelay != 2500*time.Millisecond {
					t.Errorf("got draw delay %v, want 2.5s", cfg.Auction.DrawDelay)
				}
				if cfg.Auction.AdminUsername != "admin" {
					t.Errorf("got admin username %q, want %q", cfg.Auction.AdminUsername, "admin")
				}
				if cfg.Telemetry.ServiceName != "draftd" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "draftd")
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "pgx driver accepted",
			yaml: `
database:
  driver: "pgx"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "pgx" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "pgx")
				}
			},
		},
		{
			name: "invalid driver rejected",
			yaml: `
database:
  driver: "mongodb"
`,
			wantErr: true,
		},
		{
			name: "zero max rounds rejected",
			yaml: `
auction:
  max_rounds: 0
`,
			wantErr: true,
		},
		{
			name: "leader election enabled",
			yaml: `
leader_election:
  enabled: true
  lease_name: "draft-lease"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				le := cfg.LeaderElection
				if !le.Enabled || le.LeaseName != "draft-lease" || le.LeaseNamespace != "default" {
					t.Errorf("got leader election %+v, want enabled draft-lease in default", le)
				}
				if le.LeaseDuration != 15*time.Second {
					t.Errorf("got lease duration %v, want 15s", le.LeaseDuration)
				}
			},
		},
		{
			name: "leader election without lease name rejected",
			yaml: `
leader_election:
  enabled: true
  lease_name: ""
`,
			wantErr: true,
		},
		{
			name: "negative draw delay rejected",
			yaml: `
auction:
  draw_delay: -1s
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  password: from-yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DRAFT_DISCORD_TOKEN=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DRAFT_DB_PASSWORD", "from-env")
	t.Setenv("DRAFT_DISCORD_TOKEN", "")
	os.Unsetenv("DRAFT_DISCORD_TOKEN")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Password != "from-env" {
		t.Errorf("got db password %q, want %q", cfg.Database.Password, "from-env")
	}
	if cfg.Discord.Token != "from-dotenv" {
		t.Errorf("got discord token %q, want %q", cfg.Discord.Token, "from-dotenv")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
