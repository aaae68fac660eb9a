package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Auction   AuctionConfig   `yaml:"auction"`
	Discord   DiscordConfig   `yaml:"discord"`

	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// DatabaseConfig holds shared store connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "memory", "sqlx" or "pgx"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// AuctionConfig holds the draft rules and the seeded administrator account.
type AuctionConfig struct {
	MaxRounds       int           `yaml:"max_rounds"`
	TeamsPerRound   int           `yaml:"teams_per_round"`
	DrawDelay       time.Duration `yaml:"draw_delay"`
	AnnouncementTTL time.Duration `yaml:"announcement_ttl"`
	AdminUsername   string        `yaml:"admin_username"`
	AdminPassword   string        `yaml:"admin_password"`
}

// DiscordConfig holds settings for posting draft announcements.
// The announcer is disabled when Token is empty.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
	GuildID   string `yaml:"guild_id"`
}

// LeaderElectionConfig holds Kubernetes leader election settings. Only the
// leader serves Discord slash commands; every replica serves HTTP.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "memory",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "draftd",
			ServiceVersion: "0.1.0",
		},
		Auction: AuctionConfig{
			MaxRounds:       15,
			TeamsPerRound:   4,
			DrawDelay:       2500 * time.Millisecond,
			AnnouncementTTL: 4 * time.Second,
			AdminUsername:   "admin",
			AdminPassword:   "password",
		},
		LeaderElection: LeaderElectionConfig{
			LeaseName:      "draftd-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}
}

// Load reads a YAML configuration file from the given path, then applies
// overrides from an optional .env file next to it and from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(filepath.Clean(path)), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides secrets from the environment so they can stay out of the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DRAFT_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DRAFT_ADMIN_PASSWORD"); v != "" {
		c.Auction.AdminPassword = v
	}
	if v := os.Getenv("DRAFT_DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "memory", "sqlx", "pgx":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"memory\", \"sqlx\" or \"pgx\"", c.Database.Driver)
	}
	if c.Auction.MaxRounds < 1 {
		return fmt.Errorf("auction.max_rounds must be at least 1, got %d", c.Auction.MaxRounds)
	}
	if c.Auction.TeamsPerRound < 1 {
		return fmt.Errorf("auction.teams_per_round must be at least 1, got %d", c.Auction.TeamsPerRound)
	}
	if c.Auction.DrawDelay <= 0 || c.Auction.AnnouncementTTL <= 0 {
		return errors.New("auction.draw_delay and auction.announcement_ttl must be positive")
	}
	if c.Auction.AdminUsername == "" {
		return errors.New("auction.admin_username must not be empty")
	}
	if c.LeaderElection.Enabled && (c.LeaderElection.LeaseName == "" || c.LeaderElection.LeaseNamespace == "") {
		return errors.New("leader_election requires lease_name and lease_namespace")
	}
	return nil
}
