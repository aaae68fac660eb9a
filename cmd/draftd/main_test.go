package main

import (
	"testing"
	"time"

	"github.com/jensholdgaard/draft-auction/internal/config"
)

func TestEngineOptions(t *testing.T) {
	cfg := config.AuctionConfig{
		MaxRounds:       10,
		TeamsPerRound:   3,
		DrawDelay:       time.Second,
		AnnouncementTTL: 2 * time.Second,
		AdminUsername:   "chief",
		AdminPassword:   "secret",
	}
	opts := engineOptions(cfg)
	if opts.MaxRounds != 10 || opts.TeamsPerRound != 3 {
		t.Errorf("rounds/teams = %d/%d, want 10/3", opts.MaxRounds, opts.TeamsPerRound)
	}
	if opts.DrawDelay != time.Second || opts.AnnouncementTTL != 2*time.Second {
		t.Errorf("delays = %v/%v, want 1s/2s", opts.DrawDelay, opts.AnnouncementTTL)
	}
	if opts.AdminUsername != "chief" || opts.AdminPassword != "secret" {
		t.Errorf("admin = %q/%q, want chief/secret", opts.AdminUsername, opts.AdminPassword)
	}
	if opts.IntN == nil {
		t.Error("IntN is nil, want the default source")
	}
}
