// Package storetest holds the behaviour every store driver must share, run
// by each driver's own tests against a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// NewRepos returns repositories over a fresh, empty store.
type NewRepos func(t *testing.T) *store.Repositories

// Run runs the conformance suite.
func Run(t *testing.T, newRepos NewRepos) {
	t.Run("Players", func(t *testing.T) { testPlayers(t, newRepos(t)) })
	t.Run("Teams", func(t *testing.T) { testTeams(t, newRepos(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newRepos(t)) })
	t.Run("State", func(t *testing.T) { testState(t, newRepos(t)) })
	t.Run("Feed", func(t *testing.T) { testFeed(t, newRepos(t)) })
}

func intPtr(v int) *int { return &v }

func testPlayers(t *testing.T, repos *store.Repositories) {
	ctx := context.Background()
	r := repos.Players

	for _, p := range []store.Player{
		{ID: 2, Name: "Bob", Role: "Technician"},
		{ID: 1, Name: "Amy", Role: "Staff"},
		{ID: 3, Name: "Cat", Role: "Contractual Worker", DraftedToTeamID: intPtr(7)},
	} {
		if err := r.Create(ctx, &p); err != nil {
			t.Fatalf("Create(%d) error = %v", p.ID, err)
		}
	}

	if err := r.SetDraftedTo(ctx, 1, intPtr(7)); err != nil {
		t.Fatalf("SetDraftedTo() error = %v", err)
	}
	// Update touches name and role only.
	if err := r.Update(ctx, &store.Player{ID: 1, Name: "Amelia", Role: "Technician"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := r.SetDraftedTo(ctx, 3, nil); err != nil {
		t.Fatalf("SetDraftedTo(nil) error = %v", err)
	}

	got, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []store.Player{
		{ID: 1, Name: "Amelia", Role: "Technician", DraftedToTeamID: intPtr(7)},
		{ID: 2, Name: "Bob", Role: "Technician"},
		{ID: 3, Name: "Cat", Role: "Contractual Worker"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() (-want +got):\n%s", diff)
	}

	if err := r.ClearDrafted(ctx); err != nil {
		t.Fatalf("ClearDrafted() error = %v", err)
	}
	got, err = r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, p := range got {
		if p.DraftedToTeamID != nil {
			t.Errorf("player %d still drafted after ClearDrafted", p.ID)
		}
	}

	if err := r.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	for name, err := range map[string]error{
		"Delete":       r.Delete(ctx, 2),
		"Update":       r.Update(ctx, &store.Player{ID: 99, Name: "X", Role: "Staff"}),
		"SetDraftedTo": r.SetDraftedTo(ctx, 99, intPtr(1)),
	} {
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("%s(missing) error = %v, want ErrNotFound", name, err)
		}
	}
}

func testTeams(t *testing.T, repos *store.Repositories) {
	ctx := context.Background()
	r := repos.Teams

	red := store.Team{ID: 1, Name: "Red", Owner: "Rita", CaptainRole: "Staff", Color: "bg-gray-500", Logo: "star"}
	sky := store.Team{ID: 2, Name: "Sky", Owner: "Sam", CaptainRole: "Technician", Color: "bg-gray-500", Logo: "star"}
	for _, tm := range []store.Team{sky, red} {
		if err := r.Create(ctx, &tm); err != nil {
			t.Fatalf("Create(%d) error = %v", tm.ID, err)
		}
	}
	red.Name, red.Color = "Crimson", "bg-red-500"
	if err := r.Update(ctx, &red); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]store.Team{red, sky}, got); diff != "" {
		t.Errorf("List() (-want +got):\n%s", diff)
	}

	if err := r.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := r.Delete(ctx, 2); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
	if err := r.Update(ctx, &sky); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func testUsers(t *testing.T, repos *store.Repositories) {
	ctx := context.Background()
	r := repos.Users

	admin := store.User{ID: 1, Username: "admin", PasswordHash: "h0", Role: "admin"}
	rita := store.User{ID: 2, Username: "rita", PasswordHash: "h1", Role: "team_owner", TeamID: intPtr(1)}
	sam := store.User{ID: 3, Username: "sam", PasswordHash: "h2", Role: "team_owner", TeamID: intPtr(2)}
	for _, u := range []store.User{admin, rita, sam} {
		if err := r.Create(ctx, &u); err != nil {
			t.Fatalf("Create(%s) error = %v", u.Username, err)
		}
	}
	dup := store.User{ID: 4, Username: "rita", PasswordHash: "x", Role: "team_owner"}
	if err := r.Create(ctx, &dup); err == nil {
		t.Error("Create(duplicate username) error = nil")
	}

	rita.PasswordHash = "h1-new"
	if err := r.Update(ctx, &rita); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := r.DeleteByTeam(ctx, 2); err != nil {
		t.Fatalf("DeleteByTeam() error = %v", err)
	}

	got, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]store.User{admin, rita}, got); diff != "" {
		t.Errorf("List() (-want +got):\n%s", diff)
	}
	if err := r.Update(ctx, &sam); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func testState(t *testing.T, repos *store.Repositories) {
	ctx := context.Background()
	r := repos.State

	if _, err := r.Get(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get() on empty store error = %v, want ErrNotFound", err)
	}

	created, err := r.Init(ctx, store.DefaultState())
	if err != nil || !created {
		t.Fatalf("Init() = %v, %v; want true, nil", created, err)
	}
	created, err = r.Init(ctx, &store.AuctionState{CurrentRound: 9, Phase: "ended"})
	if err != nil || created {
		t.Fatalf("second Init() = %v, %v; want false, nil", created, err)
	}

	got, err := r.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	ignoreTime := cmpopts.IgnoreFields(store.AuctionState{}, "UpdatedAt")
	if diff := cmp.Diff(store.DefaultState(), got, ignoreTime, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Get() after Init (-want +got):\n%s", diff)
	}

	want := &store.AuctionState{
		CurrentRound:     3,
		RoundOrder:       []int{4, 2, 9},
		TurnIndex:        1,
		IsRolling:        true,
		DiceTeamID:       intPtr(5),
		Phase:            "running",
		AnnouncePlayerID: intPtr(11),
		AnnounceTeamID:   intPtr(2),
		UndoPlayerID:     intPtr(11),
		UndoTeamID:       intPtr(2),
	}
	if err := r.Put(ctx, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err = r.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(want, got, ignoreTime); diff != "" {
		t.Errorf("Get() after Put (-want +got):\n%s", diff)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set by Put")
	}

	// Nullable fields clear back to nil.
	if err := r.Put(ctx, store.DefaultState()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err = r.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(store.DefaultState(), got, ignoreTime, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Get() after reset (-want +got):\n%s", diff)
	}
}

func testFeed(t *testing.T, repos *store.Repositories) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	teams, err := repos.Feed.Subscribe(ctx, event.TopicTeams)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	state, err := repos.Feed.Subscribe(ctx, event.TopicAuctionState)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := repos.Teams.Create(ctx, &store.Team{ID: 1, Name: "Red", Owner: "R", CaptainRole: "Staff", Color: "c", Logo: "l"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	expect(t, teams, event.TopicTeams)

	if _, err := repos.State.Init(ctx, store.DefaultState()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	expect(t, state, event.TopicAuctionState)

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-teams:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("feed channel not closed after cancel")
		}
	}
}

func expect(t *testing.T, ch <-chan event.Notification, topic event.Topic) {
	t.Helper()
	select {
	case n := <-ch:
		if n.Topic != topic {
			t.Errorf("notification topic = %q, want %q", n.Topic, topic)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no %q notification within 5s", topic)
	}
}
