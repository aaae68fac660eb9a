package draft_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jensholdgaard/draft-auction/internal/draft"
)

func TestCreateTeamOwner(t *testing.T) {
	h := newHarness(t)
	teams := h.addTeams(2)

	if teams[0].ID != 1 || teams[1].ID != 2 {
		t.Errorf("team ids = %d, %d, want 1, 2", teams[0].ID, teams[1].ID)
	}
	if teams[0].Color != draft.DefaultTeamColor || teams[0].Logo != draft.DefaultTeamLogo {
		t.Errorf("appearance = %q/%q, want defaults", teams[0].Color, teams[0].Logo)
	}

	s := h.eng.Snapshot()
	if len(s.Accounts) != 3 {
		t.Fatalf("accounts = %d, want 3 (admin + 2 owners)", len(s.Accounts))
	}
	owner := s.Accounts[2]
	if owner.Role != draft.AccountTeamOwner || owner.TeamID == nil || *owner.TeamID != 2 {
		t.Errorf("owner account = %+v, want team_owner of team 2", owner)
	}

	stored, err := h.repos.Teams.List(h.ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("stored teams = %d, want 2", len(stored))
	}

	h.eng.Logout(h.ctx)
	if err := h.eng.Login(h.ctx, "owner2", "pw"); err != nil {
		t.Errorf("Login(owner2) error = %v", err)
	}
}

func TestCreateTeamOwner_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		in      draft.TeamOwnerInput
		wantErr error
	}{
		{
			name:    "duplicate username",
			in:      draft.TeamOwnerInput{TeamName: "X", OwnerName: "X", Username: "OWNER1", Password: "pw", CaptainRole: draft.RoleStaff},
			wantErr: draft.ErrUsernameTaken,
		},
		{
			name:    "missing password",
			in:      draft.TeamOwnerInput{TeamName: "X", OwnerName: "X", Username: "x", CaptainRole: draft.RoleStaff},
			wantErr: draft.ErrInvalidInput,
		},
		{
			name:    "contractual captain",
			in:      draft.TeamOwnerInput{TeamName: "X", OwnerName: "X", Username: "x", Password: "pw", CaptainRole: draft.RoleContractual},
			wantErr: draft.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addTeams(1)

			_, err := h.eng.CreateTeamOwner(h.ctx, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateTeamOwner() error = %v, want %v", err, tt.wantErr)
			}
			if got := len(h.eng.Snapshot().Teams); got != 1 {
				t.Errorf("teams = %d, want 1", got)
			}
		})
	}
}

func TestUpdateTeamOwner(t *testing.T) {
	h := newHarness(t)
	h.addTeams(1)

	err := h.eng.UpdateTeamOwner(h.ctx, 1, draft.TeamOwnerUpdate{
		TeamName:  "Renamed",
		OwnerName: "New Owner",
		Username:  "captain",
	})
	if err != nil {
		t.Fatalf("UpdateTeamOwner() error = %v", err)
	}
	team, _ := teamByID(h.eng.Snapshot(), 1)
	if team.Name != "Renamed" || team.Owner != "New Owner" {
		t.Errorf("team = %q/%q, want Renamed/New Owner", team.Name, team.Owner)
	}

	// Omitted password keeps the old one.
	h.login("captain", "pw")

	h.asAdmin()
	newPassword := "secret"
	if err := h.eng.UpdateTeamOwner(h.ctx, 1, draft.TeamOwnerUpdate{
		TeamName: "Renamed", OwnerName: "New Owner", Username: "captain", Password: &newPassword,
	}); err != nil {
		t.Fatalf("UpdateTeamOwner() error = %v", err)
	}
	h.eng.Logout(h.ctx)
	if err := h.eng.Login(h.ctx, "captain", "pw"); !errors.Is(err, draft.ErrInvalidCredentials) {
		t.Errorf("Login(old password) error = %v, want ErrInvalidCredentials", err)
	}
	h.login("captain", "secret")

	h.asAdmin()
	if err := h.eng.UpdateTeamOwner(h.ctx, 42, draft.TeamOwnerUpdate{TeamName: "a", OwnerName: "b", Username: "c"}); !errors.Is(err, draft.ErrNotFound) {
		t.Errorf("UpdateTeamOwner(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTeamOwner_ReturnsRosterToPool(t *testing.T) {
	h := newHarness(t)
	teams := h.addTeams(1)
	players := h.addPlayers("Mia", "Carl", "Zed", "Anna")
	h.asAdmin()
	if err := h.eng.StartAuction(h.ctx); err != nil {
		t.Fatalf("StartAuction() error = %v", err)
	}

	// Two rounds with one team: Zed then Carl.
	h.roll()
	h.draftAs(teams[0].ID, players[2].ID)
	h.asAdmin()
	if err := h.eng.NextRound(h.ctx); err != nil {
		t.Fatalf("NextRound() error = %v", err)
	}
	h.roll()
	h.draftAs(teams[0].ID, players[1].ID)

	before := h.eng.Snapshot()
	team, _ := teamByID(before, teams[0].ID)
	if len(team.Players) != 2 {
		t.Fatalf("roster = %v, want 2 players", names(team.Players))
	}

	h.asAdmin()
	if err := h.eng.DeleteTeamOwner(h.ctx, teams[0].ID); err != nil {
		t.Fatalf("DeleteTeamOwner() error = %v", err)
	}
	s := h.eng.Snapshot()
	if diff := cmp.Diff([]string{"Anna", "Carl", "Mia", "Zed"}, names(s.AvailablePlayers)); diff != "" {
		t.Errorf("available (-want +got):\n%s", diff)
	}
	if len(s.AvailablePlayers) != len(before.AvailablePlayers)+2 {
		t.Errorf("available grew by %d, want 2", len(s.AvailablePlayers)-len(before.AvailablePlayers))
	}
	if _, ok := teamByID(s, teams[0].ID); ok {
		t.Error("team still listed after delete")
	}
	for _, a := range s.Accounts {
		if a.TeamID != nil && *a.TeamID == teams[0].ID {
			t.Errorf("account %q still paired with deleted team", a.Username)
		}
	}

	records, err := h.repos.Players.List(h.ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, r := range records {
		if r.DraftedToTeamID != nil {
			t.Errorf("player %d still drafted to team %d in store", r.ID, *r.DraftedToTeamID)
		}
	}
	users, err := h.repos.Users.List(h.ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 1 {
		t.Errorf("stored users = %d, want only the admin", len(users))
	}
}

func TestDeleteTeamOwner_DrawnTeamLeavesRound(t *testing.T) {
	t.Run("before picking", func(t *testing.T) {
		h := newHarness(t)
		teams := h.addTeams(2)
		players := h.addPlayers("Amy", "Bob")
		h.roll()
		h.roll()

		h.asAdmin()
		if err := h.eng.DeleteTeamOwner(h.ctx, teams[0].ID); err != nil {
			t.Fatalf("DeleteTeamOwner() error = %v", err)
		}
		s := h.eng.Snapshot()
		if s.PickingTeam == nil || s.PickingTeam.ID != teams[1].ID {
			t.Fatalf("PickingTeam = %+v, want team %d", s.PickingTeam, teams[1].ID)
		}

		h.draftAs(teams[1].ID, players[0].ID)
		h.asAdmin()
		if err := h.eng.NextRound(h.ctx); err != nil {
			t.Fatalf("NextRound() error = %v", err)
		}
		if got := h.eng.Snapshot().CurrentRound; got != 2 {
			t.Errorf("CurrentRound = %d, want 2", got)
		}
	})

	t.Run("after picking", func(t *testing.T) {
		h := newHarness(t)
		teams := h.addTeams(2)
		players := h.addPlayers("Amy", "Bob")
		h.roll()
		h.roll()
		h.draftAs(teams[0].ID, players[0].ID)

		h.asAdmin()
		if err := h.eng.DeleteTeamOwner(h.ctx, teams[0].ID); err != nil {
			t.Fatalf("DeleteTeamOwner() error = %v", err)
		}
		s := h.eng.Snapshot()
		if len(s.RoundOrder) != 1 || s.RoundOrder[0].ID != teams[1].ID || s.TurnIndex != 0 {
			t.Errorf("order/turn = %+v/%d, want [team %d]/0", s.RoundOrder, s.TurnIndex, teams[1].ID)
		}
		if s.CanUndo || s.Announcement != nil {
			t.Error("undo entry or announcement still refers to the deleted team")
		}
		if diff := cmp.Diff([]string{"Amy", "Bob"}, names(s.AvailablePlayers)); diff != "" {
			t.Errorf("available (-want +got):\n%s", diff)
		}

		stored, err := h.repos.State.Get(h.ctx)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if diff := cmp.Diff([]int{teams[1].ID}, stored.RoundOrder); diff != "" {
			t.Errorf("stored order (-want +got):\n%s", diff)
		}
		if stored.TurnIndex != 0 || stored.UndoTeamID != nil || stored.AnnounceTeamID != nil {
			t.Errorf("stored state = %+v, want no references to the deleted team", stored)
		}
	})

	t.Run("during the draw", func(t *testing.T) {
		h := newHarness(t)
		teams := h.addTeams(2)
		h.start()
		h.asAdmin()
		drawn, err := h.eng.RollForNextPick(h.ctx)
		if err != nil {
			t.Fatalf("RollForNextPick() error = %v", err)
		}
		if err := h.eng.DeleteTeamOwner(h.ctx, drawn.ID); err != nil {
			t.Fatalf("DeleteTeamOwner() error = %v", err)
		}
		if s := h.eng.Snapshot(); s.IsRolling || s.DiceResult != nil {
			t.Errorf("rolling/dice = %v/%v, want the draw discarded", s.IsRolling, s.DiceResult)
		}

		h.clk.Advance(3 * time.Second)
		next := h.roll()
		if next.ID != teams[1].ID {
			t.Errorf("next draw = team %d, want %d", next.ID, teams[1].ID)
		}
		if got := h.eng.Snapshot().RoundOrder; len(got) != 1 {
			t.Errorf("RoundOrder = %+v, want only the remaining team", got)
		}
	})
}
