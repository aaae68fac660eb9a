package draft

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jensholdgaard/draft-auction/internal/store"
)

func TestReconcilePlayers(t *testing.T) {
	team1, team9 := 1, 9
	records := []store.Player{
		{ID: 1, Name: "Zed", Role: "Staff", DraftedToTeamID: &team1},
		{ID: 2, Name: "amy", Role: "Technician"},
		{ID: 3, Name: "Bob", Role: "Staff", DraftedToTeamID: &team1},
		{ID: 4, Name: "Ann", Role: "Contractual Worker", DraftedToTeamID: &team9},
	}

	set := ReconcilePlayers(records, []int{1, 2})

	wantMaster := []Player{
		{ID: 2, Name: "amy", Role: RoleTechnician},
		{ID: 4, Name: "Ann", Role: RoleContractual},
		{ID: 3, Name: "Bob", Role: RoleStaff},
		{ID: 1, Name: "Zed", Role: RoleStaff},
	}
	if diff := cmp.Diff(wantMaster, set.Master); diff != "" {
		t.Errorf("Master (-want +got):\n%s", diff)
	}
	// Ann is drafted to a team this client does not know and stays available.
	wantAvailable := []Player{
		{ID: 2, Name: "amy", Role: RoleTechnician},
		{ID: 4, Name: "Ann", Role: RoleContractual},
	}
	if diff := cmp.Diff(wantAvailable, set.Available); diff != "" {
		t.Errorf("Available (-want +got):\n%s", diff)
	}
	wantRosters := map[int][]Player{
		1: {{ID: 3, Name: "Bob", Role: RoleStaff}, {ID: 1, Name: "Zed", Role: RoleStaff}},
		2: {},
	}
	if diff := cmp.Diff(wantRosters, set.Rosters); diff != "" {
		t.Errorf("Rosters (-want +got):\n%s", diff)
	}
}

func TestReconcileTeams(t *testing.T) {
	amy := Player{ID: 1, Name: "Amy", Role: RoleStaff}
	bob := Player{ID: 2, Name: "Bob", Role: RoleStaff}
	prev := []Team{
		{ID: 1, Name: "Old", Players: []Player{amy}},
		{ID: 2, Name: "Gone", Players: []Player{bob}},
	}
	records := []store.Team{
		{ID: 1, Name: "Renamed", Owner: "O", CaptainRole: "Staff", Color: "bg-red-500", Logo: "bolt"},
		{ID: 3, Name: "New", Owner: "N", CaptainRole: "Technician", Color: "bg-gray-500", Logo: "star"},
	}

	teams, orphans := ReconcileTeams(records, prev)

	want := []Team{
		{ID: 1, Name: "Renamed", Owner: "O", CaptainRole: RoleStaff, Color: "bg-red-500", Logo: "bolt", Players: []Player{amy}},
		{ID: 3, Name: "New", Owner: "N", CaptainRole: RoleTechnician, Color: "bg-gray-500", Logo: "star", Players: []Player{}},
	}
	if diff := cmp.Diff(want, teams); diff != "" {
		t.Errorf("teams (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Player{bob}, orphans); diff != "" {
		t.Errorf("orphans (-want +got):\n%s", diff)
	}
}

func TestSharedFromRecord(t *testing.T) {
	p, tm := 7, 2
	tests := []struct {
		name string
		rec  *store.AuctionState
		want shared
	}{
		{
			name: "default",
			rec:  store.DefaultState(),
			want: shared{Phase: PhaseLobby, Round: 1, Order: []int{}},
		},
		{
			name: "running with announcement and undo",
			rec: &store.AuctionState{
				CurrentRound: 3, RoundOrder: []int{2, 1}, TurnIndex: 1, Phase: "running",
				AnnouncePlayerID: &p, AnnounceTeamID: &tm, UndoPlayerID: &p, UndoTeamID: &tm,
			},
			want: shared{
				Phase: PhaseRunning, Round: 3, Order: []int{2, 1}, TurnIndex: 1,
				Announce: &pick{PlayerID: 7, TeamID: 2}, Undo: &pick{PlayerID: 7, TeamID: 2},
			},
		},
		{
			name: "out of range values are clamped",
			rec:  &store.AuctionState{CurrentRound: 0, RoundOrder: []int{1}, TurnIndex: 5, Phase: "bogus"},
			want: shared{Phase: PhaseLobby, Round: 1, Order: []int{1}, TurnIndex: 1},
		},
		{
			name: "half an announcement is ignored",
			rec:  &store.AuctionState{CurrentRound: 1, Phase: "lobby", AnnouncePlayerID: &p},
			want: shared{Phase: PhaseLobby, Round: 1, Order: []int{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sharedFromRecord(tt.rec)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("sharedFromRecord() (-want +got):\n%s", diff)
			}
			if !got.equal(sharedFromRecord(got.record())) {
				t.Error("record() does not carry every shared field")
			}
		})
	}
}

func TestShared_RoundComplete(t *testing.T) {
	tests := []struct {
		order []int
		turn  int
		want  bool
	}{
		{order: nil, turn: 0, want: false},
		{order: []int{1, 2}, turn: 1, want: false},
		{order: []int{1, 2}, turn: 2, want: true},
		{order: []int{1}, turn: 1, want: true},
	}
	for _, tt := range tests {
		s := shared{Order: tt.order, TurnIndex: tt.turn}
		if got := s.roundComplete(); got != tt.want {
			t.Errorf("roundComplete(order=%v, turn=%d) = %v, want %v", tt.order, tt.turn, got, tt.want)
		}
	}
}
