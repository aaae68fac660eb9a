package draft_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/draft"
	"github.com/jensholdgaard/draft-auction/internal/store"
	"github.com/jensholdgaard/draft-auction/internal/store/memstore"
)

// --- test helpers ---

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "plain:" + pw, nil }
func (plainHasher) Compare(hash, pw string) bool  { return hash == "plain:"+pw }

var epoch = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	t     *testing.T
	ctx   context.Context
	clk   clock.Mock
	store *memstore.Store
	repos *store.Repositories
	eng   *draft.Engine
}

func newHarness(t *testing.T, mutate ...func(*draft.Options)) *harness {
	t.Helper()
	clk := clock.NewMock(epoch)
	st := memstore.New(clk)
	h := &harness{t: t, ctx: context.Background(), clk: clk, store: st, repos: st.Repositories()}
	h.eng = h.newEngine(h.repos, mutate...)
	return h
}

func (h *harness) newEngine(repos *store.Repositories, mutate ...func(*draft.Options)) *draft.Engine {
	h.t.Helper()
	opts := draft.DefaultOptions()
	opts.IntN = func(int) int { return 0 }
	for _, m := range mutate {
		m(&opts)
	}
	e := draft.NewEngine(repos, plainHasher{}, opts, slog.Default(), noop.NewTracerProvider(), metricnoop.NewMeterProvider(), h.clk)
	if err := e.Bootstrap(h.ctx); err != nil {
		h.t.Fatalf("Bootstrap() error = %v", err)
	}
	return e
}

func (h *harness) login(username, password string) {
	h.t.Helper()
	h.eng.Logout(h.ctx)
	if err := h.eng.Login(h.ctx, username, password); err != nil {
		h.t.Fatalf("Login(%q) error = %v", username, err)
	}
}

func (h *harness) asAdmin() { h.login("admin", "password") }

func (h *harness) asOwner(teamID int) { h.login(fmt.Sprintf("owner%d", teamID), "pw") }

// addTeams creates n teams; team i is owned by "owner<i>" with password "pw".
func (h *harness) addTeams(n int) []draft.Team {
	h.t.Helper()
	h.asAdmin()
	teams := make([]draft.Team, 0, n)
	for i := 1; i <= n; i++ {
		team, err := h.eng.CreateTeamOwner(h.ctx, draft.TeamOwnerInput{
			TeamName:    fmt.Sprintf("Team %d", i),
			OwnerName:   fmt.Sprintf("Owner %d", i),
			Username:    fmt.Sprintf("owner%d", i),
			Password:    "pw",
			CaptainRole: draft.RoleStaff,
		})
		if err != nil {
			h.t.Fatalf("CreateTeamOwner() error = %v", err)
		}
		teams = append(teams, team)
	}
	return teams
}

func (h *harness) addPlayers(names ...string) []draft.Player {
	h.t.Helper()
	h.asAdmin()
	players := make([]draft.Player, 0, len(names))
	for _, name := range names {
		p, err := h.eng.CreatePlayer(h.ctx, name, draft.RoleTechnician)
		if err != nil {
			h.t.Fatalf("CreatePlayer(%q) error = %v", name, err)
		}
		players = append(players, p)
	}
	return players
}

// start moves the auction to running unless it already is.
func (h *harness) start() {
	h.t.Helper()
	if h.eng.Snapshot().Phase == draft.PhaseRunning {
		return
	}
	h.asAdmin()
	if err := h.eng.StartAuction(h.ctx); err != nil {
		h.t.Fatalf("StartAuction() error = %v", err)
	}
}

// roll draws one team as admin and waits for the draw to commit, starting
// the auction first if needed.
func (h *harness) roll() draft.Team {
	h.t.Helper()
	h.start()
	h.asAdmin()
	before := len(h.eng.Snapshot().RoundOrder)
	team, err := h.eng.RollForNextPick(h.ctx)
	if err != nil {
		h.t.Fatalf("RollForNextPick() error = %v", err)
	}
	h.clk.Advance(2500 * time.Millisecond)
	waitFor(h.t, "draw to commit", func() bool {
		s := h.eng.Snapshot()
		return len(s.RoundOrder) == before+1 && !s.IsRolling
	})
	return team
}

func (h *harness) draftAs(teamID, playerID int) {
	h.t.Helper()
	h.asOwner(teamID)
	if err := h.eng.DraftPlayer(h.ctx, playerID); err != nil {
		h.t.Fatalf("DraftPlayer(%d) as team %d error = %v", playerID, teamID, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func names(ps []draft.Player) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func teamByID(s draft.Snapshot, id int) (draft.Team, bool) {
	for _, t := range s.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return draft.Team{}, false
}

// failingState fails every write to the auction state record.
type failingState struct {
	store.StateRepository
	err error
}

func (f failingState) Put(context.Context, *store.AuctionState) error { return f.err }
