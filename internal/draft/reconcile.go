package draft

import (
	"slices"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jensholdgaard/draft-auction/internal/store"
)

// pick identifies a drafted player and the team that drafted it.
type pick struct {
	PlayerID int
	TeamID   int
}

// shared is the subset of engine state mirrored by the auction state record.
// Teams and players are referenced by id and resolved on read.
type shared struct {
	Phase     Phase
	Round     int
	Order     []int
	TurnIndex int
	Rolling   bool
	Dice      *int
	Announce  *pick
	Undo      *pick
}

func (s shared) roundComplete() bool {
	return len(s.Order) > 0 && s.TurnIndex >= len(s.Order)
}

// resetRound clears the per-round fields.
func (s *shared) resetRound() {
	s.Order = []int{}
	s.TurnIndex = 0
	s.Dice = nil
	s.Rolling = false
	s.Announce = nil
}

func (s shared) equal(o shared) bool {
	return s.Phase == o.Phase &&
		s.Round == o.Round &&
		slices.Equal(s.Order, o.Order) &&
		s.TurnIndex == o.TurnIndex &&
		s.Rolling == o.Rolling &&
		equalInt(s.Dice, o.Dice) &&
		equalPick(s.Announce, o.Announce) &&
		equalPick(s.Undo, o.Undo)
}

func (s shared) record() *store.AuctionState {
	rec := &store.AuctionState{
		CurrentRound: s.Round,
		RoundOrder:   slices.Clone(s.Order),
		TurnIndex:    s.TurnIndex,
		IsRolling:    s.Rolling,
		DiceTeamID:   copyInt(s.Dice),
		Phase:        string(s.Phase),
	}
	if rec.RoundOrder == nil {
		rec.RoundOrder = []int{}
	}
	if a := s.Announce; a != nil {
		rec.AnnouncePlayerID, rec.AnnounceTeamID = intPtr(a.PlayerID), intPtr(a.TeamID)
	}
	if u := s.Undo; u != nil {
		rec.UndoPlayerID, rec.UndoTeamID = intPtr(u.PlayerID), intPtr(u.TeamID)
	}
	return rec
}

// sharedFromRecord converts the auction state record into engine fields. A
// record without a phase or round is treated as the default state.
func sharedFromRecord(rec *store.AuctionState) shared {
	s := shared{
		Phase:     Phase(rec.Phase),
		Round:     rec.CurrentRound,
		Order:     slices.Clone(rec.RoundOrder),
		TurnIndex: rec.TurnIndex,
		Rolling:   rec.IsRolling,
		Dice:      copyInt(rec.DiceTeamID),
	}
	switch s.Phase {
	case PhaseLobby, PhaseRunning, PhaseEnded:
	default:
		s.Phase = PhaseLobby
	}
	if s.Round < 1 {
		s.Round = 1
	}
	if s.Order == nil {
		s.Order = []int{}
	}
	s.TurnIndex = max(0, min(s.TurnIndex, len(s.Order)))
	if rec.AnnouncePlayerID != nil && rec.AnnounceTeamID != nil {
		s.Announce = &pick{PlayerID: *rec.AnnouncePlayerID, TeamID: *rec.AnnounceTeamID}
	}
	if rec.UndoPlayerID != nil && rec.UndoTeamID != nil {
		s.Undo = &pick{PlayerID: *rec.UndoPlayerID, TeamID: *rec.UndoTeamID}
	}
	return s
}

// PlayerSet is the result of rebuilding player membership from the store.
type PlayerSet struct {
	Master    []Player
	Available []Player
	// Rosters maps team id to its roster, sorted by name.
	Rosters map[int][]Player
}

// ReconcilePlayers rebuilds the master list, the available pool and every
// roster from the full set of player records. Players drafted to a team
// that is not in teamIDs are returned to the available pool.
func ReconcilePlayers(records []store.Player, teamIDs []int) PlayerSet {
	set := PlayerSet{
		Master:    make([]Player, 0, len(records)),
		Available: []Player{},
		Rosters:   make(map[int][]Player, len(teamIDs)),
	}
	for _, id := range teamIDs {
		set.Rosters[id] = []Player{}
	}
	for _, r := range records {
		p := Player{ID: r.ID, Name: r.Name, Role: Role(r.Role)}
		set.Master = append(set.Master, p)
		if r.DraftedToTeamID != nil {
			if roster, ok := set.Rosters[*r.DraftedToTeamID]; ok {
				set.Rosters[*r.DraftedToTeamID] = append(roster, p)
				continue
			}
		}
		set.Available = append(set.Available, p)
	}

	c := newCollator()
	sortByName(c, set.Master)
	sortByName(c, set.Available)
	for _, roster := range set.Rosters {
		sortByName(c, roster)
	}
	return set
}

// ReconcileTeams rebuilds the team list from team records, keeping the
// rosters of teams present in prev. Players on teams that no longer exist
// are returned as orphans.
func ReconcileTeams(records []store.Team, prev []Team) (teams []Team, orphans []Player) {
	rosters := make(map[int][]Player, len(prev))
	for _, t := range prev {
		rosters[t.ID] = t.Players
	}
	teams = make([]Team, 0, len(records))
	for _, r := range records {
		roster := slices.Clone(rosters[r.ID])
		if roster == nil {
			roster = []Player{}
		}
		delete(rosters, r.ID)
		teams = append(teams, Team{
			ID:          r.ID,
			Name:        r.Name,
			Owner:       r.Owner,
			Players:     roster,
			CaptainRole: Role(r.CaptainRole),
			Color:       r.Color,
			Logo:        r.Logo,
		})
	}
	for _, t := range prev {
		if roster, ok := rosters[t.ID]; ok {
			orphans = append(orphans, roster...)
		}
	}
	return teams, orphans
}

// ReconcileAccounts converts account records.
func ReconcileAccounts(records []store.User) []Account {
	out := make([]Account, 0, len(records))
	for _, r := range records {
		out = append(out, Account{
			ID:           r.ID,
			Username:     r.Username,
			PasswordHash: r.PasswordHash,
			Role:         AccountRole(r.Role),
			TeamID:       copyInt(r.TeamID),
		})
	}
	return out
}

// newCollator returns a collator for ordering player names. Collators are
// not safe for concurrent use.
func newCollator() *collate.Collator {
	return collate.New(language.Und)
}

func sortByName(c *collate.Collator, ps []Player) {
	sort.SliceStable(ps, func(i, j int) bool {
		if n := c.CompareString(ps[i].Name, ps[j].Name); n != 0 {
			return n < 0
		}
		return ps[i].ID < ps[j].ID
	})
}

func sortByID(ps []Player) {
	slices.SortFunc(ps, func(a, b Player) int { return a.ID - b.ID })
}

func intPtr(v int) *int { return &v }

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	return intPtr(*p)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalPick(a, b *pick) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
