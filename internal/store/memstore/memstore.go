// Package memstore provides the "memory" store.Driver: a shared store held in
// process memory. Every Open call returns repositories over the same data, so
// several engines in one process observe each other's writes through the feed.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

func init() {
	store.Register("memory", openMemory)
}

var (
	sharedOnce sync.Once
	shared     *Store
)

// openMemory is the store.Driver for the "memory" backend.
func openMemory(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	sharedOnce.Do(func() { shared = New(clk) })
	return shared.Repositories(), nil
}

// Store is an in-memory shared store. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	players map[int]store.Player
	teams   map[int]store.Team
	users   map[int]store.User
	state   *store.AuctionState

	broker *store.Broker
	clock  clock.Clock
}

// New returns an empty Store.
func New(clk clock.Clock) *Store {
	return &Store{
		players: make(map[int]store.Player),
		teams:   make(map[int]store.Team),
		users:   make(map[int]store.User),
		broker:  store.NewBroker(),
		clock:   clk,
	}
}

// Repositories returns repository views over s.
func (s *Store) Repositories() *store.Repositories {
	return &store.Repositories{
		Players: (*PlayerRepo)(s),
		Teams:   (*TeamRepo)(s),
		Users:   (*UserRepo)(s),
		State:   (*StateRepo)(s),
		Feed:    s.broker,
		Closer:  store.CloserFunc(func() error { return nil }),
		Ping:    func(context.Context) error { return nil },
	}
}

func (s *Store) notify(topic event.Topic, op event.Op) {
	s.broker.Publish(event.Notification{Topic: topic, Op: op})
}

func clonePlayer(p store.Player) store.Player {
	if p.DraftedToTeamID != nil {
		id := *p.DraftedToTeamID
		p.DraftedToTeamID = &id
	}
	return p
}

// PlayerRepo implements store.PlayerRepository.
type PlayerRepo Store

func (r *PlayerRepo) Create(_ context.Context, p *store.Player) error {
	s := (*Store)(r)
	s.mu.Lock()
	if _, ok := s.players[p.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("player %d already exists", p.ID)
	}
	s.players[p.ID] = clonePlayer(*p)
	s.mu.Unlock()
	s.notify(event.TopicPlayers, event.OpInsert)
	return nil
}

func (r *PlayerRepo) List(_ context.Context) ([]store.Player, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, clonePlayer(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *PlayerRepo) Update(_ context.Context, p *store.Player) error {
	s := (*Store)(r)
	s.mu.Lock()
	cur, ok := s.players[p.ID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("player %d: %w", p.ID, store.ErrNotFound)
	}
	cur.Name = p.Name
	cur.Role = p.Role
	s.players[p.ID] = cur
	s.mu.Unlock()
	s.notify(event.TopicPlayers, event.OpUpdate)
	return nil
}

func (r *PlayerRepo) Delete(_ context.Context, id int) error {
	s := (*Store)(r)
	s.mu.Lock()
	if _, ok := s.players[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("player %d: %w", id, store.ErrNotFound)
	}
	delete(s.players, id)
	s.mu.Unlock()
	s.notify(event.TopicPlayers, event.OpDelete)
	return nil
}

func (r *PlayerRepo) SetDraftedTo(_ context.Context, id int, teamID *int) error {
	s := (*Store)(r)
	s.mu.Lock()
	cur, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("player %d: %w", id, store.ErrNotFound)
	}
	cur.DraftedToTeamID = nil
	if teamID != nil {
		tid := *teamID
		cur.DraftedToTeamID = &tid
	}
	s.players[id] = cur
	s.mu.Unlock()
	s.notify(event.TopicPlayers, event.OpUpdate)
	return nil
}

func (r *PlayerRepo) ClearDrafted(_ context.Context) error {
	s := (*Store)(r)
	s.mu.Lock()
	for id, p := range s.players {
		p.DraftedToTeamID = nil
		s.players[id] = p
	}
	s.mu.Unlock()
	s.notify(event.TopicPlayers, event.OpUpdate)
	return nil
}

// TeamRepo implements store.TeamRepository.
type TeamRepo Store

func (r *TeamRepo) Create(_ context.Context, t *store.Team) error {
	s := (*Store)(r)
	s.mu.Lock()
	if _, ok := s.teams[t.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("team %d already exists", t.ID)
	}
	s.teams[t.ID] = *t
	s.mu.Unlock()
	s.notify(event.TopicTeams, event.OpInsert)
	return nil
}

func (r *TeamRepo) List(_ context.Context) ([]store.Team, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *TeamRepo) Update(_ context.Context, t *store.Team) error {
	s := (*Store)(r)
	s.mu.Lock()
	if _, ok := s.teams[t.ID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("team %d: %w", t.ID, store.ErrNotFound)
	}
	s.teams[t.ID] = *t
	s.mu.Unlock()
	s.notify(event.TopicTeams, event.OpUpdate)
	return nil
}

func (r *TeamRepo) Delete(_ context.Context, id int) error {
	s := (*Store)(r)
	s.mu.Lock()
	if _, ok := s.teams[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("team %d: %w", id, store.ErrNotFound)
	}
	delete(s.teams, id)
	s.mu.Unlock()
	s.notify(event.TopicTeams, event.OpDelete)
	return nil
}

// UserRepo implements store.UserRepository.
type UserRepo Store

func (r *UserRepo) Create(_ context.Context, u *store.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	if _, ok := s.users[u.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("user %d already exists", u.ID)
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			s.mu.Unlock()
			return fmt.Errorf("username %q already taken", u.Username)
		}
	}
	s.users[u.ID] = *u
	s.mu.Unlock()
	s.notify(event.TopicUsers, event.OpInsert)
	return nil
}

func (r *UserRepo) List(_ context.Context) ([]store.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepo) Update(_ context.Context, u *store.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	if _, ok := s.users[u.ID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("user %d: %w", u.ID, store.ErrNotFound)
	}
	s.users[u.ID] = *u
	s.mu.Unlock()
	s.notify(event.TopicUsers, event.OpUpdate)
	return nil
}

func (r *UserRepo) DeleteByTeam(_ context.Context, teamID int) error {
	s := (*Store)(r)
	s.mu.Lock()
	for id, u := range s.users {
		if u.TeamID != nil && *u.TeamID == teamID {
			delete(s.users, id)
		}
	}
	s.mu.Unlock()
	s.notify(event.TopicUsers, event.OpDelete)
	return nil
}

// StateRepo implements store.StateRepository.
type StateRepo Store

func cloneState(st *store.AuctionState) *store.AuctionState {
	c := *st
	c.RoundOrder = slices.Clone(st.RoundOrder)
	if c.RoundOrder == nil {
		c.RoundOrder = []int{}
	}
	c.DiceTeamID = cloneInt(st.DiceTeamID)
	c.AnnouncePlayerID = cloneInt(st.AnnouncePlayerID)
	c.AnnounceTeamID = cloneInt(st.AnnounceTeamID)
	c.UndoPlayerID = cloneInt(st.UndoPlayerID)
	c.UndoTeamID = cloneInt(st.UndoTeamID)
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (r *StateRepo) Get(_ context.Context) (*store.AuctionState, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, store.ErrNotFound
	}
	return cloneState(s.state), nil
}

func (r *StateRepo) Put(_ context.Context, st *store.AuctionState) error {
	s := (*Store)(r)
	s.mu.Lock()
	op := event.OpUpdate
	if s.state == nil {
		op = event.OpInsert
	}
	st.UpdatedAt = s.clock.Now().UTC()
	s.state = cloneState(st)
	s.mu.Unlock()
	s.notify(event.TopicAuctionState, op)
	return nil
}

func (r *StateRepo) Init(_ context.Context, st *store.AuctionState) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	if s.state != nil {
		s.mu.Unlock()
		return false, nil
	}
	st.UpdatedAt = s.clock.Now().UTC()
	s.state = cloneState(st)
	s.mu.Unlock()
	s.notify(event.TopicAuctionState, event.OpInsert)
	return true, nil
}
