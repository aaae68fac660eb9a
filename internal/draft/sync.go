package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// Bootstrap loads teams, accounts, players and the auction state from the
// store. It seeds the administrator account and initialises the state
// record when they do not exist yet.
func (e *Engine) Bootstrap(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "Engine.Bootstrap")
	defer span.End()

	teams, err := e.teamRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading teams: %w", err)
	}
	users, err := e.users.List(ctx)
	if err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}
	if !slices.ContainsFunc(users, func(u store.User) bool { return u.Role == string(AccountAdmin) }) {
		admin, err := e.seedAdmin(ctx, users)
		if err != nil {
			return err
		}
		users = append(users, admin)
	}
	players, err := e.players.List(ctx)
	if err != nil {
		return fmt.Errorf("loading players: %w", err)
	}
	rec, err := e.loadState(ctx)
	if err != nil {
		return err
	}

	e.applyTeams(teams)
	e.applyAccounts(users)
	e.applyPlayers(players)
	e.applyState(rec)

	e.logger.InfoContext(ctx, "engine bootstrapped",
		slog.Int("teams", len(teams)),
		slog.Int("accounts", len(users)),
		slog.Int("players", len(players)),
		slog.String("phase", rec.Phase),
	)
	return nil
}

func (e *Engine) seedAdmin(ctx context.Context, users []store.User) (store.User, error) {
	hash, err := e.hasher.Hash(e.opts.AdminPassword)
	if err != nil {
		return store.User{}, fmt.Errorf("hashing admin password: %w", err)
	}
	id := 0
	for _, u := range users {
		id = max(id, u.ID)
	}
	admin := store.User{
		ID:           id + 1,
		Username:     e.opts.AdminUsername,
		PasswordHash: hash,
		Role:         string(AccountAdmin),
	}
	if err := e.users.Create(ctx, &admin); err != nil {
		return store.User{}, fmt.Errorf("seeding admin account: %w", err)
	}
	e.logger.InfoContext(ctx, "admin account seeded", slog.String("username", admin.Username))
	return admin, nil
}

// loadState reads the auction state record, initialising it with defaults
// when it does not exist.
func (e *Engine) loadState(ctx context.Context) (*store.AuctionState, error) {
	rec, err := e.state.Get(ctx)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading auction state: %w", err)
	}
	created, err := e.state.Init(ctx, store.DefaultState())
	if err != nil {
		return nil, fmt.Errorf("initialising auction state: %w", err)
	}
	if created {
		e.logger.InfoContext(ctx, "auction state initialised")
	}
	rec, err = e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading auction state: %w", err)
	}
	return rec, nil
}

// Run consumes the change feed until ctx is done. Every notification causes
// the whole topic to be re-read and reconciled onto local state; this
// client's own writes come back the same way.
func (e *Engine) Run(ctx context.Context) error {
	subscribe := func(t event.Topic) (<-chan event.Notification, error) {
		ch, err := e.feed.Subscribe(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("subscribing to %s: %w", t, err)
		}
		return ch, nil
	}
	stateCh, err := subscribe(event.TopicAuctionState)
	if err != nil {
		return err
	}
	playersCh, err := subscribe(event.TopicPlayers)
	if err != nil {
		return err
	}
	teamsCh, err := subscribe(event.TopicTeams)
	if err != nil {
		return err
	}
	usersCh, err := subscribe(event.TopicUsers)
	if err != nil {
		return err
	}

	// Changes between Bootstrap and the subscriptions would otherwise be missed.
	for _, t := range event.Topics() {
		e.Refresh(ctx, t)
	}

	e.logger.InfoContext(ctx, "sync bridge running")
	for {
		var (
			n  event.Notification
			ok bool
		)
		select {
		case <-ctx.Done():
			return nil
		case n, ok = <-stateCh:
		case n, ok = <-playersCh:
		case n, ok = <-teamsCh:
		case n, ok = <-usersCh:
		}
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return errors.New("change feed closed")
		}
		e.Refresh(ctx, n.Topic)
	}
}

// Refresh re-reads one topic from the store and applies it to local state.
// Read failures are reported through the advisory message.
func (e *Engine) Refresh(ctx context.Context, topic event.Topic) {
	ctx, span := e.tracer.Start(ctx, "Engine.Refresh",
		trace.WithAttributes(attribute.String("topic", string(topic))),
	)
	defer span.End()

	op := "refresh " + string(topic)
	switch topic {
	case event.TopicAuctionState:
		rec, err := e.state.Get(ctx)
		if errors.Is(err, store.ErrNotFound) {
			if _, err := e.state.Init(ctx, store.DefaultState()); err != nil {
				e.syncFailed(ctx, op, string(topic), err)
			}
			return
		}
		if err != nil {
			e.syncFailed(ctx, op, string(topic), err)
			return
		}
		e.applyState(rec)
	case event.TopicPlayers:
		players, err := e.players.List(ctx)
		if err != nil {
			e.syncFailed(ctx, op, string(topic), err)
			return
		}
		e.applyPlayers(players)
	case event.TopicTeams:
		teams, err := e.teamRepo.List(ctx)
		if err != nil {
			e.syncFailed(ctx, op, string(topic), err)
			return
		}
		e.applyTeams(teams)
	case event.TopicUsers:
		users, err := e.users.List(ctx)
		if err != nil {
			e.syncFailed(ctx, op, string(topic), err)
			return
		}
		e.applyAccounts(users)
	default:
		e.logger.WarnContext(ctx, "unknown topic", slog.String("topic", string(topic)))
	}
}

// applyState overwrites the shared fields with the stored record.
func (e *Engine) applyState(rec *store.AuctionState) {
	s := sharedFromRecord(rec)

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.equal(e.sh) {
		return
	}
	phaseChanged := s.Phase != e.sh.Phase
	e.sh = s
	if phaseChanged {
		e.resolveViewLocked()
	}
	e.changed()
}

// applyPlayers rebuilds the master list, the available pool and the rosters.
func (e *Engine) applyPlayers(records []store.Player) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]int, len(e.teams))
	for i, t := range e.teams {
		ids[i] = t.ID
	}
	set := ReconcilePlayers(records, ids)

	same := slices.Equal(e.master, set.Master) && slices.Equal(e.available, set.Available)
	for i := range e.teams {
		roster := set.Rosters[e.teams[i].ID]
		if !slices.Equal(e.teams[i].Players, roster) {
			same = false
		}
		e.teams[i].Players = roster
	}
	e.master, e.available = set.Master, set.Available
	if !same {
		e.changed()
	}
}

// applyTeams rebuilds the team list. Rosters of removed teams go back to the
// available pool until the player records catch up.
func (e *Engine) applyTeams(records []store.Team) {
	e.mu.Lock()
	defer e.mu.Unlock()

	teams, orphans := ReconcileTeams(records, e.teams)
	if slices.EqualFunc(e.teams, teams, equalTeam) && len(orphans) == 0 {
		return
	}
	e.teams = teams
	if len(orphans) > 0 {
		e.available = append(e.available, orphans...)
		sortByName(e.collator, e.available)
	}
	e.changed()
}

// applyAccounts replaces the account list. A signed-in account that no
// longer exists is signed out.
func (e *Engine) applyAccounts(records []store.User) {
	accounts := ReconcileAccounts(records)

	e.mu.Lock()
	defer e.mu.Unlock()
	if slices.EqualFunc(e.accounts, accounts, equalAccount) {
		return
	}
	e.accounts = accounts
	if e.user != nil {
		i := slices.IndexFunc(accounts, func(a Account) bool { return a.ID == e.user.ID })
		if i < 0 {
			e.user = nil
			e.view = ViewLogin
		} else {
			a := accounts[i]
			e.user = &a
		}
	}
	e.changed()
}

func equalTeam(a, b Team) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Owner == b.Owner &&
		a.CaptainRole == b.CaptainRole && a.Color == b.Color && a.Logo == b.Logo &&
		slices.Equal(a.Players, b.Players)
}

func equalAccount(a, b Account) bool {
	return a.ID == b.ID && a.Username == b.Username && a.PasswordHash == b.PasswordHash &&
		a.Role == b.Role && equalInt(a.TeamID, b.TeamID)
}
