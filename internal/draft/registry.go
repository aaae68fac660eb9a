package draft

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/store"
)

// CreateTeamOwner creates a team and its owner account.
func (e *Engine) CreateTeamOwner(ctx context.Context, in TeamOwnerInput) (Team, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.CreateTeamOwner",
		trace.WithAttributes(
			attribute.String("team", in.TeamName),
			attribute.String("username", in.Username),
		),
	)
	defer span.End()

	in.TeamName = strings.TrimSpace(in.TeamName)
	in.OwnerName = strings.TrimSpace(in.OwnerName)
	in.Username = strings.TrimSpace(in.Username)
	if in.TeamName == "" || in.OwnerName == "" || in.Username == "" || in.Password == "" {
		return Team{}, fmt.Errorf("%w: team name, owner, username and password are required", ErrInvalidInput)
	}
	if !in.CaptainRole.ValidCaptain() {
		return Team{}, fmt.Errorf("%w: captain role %q", ErrInvalidInput, in.CaptainRole)
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return Team{}, fmt.Errorf("hashing password: %w", err)
	}

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return Team{}, err
	}
	if e.usernameTakenLocked(in.Username, 0) {
		e.mu.Unlock()
		return Team{}, fmt.Errorf("%q: %w", in.Username, ErrUsernameTaken)
	}

	teamID, userID := 0, 0
	for _, t := range e.teams {
		teamID = max(teamID, t.ID)
	}
	for _, a := range e.accounts {
		userID = max(userID, a.ID)
	}
	team := Team{
		ID:          teamID + 1,
		Name:        in.TeamName,
		Owner:       in.OwnerName,
		Players:     []Player{},
		CaptainRole: in.CaptainRole,
		Color:       DefaultTeamColor,
		Logo:        DefaultTeamLogo,
	}
	acct := Account{
		ID:           userID + 1,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         AccountTeamOwner,
		TeamID:       intPtr(team.ID),
	}
	e.teams = append(e.teams, team)
	e.accounts = append(e.accounts, acct)

	e.logger.InfoContext(ctx, "team created",
		slog.Int("team_id", team.ID),
		slog.String("team", team.Name),
		slog.String("username", acct.Username),
	)
	teamRec, userRec := teamRecord(team), userRecord(acct)
	e.pushLocked(ctx, "create team",
		write{what: "team", fn: func(ctx context.Context) error { return e.teamRepo.Create(ctx, teamRec) }},
		write{what: "account", fn: func(ctx context.Context) error { return e.users.Create(ctx, userRec) }},
	)
	return cloneTeam(team), nil
}

// UpdateTeamOwner edits a team and the account paired with it.
func (e *Engine) UpdateTeamOwner(ctx context.Context, teamID int, upd TeamOwnerUpdate) error {
	ctx, span := e.tracer.Start(ctx, "Engine.UpdateTeamOwner",
		trace.WithAttributes(attribute.Int("team_id", teamID)),
	)
	defer span.End()

	upd.TeamName = strings.TrimSpace(upd.TeamName)
	upd.OwnerName = strings.TrimSpace(upd.OwnerName)
	upd.Username = strings.TrimSpace(upd.Username)
	if upd.TeamName == "" || upd.OwnerName == "" || upd.Username == "" {
		return fmt.Errorf("%w: team name, owner and username are required", ErrInvalidInput)
	}

	var hash string
	if upd.Password != nil && *upd.Password != "" {
		h, err := e.hasher.Hash(*upd.Password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		hash = h
	}

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	ti := e.teamIndexLocked(teamID)
	if ti < 0 {
		e.mu.Unlock()
		return fmt.Errorf("team %d: %w", teamID, ErrNotFound)
	}
	ai := slices.IndexFunc(e.accounts, func(a Account) bool {
		return a.TeamID != nil && *a.TeamID == teamID
	})
	exclude := 0
	if ai >= 0 {
		exclude = e.accounts[ai].ID
	}
	if e.usernameTakenLocked(upd.Username, exclude) {
		e.mu.Unlock()
		return fmt.Errorf("%q: %w", upd.Username, ErrUsernameTaken)
	}

	e.teams[ti].Name = upd.TeamName
	e.teams[ti].Owner = upd.OwnerName
	teamRec := teamRecord(e.teams[ti])
	writes := []write{{what: "team", fn: func(ctx context.Context) error {
		return e.teamRepo.Update(ctx, teamRec)
	}}}

	if ai >= 0 {
		e.accounts[ai].Username = upd.Username
		if hash != "" {
			e.accounts[ai].PasswordHash = hash
		}
		userRec := userRecord(e.accounts[ai])
		writes = append(writes, write{what: "account", fn: func(ctx context.Context) error {
			return e.users.Update(ctx, userRec)
		}})
	}

	e.logger.InfoContext(ctx, "team updated", slog.Int("team_id", teamID))
	e.pushLocked(ctx, "update team", writes...)
	return nil
}

// DeleteTeamOwner removes a team and its account, returning the team's
// roster to the available pool.
func (e *Engine) DeleteTeamOwner(ctx context.Context, teamID int) error {
	ctx, span := e.tracer.Start(ctx, "Engine.DeleteTeamOwner",
		trace.WithAttributes(attribute.Int("team_id", teamID)),
	)
	defer span.End()

	e.mu.Lock()
	if err := e.requireAdminLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	ti := e.teamIndexLocked(teamID)
	if ti < 0 {
		e.mu.Unlock()
		return fmt.Errorf("team %d: %w", teamID, ErrNotFound)
	}

	roster := e.teams[ti].Players
	e.available = append(e.available, roster...)
	sortByName(e.collator, e.available)
	e.teams = slices.Delete(e.teams, ti, ti+1)
	e.accounts = slices.DeleteFunc(e.accounts, func(a Account) bool {
		return a.TeamID != nil && *a.TeamID == teamID
	})

	writes := make([]write, 0, len(roster)+3)
	for _, p := range roster {
		writes = append(writes, e.setDrafted(p.ID, nil))
	}
	writes = append(writes,
		write{what: "team", fn: func(ctx context.Context) error { return e.teamRepo.Delete(ctx, teamID) }},
		write{what: "account", fn: func(ctx context.Context) error { return e.users.DeleteByTeam(ctx, teamID) }},
	)
	if e.dropTeamFromRoundLocked(teamID) {
		writes = append(writes, e.putStateLocked())
	}

	e.logger.InfoContext(ctx, "team deleted",
		slog.Int("team_id", teamID),
		slog.Int("returned_players", len(roster)),
	)
	e.pushLocked(ctx, "delete team", writes...)
	return nil
}

// dropTeamFromRoundLocked removes every reference the shared state holds to
// a deleted team so the round can still complete and a later team reusing
// the id does not inherit them. It reports whether the state changed.
func (e *Engine) dropTeamFromRoundLocked(teamID int) bool {
	changed := false
	if i := slices.Index(e.sh.Order, teamID); i >= 0 {
		e.sh.Order = slices.Delete(slices.Clone(e.sh.Order), i, i+1)
		if i < e.sh.TurnIndex {
			e.sh.TurnIndex--
		}
		changed = true
	}
	if d := e.sh.Dice; d != nil && *d == teamID {
		if e.sh.Rolling {
			e.sh.Rolling = false
			e.rollGen++
		}
		e.sh.Dice = nil
		changed = true
	}
	if a := e.sh.Announce; a != nil && a.TeamID == teamID {
		e.sh.Announce = nil
		e.announceGen++
		changed = true
	}
	if u := e.sh.Undo; u != nil && u.TeamID == teamID {
		e.sh.Undo = nil
		changed = true
	}
	return changed
}

func (e *Engine) usernameTakenLocked(username string, excludeID int) bool {
	return slices.ContainsFunc(e.accounts, func(a Account) bool {
		return a.ID != excludeID && strings.EqualFold(a.Username, username)
	})
}

func teamRecord(t Team) *store.Team {
	return &store.Team{
		ID:          t.ID,
		Name:        t.Name,
		Owner:       t.Owner,
		CaptainRole: string(t.CaptainRole),
		Color:       t.Color,
		Logo:        t.Logo,
	}
}

func userRecord(a Account) *store.User {
	return &store.User{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
		TeamID:       copyInt(a.TeamID),
	}
}
