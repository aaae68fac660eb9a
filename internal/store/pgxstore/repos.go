package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// expectRow turns a zero-row write into store.ErrNotFound.
func expectRow(tag pgconn.CommandTag, kind string, id int) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

// PlayerRepo implements store.PlayerRepository with pgx.
type PlayerRepo struct {
	pool *pgxpool.Pool
}

// NewPlayerRepo returns a new PlayerRepo.
func NewPlayerRepo(pool *pgxpool.Pool) *PlayerRepo {
	return &PlayerRepo{pool: pool}
}

func (r *PlayerRepo) Create(ctx context.Context, p *store.Player) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO players (id, name, role, drafted_to_team_id) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.Role, p.DraftedToTeamID)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

func (r *PlayerRepo) List(ctx context.Context) ([]store.Player, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, role, drafted_to_team_id FROM players ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Player, error) {
		var p store.Player
		err := row.Scan(&p.ID, &p.Name, &p.Role, &p.DraftedToTeamID)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning players: %w", err)
	}
	return players, nil
}

func (r *PlayerRepo) Update(ctx context.Context, p *store.Player) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE players SET name = $1, role = $2 WHERE id = $3`, p.Name, p.Role, p.ID)
	if err != nil {
		return fmt.Errorf("updating player: %w", err)
	}
	return expectRow(tag, "player", p.ID)
}

func (r *PlayerRepo) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	return expectRow(tag, "player", id)
}

func (r *PlayerRepo) SetDraftedTo(ctx context.Context, id int, teamID *int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE players SET drafted_to_team_id = $1 WHERE id = $2`, teamID, id)
	if err != nil {
		return fmt.Errorf("setting drafted team: %w", err)
	}
	return expectRow(tag, "player", id)
}

func (r *PlayerRepo) ClearDrafted(ctx context.Context) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE players SET drafted_to_team_id = NULL WHERE drafted_to_team_id IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("clearing drafted teams: %w", err)
	}
	return nil
}

// TeamRepo implements store.TeamRepository with pgx.
type TeamRepo struct {
	pool *pgxpool.Pool
}

// NewTeamRepo returns a new TeamRepo.
func NewTeamRepo(pool *pgxpool.Pool) *TeamRepo {
	return &TeamRepo{pool: pool}
}

func (r *TeamRepo) Create(ctx context.Context, t *store.Team) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO teams (id, name, owner, captain_role, color, logo) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.Owner, t.CaptainRole, t.Color, t.Logo)
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	return nil
}

func (r *TeamRepo) List(ctx context.Context) ([]store.Team, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, owner, captain_role, color, logo FROM teams ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Team, error) {
		var t store.Team
		err := row.Scan(&t.ID, &t.Name, &t.Owner, &t.CaptainRole, &t.Color, &t.Logo)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning teams: %w", err)
	}
	return teams, nil
}

func (r *TeamRepo) Update(ctx context.Context, t *store.Team) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE teams SET name = $1, owner = $2, captain_role = $3, color = $4, logo = $5 WHERE id = $6`,
		t.Name, t.Owner, t.CaptainRole, t.Color, t.Logo, t.ID)
	if err != nil {
		return fmt.Errorf("updating team: %w", err)
	}
	return expectRow(tag, "team", t.ID)
}

func (r *TeamRepo) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}
	return expectRow(tag, "team", id)
}

// UserRepo implements store.UserRepository with pgx.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo returns a new UserRepo.
func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *store.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, role, team_id) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.TeamID)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context) ([]store.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, password_hash, role, team_id FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.User, error) {
		var u store.User
		err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.TeamID)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) Update(ctx context.Context, u *store.User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET username = $1, password_hash = $2, role = $3, team_id = $4 WHERE id = $5`,
		u.Username, u.PasswordHash, u.Role, u.TeamID, u.ID)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return expectRow(tag, "user", u.ID)
}

func (r *UserRepo) DeleteByTeam(ctx context.Context, teamID int) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM users WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("deleting team users: %w", err)
	}
	return nil
}

// StateRepo implements store.StateRepository with pgx.
type StateRepo struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

// NewStateRepo returns a new StateRepo.
func NewStateRepo(pool *pgxpool.Pool, clk clock.Clock) *StateRepo {
	return &StateRepo{pool: pool, clock: clk}
}

func (r *StateRepo) Get(ctx context.Context) (*store.AuctionState, error) {
	var (
		s     store.AuctionState
		order []int32
	)
	err := r.pool.QueryRow(ctx,
		`SELECT current_round, round_order, turn_index, is_rolling, dice_team_id, phase,
		        announce_player_id, announce_team_id, undo_player_id, undo_team_id, updated_at
		 FROM auction_state WHERE id = 'state'`,
	).Scan(&s.CurrentRound, &order, &s.TurnIndex, &s.IsRolling, &s.DiceTeamID, &s.Phase,
		&s.AnnouncePlayerID, &s.AnnounceTeamID, &s.UndoPlayerID, &s.UndoTeamID, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting auction state: %w", err)
	}
	s.RoundOrder = make([]int, len(order))
	for i, id := range order {
		s.RoundOrder[i] = int(id)
	}
	return &s, nil
}

const upsertState = `INSERT INTO auction_state (id, current_round, round_order, turn_index, is_rolling,
        dice_team_id, phase, announce_player_id, announce_team_id, undo_player_id, undo_team_id, updated_at)
 VALUES ('state', $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func stateArgs(s *store.AuctionState) []any {
	order := make([]int32, len(s.RoundOrder))
	for i, id := range s.RoundOrder {
		order[i] = int32(id)
	}
	return []any{s.CurrentRound, order, s.TurnIndex, s.IsRolling, s.DiceTeamID, s.Phase,
		s.AnnouncePlayerID, s.AnnounceTeamID, s.UndoPlayerID, s.UndoTeamID, s.UpdatedAt}
}

func (r *StateRepo) Put(ctx context.Context, s *store.AuctionState) error {
	s.UpdatedAt = r.clock.Now().UTC()
	_, err := r.pool.Exec(ctx, upsertState+`
 ON CONFLICT (id) DO UPDATE SET
        current_round = EXCLUDED.current_round,
        round_order = EXCLUDED.round_order,
        turn_index = EXCLUDED.turn_index,
        is_rolling = EXCLUDED.is_rolling,
        dice_team_id = EXCLUDED.dice_team_id,
        phase = EXCLUDED.phase,
        announce_player_id = EXCLUDED.announce_player_id,
        announce_team_id = EXCLUDED.announce_team_id,
        undo_player_id = EXCLUDED.undo_player_id,
        undo_team_id = EXCLUDED.undo_team_id,
        updated_at = EXCLUDED.updated_at`, stateArgs(s)...)
	if err != nil {
		return fmt.Errorf("writing auction state: %w", err)
	}
	return nil
}

func (r *StateRepo) Init(ctx context.Context, s *store.AuctionState) (bool, error) {
	s.UpdatedAt = r.clock.Now().UTC()
	tag, err := r.pool.Exec(ctx, upsertState+` ON CONFLICT (id) DO NOTHING`, stateArgs(s)...)
	if err != nil {
		return false, fmt.Errorf("initialising auction state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
