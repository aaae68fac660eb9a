package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/draft-auction/internal/store"
)

// PlayerRepo implements store.PlayerRepository with sqlx.
type PlayerRepo struct {
	db *sqlx.DB
}

// NewPlayerRepo returns a new PlayerRepo.
func NewPlayerRepo(db *sqlx.DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

func (r *PlayerRepo) Create(ctx context.Context, p *store.Player) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO players (id, name, role, drafted_to_team_id)
		 VALUES (:id, :name, :role, :drafted_to_team_id)`, p)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

func (r *PlayerRepo) List(ctx context.Context) ([]store.Player, error) {
	var players []store.Player
	err := r.db.SelectContext(ctx, &players,
		`SELECT id, name, role, drafted_to_team_id FROM players ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	return players, nil
}

func (r *PlayerRepo) Update(ctx context.Context, p *store.Player) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET name = $1, role = $2 WHERE id = $3`,
		p.Name, p.Role, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating player: %w", err)
	}
	return expectRow(result, "player", p.ID)
}

func (r *PlayerRepo) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	return expectRow(result, "player", id)
}

func (r *PlayerRepo) SetDraftedTo(ctx context.Context, id int, teamID *int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET drafted_to_team_id = $1 WHERE id = $2`, teamID, id)
	if err != nil {
		return fmt.Errorf("setting drafted team: %w", err)
	}
	return expectRow(result, "player", id)
}

func (r *PlayerRepo) ClearDrafted(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE players SET drafted_to_team_id = NULL WHERE drafted_to_team_id IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("clearing drafted teams: %w", err)
	}
	return nil
}
