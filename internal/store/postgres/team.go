package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/draft-auction/internal/store"
)

// TeamRepo implements store.TeamRepository with sqlx.
type TeamRepo struct {
	db *sqlx.DB
}

// NewTeamRepo returns a new TeamRepo.
func NewTeamRepo(db *sqlx.DB) *TeamRepo {
	return &TeamRepo{db: db}
}

func (r *TeamRepo) Create(ctx context.Context, t *store.Team) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO teams (id, name, owner, captain_role, color, logo)
		 VALUES (:id, :name, :owner, :captain_role, :color, :logo)`, t)
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	return nil
}

func (r *TeamRepo) List(ctx context.Context) ([]store.Team, error) {
	var teams []store.Team
	err := r.db.SelectContext(ctx, &teams,
		`SELECT id, name, owner, captain_role, color, logo FROM teams ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	return teams, nil
}

func (r *TeamRepo) Update(ctx context.Context, t *store.Team) error {
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE teams SET name = :name, owner = :owner, captain_role = :captain_role,
		 color = :color, logo = :logo WHERE id = :id`, t)
	if err != nil {
		return fmt.Errorf("updating team: %w", err)
	}
	return expectRow(result, "team", t.ID)
}

func (r *TeamRepo) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}
	return expectRow(result, "team", id)
}

// expectRow turns a zero-row write into store.ErrNotFound.
func expectRow(result sql.Result, kind string, id int) error {
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, store.ErrNotFound)
	}
	return nil
}
