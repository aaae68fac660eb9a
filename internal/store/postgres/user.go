package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/draft-auction/internal/store"
)

// UserRepo implements store.UserRepository with sqlx.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo returns a new UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *store.User) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, team_id)
		 VALUES (:id, :username, :password_hash, :role, :team_id)`, u)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context) ([]store.User, error) {
	var users []store.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, username, password_hash, role, team_id FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) Update(ctx context.Context, u *store.User) error {
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE users SET username = :username, password_hash = :password_hash,
		 role = :role, team_id = :team_id WHERE id = :id`, u)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return expectRow(result, "user", u.ID)
}

func (r *UserRepo) DeleteByTeam(ctx context.Context, teamID int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("deleting team users: %w", err)
	}
	return nil
}
