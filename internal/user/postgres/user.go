package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/nonprofit-tech/casevault/internal/user"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) user.Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (*user.User, error) {
	var u user.User
	query := `SELECT id, email, name, password_hash, is_admin, is_demo, is_active, created_at, updated_at
	          FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) ActiveAdmins(ctx context.Context) ([]user.User, error) {
	var admins []user.User
	query := `SELECT id, email, name, password_hash, is_admin, is_demo, is_active, created_at, updated_at
	          FROM users WHERE is_admin = true AND is_active = true ORDER BY id`
	if err := r.db.SelectContext(ctx, &admins, query); err != nil {
		return nil, err
	}
	return admins, nil
}
