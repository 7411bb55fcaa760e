package mysqlstore

import (
	"context"
	"database/sql"

	"backend-loket/internal/models"

	"github.com/pkg/errors"
)

// Users - akun petugas loket & admin
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

func (u *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	query := `SELECT id, nama, email, password, role, is_banned, counter_id, created_at, updated_at
	          FROM users WHERE email = ?`
	err := u.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Nama,
		&user.Email,
		&user.Password,
		&user.Role,
		&user.IsBanned,
		&user.CounterID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, errors.Wrap(err, "find user")
	}
	return user, nil
}
