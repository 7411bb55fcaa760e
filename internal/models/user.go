package models

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// ErrUserNotFound - tidak ada akun dengan email tersebut
var ErrUserNotFound = errors.New("user tidak ditemukan")

/*
|--------------------------------------------------------------------------
| DATABASE MODEL (INTERNAL)
|--------------------------------------------------------------------------
| Petugas loket & admin
*/
type User struct {
	ID        int64
	Nama      string
	Email     string
	Password  string
	Role      string
	IsBanned  string
	CounterID sql.NullInt64
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	RoleSuperUser = "super_user"
	RoleCounter   = "counter"
)

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

/*
|--------------------------------------------------------------------------
| RESPONSE DTO
|--------------------------------------------------------------------------
*/
type UserResponse struct {
	ID        int64  `json:"id"`
	Nama      string `json:"nama"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CounterID *int64 `json:"counter_id,omitempty"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

/*
|--------------------------------------------------------------------------
| MAPPER
|--------------------------------------------------------------------------
| Convert User (DB) -> UserResponse (API)
*/
func ToUserResponse(u User) UserResponse {
	var counterID *int64

	if u.CounterID.Valid {
		counterID = &u.CounterID.Int64
	}

	return UserResponse{
		ID:        u.ID,
		Nama:      u.Nama,
		Email:     u.Email,
		Role:      u.Role,
		CounterID: counterID,
	}
}
