package types

import "time"

type Role string

const (
	RoleManager Role = "manager"
	RoleHelper  Role = "helper"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) IsManager() bool {
	return u != nil && u.Role == RoleManager
}

// RoleForUsername derives the role from a literal username match. There is
// no credential check behind it.
func RoleForUsername(username, managerUsername string) Role {
	if username == managerUsername {
		return RoleManager
	}
	return RoleHelper
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
}
