package model

import "time"

// Role names one of the three fixed operator roles.  The permission set of
// each role is configured in the auth package; the role on a user record is
// only the lookup key into that table.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleOperator
}

// User is an operator account.  The password is stored only as a bcrypt
// digest.  Usernames are unique across active and inactive accounts.
//
// Reservations reference a user by username string only; deleting or
// deactivating a user never touches reservation records.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	DisplayName  string     `json:"display_name"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}
