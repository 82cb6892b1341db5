package models

import (
	"strings"
	"time"
)

// Role is the single role held by an account
type Role string

const (
	RoleReader        Role = "reader"
	RoleAdministrator Role = "administrator"
)

// MaxAdministrators is the system-wide cap on administrator accounts
const MaxAdministrators = 3

// ValidRoles defines allowed account roles
var ValidRoles = map[Role]bool{
	RoleReader:        true,
	RoleAdministrator: true,
}

// ParseRole normalizes a role submitted by a form or API client.
// The short forms "user" and "admin" used by older clients are accepted.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reader", "user":
		return RoleReader, true
	case "administrator", "admin":
		return RoleAdministrator, true
	}
	return "", false
}

// DisplayName returns the human readable role name
func (r Role) DisplayName() string {
	if r == RoleAdministrator {
		return "Administrator"
	}
	return "Regular User"
}

// User represents an account in the system
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Bio          string    `json:"bio" db:"bio"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the account holds the administrator role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdministrator
}

// FullName joins the display name parts, falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// PublicUser is the account shape returned to clients
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	FullName string `json:"full_name"`
}

// Public strips the account down to what login and registration return
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		FullName: u.FullName(),
	}
}

// RegisterRequest is the registration form or JSON body
type RegisterRequest struct {
	Username  string `json:"username" form:"username"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
	FirstName string `json:"first_name" form:"firstName"`
	LastName  string `json:"last_name" form:"lastName"`
	Bio       string `json:"bio" form:"bio"`
	Role      string `json:"role" form:"role"`
}

// LoginRequest is the login form or JSON body
type LoginRequest struct {
	Email        string `json:"email" form:"email"`
	Password     string `json:"password" form:"password"`
	ExpectedRole string `json:"expected_role" form:"expectedRole"`
}

// ProfileUpdate carries the editable profile fields
type ProfileUpdate struct {
	FirstName string `json:"first_name" form:"firstName"`
	LastName  string `json:"last_name" form:"lastName"`
	Bio       string `json:"bio" form:"bio"`
}
