package model

import (
    "strings"
    "time"
)

// Role is the closed set of capabilities an authenticated actor can hold.
// The value is stored verbatim in users.role and in the JWT "role" claim.
type Role string

const (
    RoleDriver    Role = "DRIVER"
    RolePassenger Role = "PASSENGER"
    RoleAdmin     Role = "ADMIN"
)

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
    switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
    case RoleDriver, RolePassenger, RoleAdmin:
        return r, true
    }
    return "", false
}

// Actor is the authenticated identity on whose behalf a core operation runs.
// It is supplied by the auth layer and trusted as given.
type Actor struct {
    UserID uint64
    Role   Role
}

func (a Actor) IsDriver() bool    { return a.Role == RoleDriver }
func (a Actor) IsPassenger() bool { return a.Role == RolePassenger }
func (a Actor) IsAdmin() bool     { return a.Role == RoleAdmin }

// User represents an application user record as stored in the
// `users` table.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – DRIVER, PASSENGER or ADMIN.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         Role      // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}
