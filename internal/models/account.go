package models

import "time"

// AccountKind separates the disjoint user and admin populations.
type AccountKind string

const (
	KindUser  AccountKind = "user"
	KindAdmin AccountKind = "admin"
)

// Table returns the backing table for the kind.
func (k AccountKind) Table() string {
	if k == KindAdmin {
		return "admins"
	}
	return "users"
}

// Valid reports whether k is a known kind.
func (k AccountKind) Valid() bool {
	return k == KindUser || k == KindAdmin
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusLocked   AccountStatus = "locked"
	StatusInactive AccountStatus = "inactive"
)

// MaxLoginAttempts is the number of consecutive failures that locks an account.
const MaxLoginAttempts = 5

// Account is a user or admin record. PasswordHash never leaves the server.
type Account struct {
	ID            string        `db:"id" json:"id"`
	Kind          AccountKind   `db:"-" json:"-"`
	Username      string        `db:"username" json:"username"`
	Email         string        `db:"email" json:"email"`
	Name          string        `db:"name" json:"name"`
	PasswordHash  string        `db:"password_hash" json:"-"`
	Status        AccountStatus `db:"status" json:"status"`
	LoginAttempts int           `db:"login_attempts" json:"login_attempts"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// IsAdmin reports whether the account lives in the admins table.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Kind == KindAdmin
}

// NewAccount carries the fields needed to create an account.
type NewAccount struct {
	Username string
	Email    string
	Name     string
	Password string
}

// UserList is the admin roster response.
type UserList struct {
	Users []Account `json:"users"`
	Total int       `json:"total"`
}
