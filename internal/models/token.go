package models

import "time"

// RefreshToken is an opaque, server-side session credential. Exactly one of
// UserID or AdminID is set.
type RefreshToken struct {
	Token     string    `db:"token" json:"-"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	AdminID   *string   `db:"admin_id" json:"admin_id,omitempty"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TokenOwner identifies the account a refresh token belongs to.
type TokenOwner struct {
	ID       string
	Kind     AccountKind
	Username string
	Name     string
	Email    string
}

// OwnerOf builds a TokenOwner from an account.
func OwnerOf(a *Account) TokenOwner {
	return TokenOwner{ID: a.ID, Kind: a.Kind, Username: a.Username, Name: a.Name, Email: a.Email}
}
