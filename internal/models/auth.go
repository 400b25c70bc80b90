package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role claim ever issued.
const RoleAdmin = "admin"

// LoginRequest holds credentials for the user and admin login endpoints.
// Username may also be an email for user logins.
type LoginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// SignupRequest creates a user account.
type SignupRequest struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,simpleemail"`
	Password  string `json:"password" validate:"required,min=6"`
	Name      string `json:"name"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// TokenPair is returned by login and signup.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	Message      string `json:"message,omitempty"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AccessTokenResponse is returned by the refresh endpoint.
type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   string `json:"expiresIn"`
}

// LogoutRequest names the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// VerifyRequest carries a raw access token for introspection.
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyResponse echoes the decoded claims.
type VerifyResponse struct {
	OK      bool       `json:"ok"`
	Payload *JWTClaims `json:"payload"`
}

// MeResponse describes the caller of a protected endpoint.
type MeResponse struct {
	OK   bool       `json:"ok"`
	User *JWTClaims `json:"user"`
}

// JWTClaims is the access token payload. Subject carries the account id.
type JWTClaims struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token carries the admin role.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Kind maps the role claim back to an account kind.
func (c *JWTClaims) Kind() AccountKind {
	if c.IsAdmin() {
		return KindAdmin
	}
	return KindUser
}
