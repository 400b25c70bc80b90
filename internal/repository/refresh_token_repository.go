package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
)

// refreshTokenBytes is the entropy of an opaque refresh token (64 hex chars).
const refreshTokenBytes = 32

// CreateRefreshToken mints and stores an opaque token for the owner.
func (r *CredentialRepository) CreateRefreshToken(ctx context.Context, owner models.TokenOwner, expiresAt time.Time) (string, error) {
	db, err := r.db.DB(ctx)
	if err != nil {
		return "", err
	}

	token, err := newRefreshTokenValue()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	rt := models.RefreshToken{Token: token, ExpiresAt: expiresAt.UTC(), CreatedAt: r.now()}
	ownerID := owner.ID
	if owner.Kind == models.KindAdmin {
		rt.AdminID = &ownerID
	} else {
		rt.UserID = &ownerID
	}

	const query = `INSERT INTO refresh_tokens (token, user_id, admin_id, expires_at, created_at) VALUES (:token, :user_id, :admin_id, :expires_at, :created_at)`
	if _, err := db.NamedExecContext(ctx, query, rt); err != nil {
		return "", fmt.Errorf("create refresh token: %w", err)
	}
	return token, nil
}

type refreshTokenRow struct {
	ExpiresAt time.Time      `db:"expires_at"`
	UserID    sql.NullString `db:"user_id"`
	AdminID   sql.NullString `db:"admin_id"`
	Username  sql.NullString `db:"username"`
	Name      sql.NullString `db:"name"`
	Email     sql.NullString `db:"email"`
}

// ValidateRefreshToken resolves a token to its owner. Unknown tokens and
// tokens whose owner no longer exists yield ErrInvalidToken; tokens past
// their expiry yield ErrTokenExpired.
func (r *CredentialRepository) ValidateRefreshToken(ctx context.Context, token string) (*models.TokenOwner, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "Invalid refresh token")
	}
	db, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}

	const query = `SELECT rt.expires_at, rt.user_id, rt.admin_id,
		COALESCE(u.username, a.username) AS username,
		COALESCE(u.name, a.name) AS name,
		COALESCE(u.email, a.email) AS email
	FROM refresh_tokens rt
	LEFT JOIN users u ON u.id = rt.user_id
	LEFT JOIN admins a ON a.id = rt.admin_id
	WHERE rt.token = $1`

	var row refreshTokenRow
	if err := db.GetContext(ctx, &row, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "Invalid refresh token")
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	if r.now().After(row.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrTokenExpired, "Refresh token expired")
	}
	if !row.Username.Valid {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "Invalid token owner")
	}

	owner := &models.TokenOwner{Username: row.Username.String, Name: row.Name.String, Email: row.Email.String}
	switch {
	case row.UserID.Valid:
		owner.ID, owner.Kind = row.UserID.String, models.KindUser
	case row.AdminID.Valid:
		owner.ID, owner.Kind = row.AdminID.String, models.KindAdmin
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "Invalid token owner")
	}
	return owner, nil
}

// DeleteRefreshToken removes a token and reports whether it existed.
func (r *CredentialRepository) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	db, err := r.db.DB(ctx)
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("delete refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete refresh token rows: %w", err)
	}
	return n > 0, nil
}

// SweepExpiredRefreshTokens removes every expired token.
func (r *CredentialRepository) SweepExpiredRefreshTokens(ctx context.Context) (int64, error) {
	db, err := r.db.DB(ctx)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("sweep refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep refresh tokens rows: %w", err)
	}
	return n, nil
}

func newRefreshTokenValue() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
