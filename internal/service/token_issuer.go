package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
	"github.com/noah-isme/crowdwatch-api/pkg/expiry"
)

type refreshTokenWriter interface {
	CreateRefreshToken(ctx context.Context, owner models.TokenOwner, expiresAt time.Time) (string, error)
}

// TokenConfig defines signing and lifetime settings.
type TokenConfig struct {
	Secret             string
	AccessTokenExpiry  string
	RefreshTokenExpiry string
}

// TokenIssuer mints and verifies access tokens and mints refresh tokens.
type TokenIssuer struct {
	secret     []byte
	expiresIn  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      refreshTokenWriter
	now        func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. Lifetimes use the compact
// "<n><unit>" form and fall back to 15 minutes when malformed.
func NewTokenIssuer(cfg TokenConfig, store refreshTokenWriter) *TokenIssuer {
	expiresIn := cfg.AccessTokenExpiry
	if expiresIn == "" {
		expiresIn = "15m"
	}
	refresh := cfg.RefreshTokenExpiry
	if refresh == "" {
		refresh = "7d"
	}
	return &TokenIssuer{
		secret:     []byte(cfg.Secret),
		expiresIn:  expiresIn,
		accessTTL:  expiry.Parse(expiresIn),
		refreshTTL: expiry.Parse(refresh),
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ExpiresIn is the access token lifetime as advertised to clients.
func (t *TokenIssuer) ExpiresIn() string {
	return t.expiresIn
}

// MintAccessToken signs claims with HS256. Identity fields come from the
// caller; timing fields and a unique token id are set here.
func (t *TokenIssuer) MintAccessToken(claims models.JWTClaims) (string, error) {
	issuedAt := t.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.Subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(t.accessTTL)),
	}
	if claims.Subject == "" {
		return "", errors.New("access token requires a subject")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature and expiry. Expiry is reported as
// ErrTokenExpired so clients can refresh; anything else is ErrInvalidToken.
func (t *TokenIssuer) VerifyAccessToken(raw string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrTokenExpired.Code, appErrors.ErrTokenExpired.Status, appErrors.ErrTokenExpired.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}
	return claims, nil
}

// MintRefreshToken persists a new opaque refresh token for owner.
func (t *TokenIssuer) MintRefreshToken(ctx context.Context, owner models.TokenOwner) (string, error) {
	token, err := t.store.CreateRefreshToken(ctx, owner, t.now().Add(t.refreshTTL))
	if err != nil {
		return "", fmt.Errorf("mint refresh token: %w", err)
	}
	return token, nil
}
