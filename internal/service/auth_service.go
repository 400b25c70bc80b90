package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
)

type credentialStore interface {
	refreshTokenWriter
	FindAccountByUsernameOrEmail(ctx context.Context, identifier string, kind models.AccountKind) (*models.Account, error)
	FindAccountByID(ctx context.Context, id string, kind models.AccountKind) (*models.Account, error)
	CreateAccount(ctx context.Context, kind models.AccountKind, input models.NewAccount) (*models.Account, error)
	RecordLoginAttempt(ctx context.Context, id string, kind models.AccountKind, success bool) error
	ValidateRefreshToken(ctx context.Context, token string) (*models.TokenOwner, error)
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)
	ListUsers(ctx context.Context) ([]models.Account, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthService provides the login, signup, refresh and verification flows.
type AuthService struct {
	repo      credentialStore
	tokens    *TokenIssuer
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo credentialStore, tokens *TokenIssuer, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &AuthService{repo: repo, tokens: tokens, validator: validate, logger: logger, metrics: metrics}
}

type loginMessages struct {
	invalid  string
	inactive string
}

var messagesByKind = map[models.AccountKind]loginMessages{
	models.KindUser:  {invalid: "Invalid credentials", inactive: "Account inactive. Please verify your email."},
	models.KindAdmin: {invalid: "Invalid admin credentials", inactive: "Account inactive"},
}

// Login authenticates a user or admin and issues a token pair. Locked and
// inactive accounts are rejected before the password is checked.
func (s *AuthService) Login(ctx context.Context, kind models.AccountKind, req models.LoginRequest) (*models.TokenPair, error) {
	if req.Username == "" || req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingCredentials, "")
	}
	msgs := messagesByKind[kind]

	account, err := s.repo.FindAccountByUsernameOrEmail(ctx, req.Username, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordLogin(kind, OutcomeInvalidCredentials)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, msgs.invalid)
		}
		s.metrics.RecordLogin(kind, OutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Server error")
	}

	switch account.Status {
	case models.StatusLocked:
		s.metrics.RecordLogin(kind, OutcomeLocked)
		return nil, appErrors.Clone(appErrors.ErrAccountLocked, "")
	case models.StatusInactive:
		s.metrics.RecordLogin(kind, OutcomeInactive)
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, msgs.inactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.failLogin(ctx, account, req, msgs)
	}

	if err := s.repo.RecordLoginAttempt(ctx, account.ID, kind, true); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.String("account_id", account.ID), zap.Error(err))
	}

	claims := models.JWTClaims{Name: account.Name, Username: account.Username}
	claims.Subject = account.ID
	if kind == models.KindAdmin {
		claims.Role = models.RoleAdmin
	}
	pair, err := s.issuePair(ctx, claims, models.OwnerOf(account))
	if err != nil {
		s.metrics.RecordLogin(kind, OutcomeError)
		return nil, err
	}

	s.metrics.RecordLogin(kind, OutcomeSuccess)
	s.audit(ctx, account, models.AuditActionLogin, req.IP, req.UserAgent, map[string]string{"status": "success"})
	s.logger.Info("login successful", zap.String("kind", string(kind)), zap.String("username", account.Username))
	return pair, nil
}

func (s *AuthService) failLogin(ctx context.Context, account *models.Account, req models.LoginRequest, msgs loginMessages) error {
	err := s.repo.RecordLoginAttempt(ctx, account.ID, account.Kind, false)
	if appErrors.HasCode(err, appErrors.ErrAccountLocked.Code) {
		s.metrics.RecordLogin(account.Kind, OutcomeLocked)
		s.metrics.RecordLockout(account.Kind)
		s.audit(ctx, account, models.AuditActionLockout, req.IP, req.UserAgent, nil)
		s.logger.Warn("account locked after failed logins", zap.String("kind", string(account.Kind)), zap.String("account_id", account.ID))
		return appErrors.Clone(appErrors.ErrAccountLocked, "Account locked after too many failed login attempts")
	}
	if err != nil {
		s.logger.Warn("failed to record login attempt", zap.String("account_id", account.ID), zap.Error(err))
	}

	s.metrics.RecordLogin(account.Kind, OutcomeInvalidCredentials)
	s.audit(ctx, account, models.AuditActionLoginFailed, req.IP, req.UserAgent, nil)
	return appErrors.Clone(appErrors.ErrInvalidCredentials, msgs.invalid)
}

// Signup creates a user account and logs it in.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, signupValidationError(err)
	}

	account, err := s.repo.CreateAccount(ctx, models.KindUser, models.NewAccount{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Server error")
	}

	claims := models.JWTClaims{Name: account.Name, Username: account.Username, Email: account.Email}
	claims.Subject = account.ID
	pair, err := s.issuePair(ctx, claims, models.OwnerOf(account))
	if err != nil {
		return nil, err
	}
	pair.Message = "Signup successful"

	s.metrics.RecordSignup()
	s.audit(ctx, account, models.AuditActionSignup, req.IP, req.UserAgent, nil)
	s.logger.Info("user created", zap.String("username", account.Username))
	return pair, nil
}

func (s *AuthService) issuePair(ctx context.Context, claims models.JWTClaims, owner models.TokenOwner) (*models.TokenPair, error) {
	access, err := s.tokens.MintAccessToken(claims)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	refresh, err := s.tokens.MintRefreshToken(ctx, owner)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.tokens.ExpiresIn()}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated and stays valid until expiry or logout.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AccessTokenResponse, error) {
	if refreshToken == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Missing refresh token")
	}

	owner, err := s.repo.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			s.metrics.RecordRefresh(appErr.Code)
			return nil, appErr
		}
		s.metrics.RecordRefresh(OutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Server error")
	}

	claims := models.JWTClaims{Username: owner.Username}
	claims.Subject = owner.ID
	if owner.Kind == models.KindAdmin {
		claims.Role = models.RoleAdmin
	}
	access, err := s.tokens.MintAccessToken(claims)
	if err != nil {
		s.metrics.RecordRefresh(OutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.metrics.RecordRefresh(OutcomeSuccess)
	return &models.AccessTokenResponse{AccessToken: access, ExpiresIn: s.tokens.ExpiresIn()}, nil
}

// Logout deletes the refresh token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, req models.LogoutRequest) error {
	if req.RefreshToken == "" {
		return appErrors.Clone(appErrors.ErrValidation, "Missing refresh token")
	}

	removed, err := s.repo.DeleteRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Server error")
	}
	if removed {
		if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
			Action:    models.AuditActionLogout,
			Resource:  "auth",
			IPAddress: req.IP,
			UserAgent: req.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record logout audit log", zap.Error(err))
		}
	}
	return nil
}

// Verify checks a raw access token without consulting account state.
func (s *AuthService) Verify(token string) (*models.JWTClaims, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Missing token")
	}
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}
	return claims, nil
}

// VerifyAdmin is Verify restricted to tokens carrying the admin role.
func (s *AuthService) VerifyAdmin(token string) (*models.JWTClaims, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	if !claims.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not an admin token")
	}
	return claims, nil
}

// Authenticate validates a bearer token for a protected call and re-checks
// the owning account so locks and deactivations apply immediately.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.JWTClaims, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.FindAccountByID(ctx, claims.Subject, claims.Kind())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Server error")
	}

	switch account.Status {
	case models.StatusLocked:
		return nil, appErrors.Clone(appErrors.ErrAccountLocked, "Account is locked")
	case models.StatusInactive:
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "Account is inactive")
	}
	return claims, nil
}

// ListUsers returns the user roster for administrators.
func (s *AuthService) ListUsers(ctx context.Context) (*models.UserList, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to fetch users")
	}
	return &models.UserList{Users: users, Total: len(users)}, nil
}

// DeleteUser removes a user on behalf of an administrator.
func (s *AuthService) DeleteUser(ctx context.Context, admin *models.JWTClaims, userID string) error {
	deleted, err := s.repo.DeleteUser(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to delete user")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}

	entry := &models.AuditLog{Action: models.AuditActionUserDelete, Resource: "users", ResourceID: &userID}
	if admin != nil {
		actor, kind := admin.Subject, models.KindAdmin
		entry.ActorID, entry.ActorKind = &actor, &kind
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user delete audit log", zap.Error(err))
	}
	s.logger.Info("user deleted", zap.String("user_id", userID))
	return nil
}

// SeedDefaults creates the default test user and admin when missing.
func (s *AuthService) SeedDefaults(ctx context.Context) error {
	seeds := []struct {
		kind    models.AccountKind
		account models.NewAccount
	}{
		{models.KindUser, models.NewAccount{Username: "testuser", Email: "testuser@example.com", Name: "Test User", Password: "password123"}},
		{models.KindAdmin, models.NewAccount{Username: "admin", Email: "admin@example.com", Name: "Admin User", Password: "admin123"}},
	}

	for _, seed := range seeds {
		_, err := s.repo.FindAccountByUsernameOrEmail(ctx, seed.account.Username, seed.kind)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if _, err := s.repo.CreateAccount(ctx, seed.kind, seed.account); err != nil {
			if appErrors.HasCode(err, appErrors.ErrDuplicateKey.Code) || appErrors.HasCode(err, appErrors.ErrUsernameExists.Code) {
				continue
			}
			return err
		}
		s.logger.Info("seeded default account", zap.String("kind", string(seed.kind)), zap.String("username", seed.account.Username))
	}
	return nil
}

func (s *AuthService) audit(ctx context.Context, account *models.Account, action, ip, userAgent string, meta map[string]string) {
	actor, kind := account.ID, account.Kind
	entry := &models.AuditLog{
		ActorID:    &actor,
		ActorKind:  &kind,
		Action:     action,
		Resource:   "auth",
		ResourceID: &actor,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if meta != nil {
		if raw, err := json.Marshal(meta); err == nil {
			entry.Metadata = raw
		}
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
