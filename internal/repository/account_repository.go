package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	"github.com/noah-isme/crowdwatch-api/pkg/database"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
)

const accountColumns = `id, username, email, name, password_hash, status, login_attempts, created_at`

// uniqueViolation is the PostgreSQL SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

// CredentialRepository persists accounts and refresh tokens.
type CredentialRepository struct {
	db          *database.Handle
	maxAttempts int
	bcryptCost  int
	now         func() time.Time
}

// NewCredentialRepository creates a repository over a lazily opened handle.
func NewCredentialRepository(db *database.Handle, maxAttempts int) *CredentialRepository {
	if maxAttempts <= 0 {
		maxAttempts = models.MaxLoginAttempts
	}
	return &CredentialRepository{
		db:          db,
		maxAttempts: maxAttempts,
		bcryptCost:  bcrypt.DefaultCost,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// FindAccountByUsernameOrEmail looks up an account case-insensitively. Users
// match on username or email, admins on username only. Returns sql.ErrNoRows
// when nothing matches.
func (r *CredentialRepository) FindAccountByUsernameOrEmail(ctx context.Context, identifier string, kind models.AccountKind) (*models.Account, error) {
	db, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}

	var query string
	if kind == models.KindAdmin {
		query = `SELECT ` + accountColumns + ` FROM admins WHERE LOWER(username) = LOWER($1) LIMIT 1`
	} else {
		query = `SELECT ` + accountColumns + ` FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1) LIMIT 1`
	}

	var account models.Account
	if err := db.GetContext(ctx, &account, query, identifier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find %s by identifier: %w", kind, err)
	}
	account.Kind = kind
	return &account, nil
}

// FindAccountByID returns an account by identifier.
func (r *CredentialRepository) FindAccountByID(ctx context.Context, id string, kind models.AccountKind) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	db, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, accountColumns, kind.Table())
	var account models.Account
	if err := db.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find %s by id: %w", kind, err)
	}
	account.Kind = kind
	return &account, nil
}

// CreateAccount validates, hashes and inserts a new account.
func (r *CredentialRepository) CreateAccount(ctx context.Context, kind models.AccountKind, input models.NewAccount) (*models.Account, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.Username == "" || input.Password == "" || (kind == models.KindUser && input.Email == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "All fields are required")
	}

	db, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.ensureUnique(ctx, kind, input); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), r.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = input.Username
	}

	account := &models.Account{
		ID:            uuid.NewString(),
		Kind:          kind,
		Username:      input.Username,
		Email:         input.Email,
		Name:          name,
		PasswordHash:  string(hash),
		Status:        models.StatusActive,
		LoginAttempts: 0,
		CreatedAt:     r.now(),
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (:id, :username, :email, :name, :password_hash, :status, :login_attempts, :created_at)`, kind.Table(), accountColumns)
	if _, err := db.NamedExecContext(ctx, query, account); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, appErrors.Wrap(err, appErrors.ErrDuplicateKey.Code, appErrors.ErrDuplicateKey.Status, appErrors.ErrDuplicateKey.Message)
		}
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	return account, nil
}

func (r *CredentialRepository) ensureUnique(ctx context.Context, kind models.AccountKind, input models.NewAccount) error {
	db, err := r.db.DB(ctx)
	if err != nil {
		return err
	}

	var existing struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	var query string
	args := []interface{}{input.Username}
	if kind == models.KindAdmin {
		query = `SELECT username, email FROM admins WHERE LOWER(username) = LOWER($1) LIMIT 1`
	} else {
		query = `SELECT username, email FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2) LIMIT 1`
		args = append(args, input.Email)
	}

	if err := db.GetContext(ctx, &existing, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("check %s uniqueness: %w", kind, err)
	}

	if strings.EqualFold(existing.Username, input.Username) {
		return appErrors.Clone(appErrors.ErrUsernameExists, "")
	}
	return appErrors.Clone(appErrors.ErrEmailExists, "")
}

// RecordLoginAttempt resets the failure counter on success. On failure it
// increments the counter and, in the same statement, locks the account once
// the threshold is reached; the locking attempt returns ErrAccountLocked.
func (r *CredentialRepository) RecordLoginAttempt(ctx context.Context, id string, kind models.AccountKind, success bool) error {
	db, err := r.db.DB(ctx)
	if err != nil {
		return err
	}

	if success {
		query := fmt.Sprintf(`UPDATE %s SET login_attempts = 0 WHERE id = $1`, kind.Table())
		if _, err := db.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("reset login attempts: %w", err)
		}
		return nil
	}

	query := fmt.Sprintf(`UPDATE %s SET login_attempts = login_attempts + 1, status = CASE WHEN login_attempts + 1 >= $2 THEN 'locked' ELSE status END WHERE id = $1 RETURNING login_attempts`, kind.Table())
	var attempts int
	if err := db.GetContext(ctx, &attempts, query, id, r.maxAttempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("record failed login: %w", err)
	}
	if attempts >= r.maxAttempts {
		return appErrors.Clone(appErrors.ErrAccountLocked, "")
	}
	return nil
}

// ListUsers returns every user account, newest first.
func (r *CredentialRepository) ListUsers(ctx context.Context) ([]models.Account, error) {
	db, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}

	const query = `SELECT ` + accountColumns + ` FROM users ORDER BY created_at DESC`
	users := make([]models.Account, 0)
	if err := db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i].Kind = models.KindUser
	}
	return users, nil
}

// DeleteUser removes a user and, by cascade, its refresh tokens. It reports
// whether a row was removed.
func (r *CredentialRepository) DeleteUser(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	db, err := r.db.DB(ctx)
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user rows: %w", err)
	}
	return n > 0, nil
}
