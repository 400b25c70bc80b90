package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	"github.com/noah-isme/crowdwatch-api/pkg/database"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
)

var accountCols = []string{"id", "username", "email", "name", "password_hash", "status", "login_attempts", "created_at"}

func newMock(t *testing.T) (*CredentialRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	repo := NewCredentialRepository(database.FromDB(sqlx.NewDb(db, "sqlmock")), 0)
	repo.bcryptCost = bcrypt.MinCost
	return repo, mock, func() {
		db.Close()
	}
}

func TestFindAccountByUsernameOrEmail(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(accountCols).
		AddRow("0b5b2c2e-8a39-4b8e-9d7a-0d6c0e0f7a11", "testuser", "testuser@example.com", "Test User", "hash", "active", 0, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, name, password_hash, status, login_attempts, created_at FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("TestUser").
		WillReturnRows(rows)

	account, err := repo.FindAccountByUsernameOrEmail(context.Background(), "TestUser", models.KindUser)
	require.NoError(t, err)
	assert.Equal(t, "testuser", account.Username)
	assert.Equal(t, models.KindUser, account.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAdminByUsernameNotFound(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM admins WHERE LOWER(username) = LOWER($1) LIMIT 1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(accountCols))

	_, err := repo.FindAccountByUsernameOrEmail(context.Background(), "ghost", models.KindAdmin)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAccountByIDRejectsMalformedID(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	_, err := repo.FindAccountByID(context.Background(), "not-a-uuid", models.KindUser)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountHashesPasswordAndDefaultsName(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT username, email FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2) LIMIT 1")).
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"username", "email"}))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	account, err := repo.CreateAccount(context.Background(), models.KindUser, models.NewAccount{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Name)
	assert.Equal(t, models.StatusActive, account.Status)
	_, parseErr := uuid.Parse(account.ID)
	assert.NoError(t, parseErr)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("secret1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountCaseInsensitiveDuplicates(t *testing.T) {
	cases := []struct {
		name     string
		existing []driverRow
		code     string
	}{
		{name: "username", existing: []driverRow{{"testuser", "other@example.com"}}, code: "USERNAME_EXISTS"},
		{name: "email", existing: []driverRow{{"someone", "TESTUSER@example.com"}}, code: "EMAIL_EXISTS"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock, cleanup := newMock(t)
			defer cleanup()

			rows := sqlmock.NewRows([]string{"username", "email"})
			for _, r := range tc.existing {
				rows.AddRow(r.username, r.email)
			}
			mock.ExpectQuery("SELECT username, email FROM users").WillReturnRows(rows)

			_, err := repo.CreateAccount(context.Background(), models.KindUser, models.NewAccount{
				Username: "TestUser",
				Email:    "testuser@example.com",
				Password: "secret1",
			})
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, tc.code))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

type driverRow struct {
	username string
	email    string
}

func TestCreateAccountUniqueViolationRace(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT username, email FROM users").WillReturnRows(sqlmock.NewRows([]string{"username", "email"}))
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateAccount(context.Background(), models.KindUser, models.NewAccount{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "secret1",
	})
	assert.True(t, appErrors.HasCode(err, "DUPLICATE_KEY"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountMissingFields(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	_, err := repo.CreateAccount(context.Background(), models.KindUser, models.NewAccount{Username: "bob", Password: "secret1"})
	assert.True(t, appErrors.HasCode(err, "VALIDATION_ERROR"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginAttemptSuccessResets(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET login_attempts = 0 WHERE id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordLoginAttempt(context.Background(), "u1", models.KindUser, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginAttemptFailureBelowThreshold(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE admins SET login_attempts = login_attempts + 1, status = CASE WHEN login_attempts + 1 >= $2 THEN 'locked' ELSE status END WHERE id = $1 RETURNING login_attempts")).
		WithArgs("a1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"login_attempts"}).AddRow(4))

	require.NoError(t, repo.RecordLoginAttempt(context.Background(), "a1", models.KindAdmin, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginAttemptFifthFailureLocks(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET login_attempts = login_attempts + 1")).
		WithArgs("u1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"login_attempts"}).AddRow(5))

	err := repo.RecordLoginAttempt(context.Background(), "u1", models.KindUser, false)
	assert.True(t, appErrors.HasCode(err, "ACCOUNT_LOCKED"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsers(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(accountCols).
		AddRow("1", "a", "a@example.com", "A", "hash", "active", 0, now).
		AddRow("2", "b", "b@example.com", "B", "hash", "locked", 5, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY created_at DESC")).WillReturnRows(rows)

	users, err := repo.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, models.StatusLocked, users[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	id := uuid.NewString()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteUser(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteUser(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeleteUser(context.Background(), "garbage")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuditLog(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionLogin, Resource: "auth"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
