package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
)

var tokenCols = []string{"expires_at", "user_id", "admin_id", "username", "name", "email"}

func TestCreateRefreshTokenIsHex64(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	token, err := repo.CreateRefreshToken(context.Background(), models.TokenOwner{ID: "u1", Kind: models.KindUser}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefreshTokenResolvesAdminOwner(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	rows := sqlmock.NewRows(tokenCols).AddRow(now.Add(time.Hour), nil, "a1", "admin", "Admin User", "admin@example.com")
	mock.ExpectQuery("SELECT rt.expires_at").WithArgs("tok").WillReturnRows(rows)

	owner, err := repo.ValidateRefreshToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "a1", owner.ID)
	assert.Equal(t, models.KindAdmin, owner.Kind)
	assert.Equal(t, "admin", owner.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefreshTokenExpired(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	rows := sqlmock.NewRows(tokenCols).AddRow(now.Add(-time.Second), "u1", nil, "testuser", "Test User", "testuser@example.com")
	mock.ExpectQuery("SELECT rt.expires_at").WithArgs("old").WillReturnRows(rows)

	_, err := repo.ValidateRefreshToken(context.Background(), "old")
	assert.True(t, appErrors.HasCode(err, "TOKEN_EXPIRED"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefreshTokenUnknown(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT rt.expires_at").WithArgs("nope").WillReturnRows(sqlmock.NewRows(tokenCols))

	_, err := repo.ValidateRefreshToken(context.Background(), "nope")
	assert.True(t, appErrors.HasCode(err, "INVALID_TOKEN"))

	_, err = repo.ValidateRefreshToken(context.Background(), "")
	assert.True(t, appErrors.HasCode(err, "INVALID_TOKEN"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefreshTokenOwnerGone(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(tokenCols).AddRow(time.Now().Add(time.Hour), "u1", nil, nil, nil, nil)
	mock.ExpectQuery("SELECT rt.expires_at").WithArgs("orphan").WillReturnRows(rows)

	_, err := repo.ValidateRefreshToken(context.Background(), "orphan")
	assert.True(t, appErrors.HasCode(err, "INVALID_TOKEN"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRefreshTokenIdempotent(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE token = $1")).WithArgs("tok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE token = $1")).WithArgs("tok").WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.DeleteRefreshToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.DeleteRefreshToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepExpiredRefreshTokens(t *testing.T) {
	repo, mock, cleanup := newMock(t)
	defer cleanup()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE expires_at < $1")).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.SweepExpiredRefreshTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
