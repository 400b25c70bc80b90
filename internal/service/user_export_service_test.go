package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
)

type stubUserLister struct {
	users []models.Account
	err   error
}

func (s stubUserLister) ListUsers(ctx context.Context) ([]models.Account, error) {
	return s.users, s.err
}

func TestUserExportServiceCSV(t *testing.T) {
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	svc := NewUserExportService(stubUserLister{users: []models.Account{
		{ID: "u1", Username: "testuser", Email: "testuser@example.com", Name: "Test User", Status: models.StatusActive, CreatedAt: created},
		{ID: "u2", Username: "locked", Email: "locked@example.com", Name: "Locked", Status: models.StatusLocked, LoginAttempts: 5, CreatedAt: created},
	}}, nil)
	svc.now = func() time.Time { return created }

	file, err := svc.Export(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "users_20260203_040506.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Username,Email,Name,Status,Login Attempts,Created At", lines[0])
	assert.Equal(t, "u2,locked,locked@example.com,Locked,locked,5,2026-02-03T04:05:06Z", lines[2])
}

func TestUserExportServicePDF(t *testing.T) {
	svc := NewUserExportService(stubUserLister{}, nil)

	file, err := svc.Export(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".pdf"))
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF-"))
}

func TestUserExportServiceErrors(t *testing.T) {
	svc := NewUserExportService(stubUserLister{}, nil)
	_, err := svc.Export(context.Background(), "xlsx")
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	svc = NewUserExportService(stubUserLister{err: assert.AnError}, nil)
	_, err = svc.Export(context.Background(), "csv")
	assert.Equal(t, 500, appErrors.FromError(err).Status)
}
