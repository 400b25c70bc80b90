package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
	"github.com/noah-isme/crowdwatch-api/pkg/export"
)

type userLister interface {
	ListUsers(ctx context.Context) ([]models.Account, error)
}

// ExportFile is a rendered roster ready to be served or saved.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

var rosterHeaders = []string{"ID", "Username", "Email", "Name", "Status", "Login Attempts", "Created At"}

// UserExportService renders the user roster as CSV or PDF.
type UserExportService struct {
	repo   userLister
	logger *zap.Logger
	now    func() time.Time
}

// NewUserExportService constructs a UserExportService.
func NewUserExportService(repo userLister, logger *zap.Logger) *UserExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserExportService{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Export renders every user in the requested format.
func (s *UserExportService) Export(ctx context.Context, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to fetch users")
	}

	dataset := export.Dataset{Title: "Registered Users", Headers: rosterHeaders, Rows: make([][]string, 0, len(users))}
	for _, u := range users {
		dataset.Rows = append(dataset.Rows, []string{
			u.ID,
			u.Username,
			u.Email,
			u.Name,
			string(u.Status),
			strconv.Itoa(u.LoginAttempts),
			u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	data, err := export.Render(format, dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to render export")
	}

	s.logger.Info("user roster exported", zap.String("format", string(format)), zap.Int("rows", len(users)))
	return &ExportFile{
		Filename:    fmt.Sprintf("users_%s.%s", s.now().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}
