package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crowdwatch-api/internal/middleware"
	"github.com/noah-isme/crowdwatch-api/internal/models"
	"github.com/noah-isme/crowdwatch-api/internal/service"
	"github.com/noah-isme/crowdwatch-api/pkg/response"
)

type userAdminService interface {
	ListUsers(ctx context.Context) (*models.UserList, error)
	DeleteUser(ctx context.Context, admin *models.JWTClaims, userID string) error
}

type userExporter interface {
	Export(ctx context.Context, format string) (*service.ExportFile, error)
}

// AdminHandler serves the administrator user-management endpoints.
type AdminHandler struct {
	users    userAdminService
	exporter userExporter
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(users userAdminService, exporter userExporter) *AdminHandler {
	return &AdminHandler{users: users, exporter: exporter}
}

// ListUsers godoc
// @Summary List users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserList
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	list, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// DeleteUser godoc
// @Summary Delete a user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} response.MessageBody
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /admin/users/{userId} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.users.DeleteUser(c.Request.Context(), middleware.Claims(c), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "User deleted successfully")
}

// ExportUsers godoc
// @Summary Export the user roster
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /admin/users/export [get]
func (h *AdminHandler) ExportUsers(c *gin.Context) {
	file, err := h.exporter.Export(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}
