package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crowdwatch-api/internal/middleware"
	"github.com/noah-isme/crowdwatch-api/internal/models"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
	"github.com/noah-isme/crowdwatch-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, kind models.AccountKind, req models.LoginRequest) (*models.TokenPair, error)
	Signup(ctx context.Context, req models.SignupRequest) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AccessTokenResponse, error)
	Logout(ctx context.Context, req models.LogoutRequest) error
	Verify(token string) (*models.JWTClaims, error)
	VerifyAdmin(token string) (*models.JWTClaims, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// bindJSON decodes an optional JSON body. An empty body leaves dst zeroed so
// the service reports the missing fields.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid JSON body"))
		return false
	}
	return true
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate a user by username or email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} models.TokenPair
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 429 {object} response.ErrorBody
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	h.login(c, models.KindUser)
}

// AdminLogin godoc
// @Summary Authenticate administrator
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} models.TokenPair
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /admin-login [post]
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, models.KindAdmin)
}

func (h *AuthHandler) login(c *gin.Context, kind models.AccountKind) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), kind, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Signup godoc
// @Summary Register a user
// @Description Creates a user and logs it in. Also served as /register.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SignupRequest true "Signup payload"
// @Success 200 {object} models.TokenPair
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchange a refresh token for a new access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshRequest true "Refresh payload"
// @Success 200 {object} models.AccessTokenResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Router /refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Logout godoc
// @Summary Logout
// @Description Revoke a refresh token. Unknown tokens succeed.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LogoutRequest true "Refresh token"
// @Success 200 {object} response.MessageBody
// @Failure 400 {object} response.ErrorBody
// @Router /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.LogoutRequest
	if !bindJSON(c, &req) {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	if err := h.service.Logout(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Logged out successfully")
}

// Me godoc
// @Summary Current caller
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.MeResponse
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.OK(c, models.MeResponse{OK: true, User: claims})
}

// Verify godoc
// @Summary Verify an access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.VerifyRequest true "Token"
// @Success 200 {object} models.VerifyResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Router /verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	h.verify(c, h.service.Verify)
}

// VerifyAdmin godoc
// @Summary Verify an admin access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.VerifyRequest true "Token"
// @Success 200 {object} models.VerifyResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /verify-admin [post]
func (h *AuthHandler) VerifyAdmin(c *gin.Context) {
	h.verify(c, h.service.VerifyAdmin)
}

func (h *AuthHandler) verify(c *gin.Context, check func(string) (*models.JWTClaims, error)) {
	var req models.VerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	claims, err := check(req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, models.VerifyResponse{OK: true, Payload: claims})
}
