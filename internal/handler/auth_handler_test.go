package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	"github.com/noah-isme/crowdwatch-api/internal/service"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
)

type fakeAuthSrv struct {
	loginKind   models.AccountKind
	loginReq    models.LoginRequest
	loginErr    error
	signupReq   models.SignupRequest
	signupErr   error
	refreshed   string
	refreshErr  error
	loggedOut   string
	verifyErr   error
	claims      *models.JWTClaims
	deleted     string
	deleteErr   error
	exportedFmt string
}

func (f *fakeAuthSrv) Login(_ context.Context, kind models.AccountKind, req models.LoginRequest) (*models.TokenPair, error) {
	f.loginKind, f.loginReq = kind, req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: "15m"}, nil
}

func (f *fakeAuthSrv) Signup(_ context.Context, req models.SignupRequest) (*models.TokenPair, error) {
	f.signupReq = req
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &models.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: "15m", Message: "Signup successful"}, nil
}

func (f *fakeAuthSrv) Refresh(_ context.Context, token string) (*models.AccessTokenResponse, error) {
	f.refreshed = token
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &models.AccessTokenResponse{AccessToken: "fresh", ExpiresIn: "15m"}, nil
}

func (f *fakeAuthSrv) Logout(_ context.Context, req models.LogoutRequest) error {
	if req.RefreshToken == "" {
		return appErrors.Clone(appErrors.ErrValidation, "Missing refresh token")
	}
	f.loggedOut = req.RefreshToken
	return nil
}

func (f *fakeAuthSrv) Verify(token string) (*models.JWTClaims, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Missing token")
	}
	return f.claims, f.verifyErr
}

func (f *fakeAuthSrv) VerifyAdmin(token string) (*models.JWTClaims, error) {
	claims, err := f.Verify(token)
	if err != nil {
		return nil, err
	}
	if !claims.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not an admin token")
	}
	return claims, nil
}

func (f *fakeAuthSrv) Authenticate(_ context.Context, token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrTokenExpired, "")
	}
	return f.claims, nil
}

func (f *fakeAuthSrv) ListUsers(context.Context) (*models.UserList, error) {
	return &models.UserList{Users: []models.Account{{ID: "u1", Username: "testuser", LoginAttempts: 2}}, Total: 1}, nil
}

func (f *fakeAuthSrv) DeleteUser(_ context.Context, _ *models.JWTClaims, id string) error {
	f.deleted = id
	return f.deleteErr
}

func (f *fakeAuthSrv) Export(_ context.Context, format string) (*service.ExportFile, error) {
	f.exportedFmt = format
	if format == "xml" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return &service.ExportFile{Filename: "users.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("ID\n")}, nil
}

func newTestRouter(f *fakeAuthSrv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	system := NewSystemHandler(service.NewMetricsService())
	system.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }
	Routes{
		Auth:          NewAuthHandler(f),
		Admin:         NewAdminHandler(f, f),
		System:        system,
		Authenticator: f,
	}.Register(r.Group("/api"))
	return r
}

func performRequest(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestLoginRoutesSelectAccountKind(t *testing.T) {
	f := &fakeAuthSrv{}
	r := newTestRouter(f)

	w := performRequest(r, http.MethodPost, "/api/login", `{"username":"testuser","password":"password123"}`, "User-Agent", "crowdctl")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.KindUser, f.loginKind)
	assert.Equal(t, "crowdctl", f.loginReq.UserAgent)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	body := decode(t, w)
	assert.Equal(t, "access", body["accessToken"])
	assert.Equal(t, "refresh", body["refreshToken"])
	assert.Equal(t, "15m", body["expiresIn"])
	assert.NotContains(t, body, "message")

	for _, path := range []string{"/api/admin-login", "/api/admin/login"} {
		f.loginKind = ""
		w = performRequest(r, http.MethodPost, path, `{"username":"admin","password":"admin123"}`)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, models.KindAdmin, f.loginKind, path)
	}
}

func TestLoginErrorsAreFlat(t *testing.T) {
	f := &fakeAuthSrv{loginErr: appErrors.Clone(appErrors.ErrInvalidCredentials, "")}
	r := newTestRouter(f)

	w := performRequest(r, http.MethodPost, "/api/login", `{"username":"testuser","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Invalid credentials", body["error"])
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])

	w = performRequest(r, http.MethodPost, "/api/login", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginEmptyBodyReachesService(t *testing.T) {
	f := &fakeAuthSrv{loginErr: appErrors.Clone(appErrors.ErrMissingCredentials, "")}
	w := performRequest(newTestRouter(f), http.MethodPost, "/api/login", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing username or password", decode(t, w)["error"])
}

func TestSignupAndRegisterShareHandler(t *testing.T) {
	f := &fakeAuthSrv{}
	r := newTestRouter(f)

	for _, path := range []string{"/api/signup", "/api/register"} {
		w := performRequest(r, http.MethodPost, path, `{"username":"newbie","email":"n@example.com","password":"secret1","name":"New"}`)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "Signup successful", decode(t, w)["message"])
		assert.Equal(t, "New", f.signupReq.Name)
	}

	f.signupErr = appErrors.Clone(appErrors.ErrEmailExists, "")
	w := performRequest(r, http.MethodPost, "/api/register", `{"username":"x","email":"n@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already registered", decode(t, w)["error"])
}

func TestRefreshAndLogout(t *testing.T) {
	f := &fakeAuthSrv{}
	r := newTestRouter(f)

	w := performRequest(r, http.MethodPost, "/api/refresh", `{"refreshToken":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", f.refreshed)
	body := decode(t, w)
	assert.Equal(t, "fresh", body["accessToken"])
	assert.NotContains(t, body, "refreshToken")

	f.refreshErr = appErrors.Clone(appErrors.ErrInvalidToken, "Invalid refresh token")
	w = performRequest(r, http.MethodPost, "/api/refresh", `{"refreshToken":"gone"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = performRequest(r, http.MethodPost, "/api/logout", `{"refreshToken":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out successfully", decode(t, w)["message"])
	assert.Equal(t, "abc", f.loggedOut)

	w = performRequest(r, http.MethodPost, "/api/logout", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing refresh token", decode(t, w)["error"])
}

func TestVerifyEndpoints(t *testing.T) {
	claims := &models.JWTClaims{Username: "testuser"}
	claims.Subject = "u1"
	f := &fakeAuthSrv{claims: claims}
	r := newTestRouter(f)

	w := performRequest(r, http.MethodPost, "/api/verify", `{"token":"t"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "u1", body["payload"].(map[string]interface{})["sub"])

	w = performRequest(r, http.MethodPost, "/api/verify", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing token", decode(t, w)["error"])

	w = performRequest(r, http.MethodPost, "/api/verify-admin", `{"token":"t"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not an admin token", decode(t, w)["error"])
}

func TestMeRequiresBearer(t *testing.T) {
	claims := &models.JWTClaims{Username: "testuser", Name: "Test User"}
	claims.Subject = "u1"
	r := newTestRouter(&fakeAuthSrv{claims: claims})

	w := performRequest(r, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing Authorization header", decode(t, w)["error"])

	w = performRequest(r, http.MethodGet, "/api/me", "", "Authorization", "Bearer stale")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decode(t, w)["code"])

	w = performRequest(r, http.MethodGet, "/api/me", "", "Authorization", "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "testuser", user["username"])
	assert.Equal(t, "Test User", user["name"])
}

func TestHealth(t *testing.T) {
	w := performRequest(newTestRouter(&fakeAuthSrv{}), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Auth server is running", body["message"])
	assert.Equal(t, "2026-05-06T07:08:09.000Z", body["timestamp"])
}
