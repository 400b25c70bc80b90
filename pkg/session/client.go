// Package session keeps a dashboard client signed in. Every authenticated
// request goes through Client.Do, which refreshes the access token shortly
// before it expires and retries once when the server answers 401.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/crowdwatch-api/pkg/expiry"
)

// DefaultSkew is how long before expiry the client refreshes proactively.
const DefaultSkew = 30 * time.Second

// DefaultRefreshTimeout bounds one shared refresh request.
const DefaultRefreshTimeout = 30 * time.Second

// ErrLoginRequired means the session cannot continue without new
// credentials. The store has been cleared when it is returned.
var ErrLoginRequired = errors.New("session: login required")

// APIError is a non-2xx response from the auth server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// TokenPair is returned by login and signup.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	Message      string `json:"message,omitempty"`
}

// Identity is the token payload echoed by /me.
type Identity struct {
	Subject  string `json:"sub"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// SignupRequest creates a user account.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Client talks to the auth server on behalf of one signed-in principal.
type Client struct {
	baseURL         string
	http            *http.Client
	store           Store
	now             func() time.Time
	skew            time.Duration
	refreshTimeout  time.Duration
	logger          *zap.Logger
	onLoginRequired func()
	refreshes       singleflight.Group
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSkew overrides DefaultSkew.
func WithSkew(d time.Duration) Option {
	return func(c *Client) { c.skew = d }
}

// WithRefreshTimeout overrides DefaultRefreshTimeout.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.refreshTimeout = d }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// OnLoginRequired registers a hook fired whenever the session is dropped.
func OnLoginRequired(fn func()) Option {
	return func(c *Client) { c.onLoginRequired = fn }
}

// New builds a client for the API rooted at baseURL, e.g.
// http://127.0.0.1:3000/api.
func New(baseURL string, store Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		store:   store,
		now:     time.Now,
		skew:    DefaultSkew,
		logger:  zap.NewNop(),
	}
	c.refreshTimeout = DefaultRefreshTimeout
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL resolves a path against the API root.
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Login authenticates a user and stores the issued tokens.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	return c.authenticate(ctx, "/login", map[string]string{"username": username, "password": password})
}

// AdminLogin authenticates an administrator and stores the issued tokens.
func (c *Client) AdminLogin(ctx context.Context, username, password string) (*TokenPair, error) {
	return c.authenticate(ctx, "/admin-login", map[string]string{"username": username, "password": password})
}

// Signup creates a user and stores the issued tokens.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*TokenPair, error) {
	return c.authenticate(ctx, "/signup", req)
}

func (c *Client) authenticate(ctx context.Context, path string, payload interface{}) (*TokenPair, error) {
	var pair TokenPair
	if err := c.postJSON(ctx, path, payload, &pair); err != nil {
		return nil, err
	}
	if err := c.saveTokens(pair.AccessToken, pair.ExpiresIn); err != nil {
		return nil, err
	}
	if err := c.store.Set(KeyRefreshToken, pair.RefreshToken); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Logout revokes the refresh token on the server, ignoring failures, and
// always clears the local session.
func (c *Client) Logout(ctx context.Context) error {
	refresh, err := c.store.Get(KeyRefreshToken)
	if err == nil && refresh != "" {
		if err := c.postJSON(ctx, "/logout", map[string]string{"refreshToken": refresh}, nil); err != nil {
			c.logger.Warn("logout request failed", zap.Error(err))
		}
	}
	return c.store.Clear()
}

// Me returns the identity behind the current access token.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL("/me"), nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		OK   bool     `json:"ok"`
		User Identity `json:"user"`
	}
	if err := c.DoJSON(req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Refresh exchanges the stored refresh token for a new access token and
// stores it with its recomputed expiry. Concurrent callers share one request.
// The shared request is detached from ctx and bounded by the refresh
// timeout, so one caller giving up does not fail the others. A caller whose
// ctx ends first gets ctx.Err() while the request completes in the
// background.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	ch := c.refreshes.DoChan("refresh", func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return c.refresh(flightCtx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	refresh, err := c.store.Get(KeyRefreshToken)
	if err != nil {
		return "", err
	}
	if refresh == "" {
		return "", errors.New("no refresh token available")
	}
	var out struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   string `json:"expiresIn"`
	}
	if err := c.postJSON(ctx, "/refresh", map[string]string{"refreshToken": refresh}, &out); err != nil {
		return "", err
	}
	if err := c.saveTokens(out.AccessToken, out.ExpiresIn); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Do sends req with the current access token. It refreshes first when the
// token is within the skew window of expiry, and on a 401 refreshes and
// retries exactly once. A failed refresh clears the session and returns
// ErrLoginRequired; a refresh abandoned because the request context ended
// returns the context error and keeps the session. The caller owns the
// returned response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := makeReplayable(req); err != nil {
		return nil, err
	}

	access, err := c.store.Get(KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, c.loginRequired(errors.New("no access token"))
	}

	if c.expiresSoon() {
		if access, err = c.Refresh(ctx); err != nil {
			return nil, c.refreshFailed(ctx, err)
		}
	}

	resp, err := c.send(req, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	if access, err = c.Refresh(ctx); err != nil {
		return nil, c.refreshFailed(ctx, err)
	}
	retry := req.Clone(ctx)
	if req.GetBody != nil {
		if retry.Body, err = req.GetBody(); err != nil {
			return nil, err
		}
	}
	return c.send(retry, access)
}

// DoJSON runs Do and decodes a 2xx JSON body into out. Other statuses are
// returned as *APIError.
func (c *Client) DoJSON(req *http.Request, out interface{}) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) send(req *http.Request, access string) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+access)
	return c.http.Do(req)
}

func (c *Client) expiresSoon() bool {
	raw, err := c.store.Get(KeyTokenExpiry)
	if err != nil || raw == "" {
		return false
	}
	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return c.now().UnixMilli() > expiresAt-c.skew.Milliseconds()
}

func (c *Client) saveTokens(access, expiresIn string) error {
	if access == "" {
		return errors.New("server returned no access token")
	}
	if err := c.store.Set(KeyAccessToken, access); err != nil {
		return err
	}
	expiresAt := c.now().UnixMilli() + expiry.Millis(expiresIn)
	return c.store.Set(KeyTokenExpiry, strconv.FormatInt(expiresAt, 10))
}

// refreshFailed ends the session unless the failure came from the caller's
// own context.
func (c *Client) refreshFailed(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return c.loginRequired(err)
}

func (c *Client) loginRequired(cause error) error {
	c.logger.Info("session ended, login required", zap.Error(cause))
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear session", zap.Error(err))
	}
	if c.onLoginRequired != nil {
		c.onLoginRequired()
	}
	return fmt.Errorf("%w: %v", ErrLoginRequired, cause)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// CheckResponse returns nil for a 2xx response. Otherwise it consumes and
// closes the body and returns an *APIError.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck
	return errorFromResponse(resp)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", resp.Request.URL.Path, err)
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &APIError{Status: resp.StatusCode, Code: body.Code, Message: body.Error}
}

// makeReplayable buffers a body that cannot be re-read so the 401 retry can
// resend it.
func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	raw, err := io.ReadAll(req.Body)
	req.Body.Close() //nolint:errcheck
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close() //nolint:errcheck
}
