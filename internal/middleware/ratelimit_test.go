package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crowdwatch-api/internal/repository"
	"github.com/noah-isme/crowdwatch-api/internal/service"
)

// limitedRouter answers 401 like a rejected login unless the request carries
// the X-Login-Ok header.
func limitedRouter(l *LoginRateLimiter) *gin.Engine {
	r := gin.New()
	r.POST("/login", l.Middleware(), func(c *gin.Context) {
		if c.GetHeader("X-Login-Ok") != "" {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusUnauthorized)
	})
	return r
}

func postFrom(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loginFrom(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":1234"
	req.Header.Set("X-Login-Ok", "1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginRateLimiterInMemory(t *testing.T) {
	limiter := NewLoginRateLimiter(nil, 2, time.Minute, nil, service.NewMetricsService())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	r := limitedRouter(limiter)

	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)

	w := postFrom(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")

	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.2").Code)

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
}

func TestLoginRateLimiterRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := repository.NewRateLimitRepository(client, "test")
	limiter := NewLoginRateLimiter(store, 1, 30*time.Second, nil, nil)
	r := limitedRouter(limiter)

	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
	w := postFrom(r, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	count, err := client.Get(context.Background(), "test:login:10.0.0.1").Int()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	mr.FastForward(31 * time.Second)
	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
}

func TestLoginRateLimiterFallsBackWhenRedisFails(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	limiter := NewLoginRateLimiter(repository.NewRateLimitRepository(client, ""), 1, time.Minute, nil, nil)
	r := limitedRouter(limiter)

	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(r, "10.0.0.9").Code)
}

func TestLoginRateLimiterSuccessResetsInMemory(t *testing.T) {
	limiter := NewLoginRateLimiter(nil, 2, time.Minute, nil, nil)
	r := limitedRouter(limiter)

	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, loginFrom(r, "10.0.0.1").Code)

	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(r, "10.0.0.1").Code)
}

func TestLoginRateLimiterSuccessResetsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewLoginRateLimiter(repository.NewRateLimitRepository(client, "test"), 2, time.Minute, nil, nil)
	r := limitedRouter(limiter)

	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
	assert.True(t, mr.Exists("test:login:10.0.0.1"))

	assert.Equal(t, http.StatusOK, loginFrom(r, "10.0.0.1").Code)
	assert.False(t, mr.Exists("test:login:10.0.0.1"))

	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusUnauthorized, postFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(r, "10.0.0.1").Code)
}
