package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/crowdwatch-api/internal/service"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
	"github.com/noah-isme/crowdwatch-api/pkg/response"
)

type hitCounter interface {
	Enabled() bool
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// LoginRateLimiter caps login attempts per client IP. Counters live in Redis
// when configured and in process memory otherwise, or while Redis is failing.
type LoginRateLimiter struct {
	store   hitCounter
	maxHits int
	window  time.Duration
	logger  *zap.Logger
	metrics *service.MetricsService
	now     func() time.Time

	mu        sync.Mutex
	hitByIP   map[string][]time.Time
	maxMemory int
}

// NewLoginRateLimiter constructs a limiter. store may be nil.
func NewLoginRateLimiter(store hitCounter, maxHits int, window time.Duration, logger *zap.Logger, metrics *service.MetricsService) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginRateLimiter{
		store:     store,
		maxHits:   maxHits,
		window:    window,
		logger:    logger,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
		hitByIP:   make(map[string][]time.Time),
		maxMemory: 5000,
	}
}

// Middleware rejects requests over the limit with 429 and Retry-After. A
// successful login clears the caller's counter.
func (l *LoginRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, retryAfter := l.allow(c.Request.Context(), ip)
		if !allowed {
			l.metrics.RecordRateLimited()
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			response.Abort(c, appErrors.ErrTooManyRequests)
			return
		}
		c.Next()
		if c.Writer.Status() == http.StatusOK {
			l.reset(c.Request.Context(), ip)
		}
	}
}

func (l *LoginRateLimiter) reset(ctx context.Context, ip string) {
	if l.store != nil && l.store.Enabled() {
		if err := l.store.Reset(ctx, "login:"+ip); err != nil {
			l.logger.Warn("rate limit reset failed", zap.String("ip", ip), zap.Error(err))
		}
	}
	l.mu.Lock()
	delete(l.hitByIP, ip)
	l.mu.Unlock()
}

func (l *LoginRateLimiter) allow(ctx context.Context, ip string) (bool, time.Duration) {
	if l.store != nil && l.store.Enabled() {
		count, ttl, err := l.store.Hit(ctx, "login:"+ip, l.window)
		if err == nil {
			if count > int64(l.maxHits) {
				return false, roundUpSecond(ttl)
			}
			return true, 0
		}
		l.logger.Warn("rate limit store unavailable, using memory", zap.Error(err))
	}
	return l.allowInMemory(ip, l.now())
}

func (l *LoginRateLimiter) allowInMemory(ip string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitByIP[ip]
	filtered := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			filtered = append(filtered, hit)
		}
	}

	if len(filtered) >= l.maxHits {
		l.hitByIP[ip] = filtered
		return false, roundUpSecond(filtered[0].Add(l.window).Sub(now))
	}

	l.hitByIP[ip] = append(filtered, now)

	if len(l.hitByIP) > l.maxMemory {
		for key, value := range l.hitByIP {
			if len(value) == 0 || value[len(value)-1].Before(threshold) {
				delete(l.hitByIP, key)
			}
		}
	}
	return true, 0
}

func roundUpSecond(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	return (d + time.Second - 1).Truncate(time.Second)
}
