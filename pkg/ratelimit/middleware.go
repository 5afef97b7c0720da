// Package ratelimit throttles the status API per client IP.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"groundseg/internal/config"
	"groundseg/pkg/errors"
	"groundseg/pkg/metrics"
)

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// FromConfig reads the status_api.rate_limit section. Intervals are in
// seconds; zero values keep the defaults.
func FromConfig(cfg config.RateLimitConfig) RateLimitConfig {
	out := DefaultConfig()
	if cfg.RPS > 0 {
		out.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	if cfg.MaxAge > 0 {
		out.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	return out
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clients holds one token bucket per IP.
type clients struct {
	cfg RateLimitConfig
	mu  sync.Mutex
	m   map[string]*client
}

func newClients(cfg RateLimitConfig) *clients {
	return &clients{cfg: cfg, m: make(map[string]*client)}
}

// allow takes a token for ip and returns the tokens left.
func (c *clients) allow(ip string, now time.Time) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.m[ip]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(rate.Limit(c.cfg.RPS), c.cfg.Burst)}
		c.m[ip] = cl
	}
	cl.lastSeen = now

	if !cl.limiter.AllowN(now, 1) {
		return false, 0
	}
	remaining := int(cl.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining
}

// sweep drops clients idle for longer than MaxAge.
func (c *clients) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ip, cl := range c.m {
		if now.Sub(cl.lastSeen) > c.cfg.MaxAge {
			delete(c.m, ip)
		}
	}
}

func (c *clients) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// RateLimitMiddleware limits each client IP. Idle limiters are evicted until
// ctx is done.
func RateLimitMiddleware(ctx context.Context, cfg RateLimitConfig) gin.HandlerFunc {
	cs := newClients(cfg)

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cs.sweep(now)
			}
		}
	}()

	limit := strconv.Itoa(int(cfg.RPS))

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = c.RemoteIP()
		}

		allowed, remaining := cs.allow(ip, time.Now())
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(errors.ToHTTPStatus(errors.ErrRateLimited), errors.ToErrorResponse(errors.ErrRateLimited))
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Next()
	}
}
