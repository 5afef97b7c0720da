package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundseg/internal/config"
)

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name string
		in   config.RateLimitConfig
		want RateLimitConfig
	}{
		{"defaults", config.RateLimitConfig{}, DefaultConfig()},
		{"overrides", config.RateLimitConfig{RPS: 2, Burst: 3, CleanupInterval: 30, MaxAge: 60}, RateLimitConfig{
			RPS:             2,
			Burst:           3,
			CleanupInterval: 30 * time.Second,
			MaxAge:          time.Minute,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromConfig(tt.in))
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := gin.New()
	router.Use(RateLimitMiddleware(ctx, RateLimitConfig{
		RPS:             0.001,
		Burst:           2,
		CleanupInterval: time.Hour,
		MaxAge:          time.Hour,
	}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClients_Sweep(t *testing.T) {
	cs := newClients(RateLimitConfig{RPS: 1, Burst: 1, MaxAge: time.Minute})
	now := time.Now()

	allowed, _ := cs.allow("a", now.Add(-2*time.Minute))
	require.True(t, allowed)
	allowed, _ = cs.allow("b", now)
	require.True(t, allowed)

	cs.sweep(now)
	assert.Equal(t, 1, cs.size())
}
