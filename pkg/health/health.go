// Package health backs the workers' /health endpoint.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const checkTimeout = 5 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

type CheckerRegistry struct {
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

// Check probes every dependency concurrently, each under its own timeout.
func (r *CheckerRegistry) Check(ctx context.Context) Health {
	h := Health{
		Status: StatusHealthy,
		Checks: make(map[string]CheckResult, len(r.checkers)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, checker := range r.checkers {
		wg.Add(1)
		go func(checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := checker.Check(checkCtx)
			result := CheckResult{
				Status:    StatusHealthy,
				LatencyMS: time.Since(start).Milliseconds(),
				Timestamp: time.Now(),
			}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Message = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			h.Checks[checker.Name()] = result
			if err != nil {
				h.Status = StatusUnhealthy
			}
		}(checker)
	}
	wg.Wait()

	h.Timestamp = time.Now()
	return h
}

// Handler serves the registry's result, 503 when anything is unhealthy.
func Handler(r *CheckerRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := r.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	}
}

type pingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func (c *pingChecker) Name() string {
	return c.name
}

func (c *pingChecker) Check(ctx context.Context) error {
	if err := c.ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", c.name, err)
	}
	return nil
}

func NewPostgreSQLChecker(db *sql.DB) Checker {
	return &pingChecker{name: "postgresql", ping: db.PingContext}
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	return &pingChecker{name: "redis", ping: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

func NewMongoDBChecker(client *mongo.Client) Checker {
	return &pingChecker{name: "mongodb", ping: func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}}
}

// Pinger is satisfied by clients that expose a cheap reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewObjectStorageChecker(store Pinger) Checker {
	return &pingChecker{name: "object_storage", ping: store.Ping}
}
