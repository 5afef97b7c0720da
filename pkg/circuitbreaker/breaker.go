// Package circuitbreaker guards calls to the tracking backends and the
// redelivery cache.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"groundseg/internal/config"
	"groundseg/pkg/errors"
	"groundseg/pkg/metrics"
)

const (
	defaultMaxRequests  = 3
	defaultInterval     = 60 * time.Second
	defaultTimeout      = 60 * time.Second
	defaultMinRequests  = 3
	defaultFailureRatio = 0.5

	// StateDisabled is what State reports for a nil Breaker.
	StateDisabled = "disabled"
)

// Settings turns the circuit_breaker section into gobreaker settings.
// Zero values keep the defaults.
func Settings(name string, cfg config.CircuitBreakerConfig) gobreaker.Settings {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = defaultMinRequests
	}
	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = defaultFailureRatio
	}

	s := gobreaker.Settings{
		Name:        name,
		MaxRequests: defaultMaxRequests,
		Interval:    defaultInterval,
		Timeout:     defaultTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio
		},
		IsSuccessful: healthyOutcome,
		OnStateChange: func(name string, _, to gobreaker.State) {
			setStateMetric(name, to)
		},
	}
	if cfg.MaxRequests > 0 {
		s.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		s.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		s.Timeout = cfg.Timeout
	}
	return s
}

// healthyOutcome reports whether err says nothing bad about the backend.
// Missing records, conflicts and other fatal outcomes are answers, and a
// caller giving up is not the backend's fault.
func healthyOutcome(err error) bool {
	if err == nil {
		return true
	}
	if stderrors.Is(err, context.Canceled) {
		return true
	}
	return errors.IsNotFound(err) || errors.IsFatal(err)
}

// Breaker wraps a gobreaker.CircuitBreaker. A nil Breaker is a disabled
// one: Run calls straight through.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func New(name string, cfg config.CircuitBreakerConfig) *Breaker {
	cb := gobreaker.NewCircuitBreaker(Settings(name, cfg))
	setStateMetric(name, cb.State())
	return &Breaker{cb: cb}
}

// NewIfEnabled returns nil when cfg.Enabled is false.
func NewIfEnabled(name string, cfg config.CircuitBreakerConfig) *Breaker {
	if !cfg.Enabled {
		return nil
	}
	return New(name, cfg)
}

// Run executes fn under the breaker. A rejected call returns an error
// wrapping gobreaker.ErrOpenState or gobreaker.ErrTooManyRequests.
func (b *Breaker) Run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil {
		return fn()
	}

	state := b.cb.State().String()
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	metrics.CircuitBreakerRequests.WithLabelValues(b.cb.Name(), state).Inc()
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerFailures.WithLabelValues(b.cb.Name()).Inc()
		return fmt.Errorf("circuit breaker %s rejected call: %w", b.cb.Name(), err)
	}
	if !healthyOutcome(err) {
		metrics.CircuitBreakerFailures.WithLabelValues(b.cb.Name()).Inc()
	}
	return err
}

func (b *Breaker) State() string {
	if b == nil {
		return StateDisabled
	}
	return b.cb.State().String()
}

func (b *Breaker) IsOpen() bool {
	return b != nil && b.cb.State() == gobreaker.StateOpen
}

func setStateMetric(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
}
