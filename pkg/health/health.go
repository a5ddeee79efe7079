// Package health manages liveness and readiness checks with per-check
// timeouts and consecutive-failure thresholds.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

// Check represents a single health check that can succeed or fail.
type Check interface {
	// Name returns the human-readable name of this check.
	Name() string

	// Check performs the health check. Returns nil if healthy.
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to the Check interface.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a new CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string                    { return c.name }
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult represents the result of a single health check execution.
type CheckResult struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Status represents the overall health status.
type Status struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

// Checker manages and executes health checks for liveness and readiness
// probes.
type Checker struct {
	livenessChecks   []Check
	readinessChecks  []Check
	timeout          time.Duration
	failureCount     map[string]int
	failureThreshold int
	logger           logger.Logger
	mu               sync.RWMutex
}

// Option is a functional option for configuring a Checker.
type Option func(*Checker)

// WithTimeout sets the timeout for individual health checks. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(h *Checker) { h.timeout = d }
}

// WithLogger sets the logger for health check operations.
func WithLogger(l logger.Logger) Option {
	return func(h *Checker) { h.logger = l }
}

// WithFailureThreshold sets how many consecutive failures are tolerated
// before a check reports unhealthy. Default 3.
func WithFailureThreshold(threshold int) Option {
	return func(h *Checker) {
		if threshold > 0 {
			h.failureThreshold = threshold
		}
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	h := &Checker{
		timeout:          5 * time.Second,
		failureThreshold: 3,
		failureCount:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddLivenessCheck adds a liveness check. Liveness checks determine whether
// the process should be restarted.
func (h *Checker) AddLivenessCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.livenessChecks = append(h.livenessChecks, check)
}

// AddReadinessCheck adds a readiness check. Readiness checks determine
// whether the service can handle traffic.
func (h *Checker) AddReadinessCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readinessChecks = append(h.readinessChecks, check)
}

// CheckLiveness executes all liveness checks.
func (h *Checker) CheckLiveness(ctx context.Context) *Status {
	h.mu.RLock()
	checks := h.livenessChecks
	h.mu.RUnlock()
	return h.executeChecks(ctx, checks)
}

// CheckReadiness executes all readiness checks.
func (h *Checker) CheckReadiness(ctx context.Context) *Status {
	h.mu.RLock()
	checks := h.readinessChecks
	h.mu.RUnlock()
	return h.executeChecks(ctx, checks)
}

func (h *Checker) executeChecks(ctx context.Context, checks []Check) *Status {
	status := &Status{Healthy: true}

	for _, check := range checks {
		result := h.runCheck(ctx, check)
		status.Checks = append(status.Checks, result)
		if !result.Healthy {
			status.Healthy = false
		}
	}
	return status
}

func (h *Checker) runCheck(ctx context.Context, check Check) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(checkCtx)
	latency := time.Since(start)

	h.mu.Lock()
	defer h.mu.Unlock()

	if err == nil {
		h.failureCount[check.Name()] = 0
		return CheckResult{Name: check.Name(), Healthy: true, Latency: latency}
	}

	h.failureCount[check.Name()]++
	failures := h.failureCount[check.Name()]

	if h.logger != nil {
		h.logger.Warn("health check failed",
			logger.StringField("check", check.Name()),
			logger.IntField("consecutive_failures", failures),
			logger.ErrorField(err))
	}

	// Tolerate transient failures up to the threshold.
	if failures < h.failureThreshold {
		return CheckResult{Name: check.Name(), Healthy: true, Error: err.Error(), Latency: latency}
	}

	return CheckResult{
		Name:    check.Name(),
		Healthy: false,
		Error:   fmt.Sprintf("%d consecutive failures, last: %v", failures, err),
		Latency: latency,
	}
}
