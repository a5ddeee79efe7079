package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllChecksHealthy(t *testing.T) {
	checker := New()
	checker.AddReadinessCheck(NewCheckFunc("ok", func(ctx context.Context) error { return nil }))

	status := checker.CheckReadiness(context.Background())
	assert.True(t, status.Healthy)
	require.Len(t, status.Checks, 1)
	assert.True(t, status.Checks[0].Healthy)
}

func TestFailureThresholdTolerance(t *testing.T) {
	checker := New(WithFailureThreshold(3))
	checker.AddReadinessCheck(NewCheckFunc("flaky", func(ctx context.Context) error {
		return errors.New("boom")
	}))

	// First two failures are tolerated.
	assert.True(t, checker.CheckReadiness(context.Background()).Healthy)
	assert.True(t, checker.CheckReadiness(context.Background()).Healthy)
	// Third consecutive failure crosses the threshold.
	assert.False(t, checker.CheckReadiness(context.Background()).Healthy)
}

func TestFailureCountResetsOnSuccess(t *testing.T) {
	var fail bool
	checker := New(WithFailureThreshold(2))
	checker.AddReadinessCheck(NewCheckFunc("recovering", func(ctx context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	}))

	fail = true
	assert.True(t, checker.CheckReadiness(context.Background()).Healthy)

	fail = false
	assert.True(t, checker.CheckReadiness(context.Background()).Healthy)

	// Counter reset, so a single new failure is tolerated again.
	fail = true
	assert.True(t, checker.CheckReadiness(context.Background()).Healthy)
}

func TestCheckTimeout(t *testing.T) {
	checker := New(WithTimeout(10*time.Millisecond), WithFailureThreshold(1))
	checker.AddLivenessCheck(NewCheckFunc("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}))

	start := time.Now()
	status := checker.CheckLiveness(context.Background())
	assert.False(t, status.Healthy)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestHandlersReportStatus(t *testing.T) {
	checker := New(WithFailureThreshold(1))
	checker.AddLivenessCheck(NewCheckFunc("proc", func(ctx context.Context) error { return nil }))
	checker.AddReadinessCheck(NewCheckFunc("dep", func(ctx context.Context) error {
		return errors.New("unreachable")
	}))

	rec := httptest.NewRecorder()
	checker.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	checker.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
