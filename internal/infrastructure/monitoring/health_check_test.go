package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"cctvdash/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestHealthChecker_AllHealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("always", func(context.Context) (bool, error) { return true, nil }, time.Second)
	h.AddPushCheck(func() bool { return true })

	status := h.CheckAll(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["always"])
	assert.Equal(t, "healthy", status.Checks["push_channel"])
	assert.True(t, h.IsReady(context.Background()))
}

func TestHealthChecker_FailingCheck(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("broken", func(context.Context) (bool, error) { return false, errors.New("boom") }, time.Second)
	h.AddCheck("flaky", func(context.Context) (bool, error) { return false, nil }, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "boom", status.Checks["broken"])
	assert.Equal(t, "check failed", status.Checks["flaky"])
	assert.False(t, h.IsReady(context.Background()))
}

func TestHealthChecker_BackendCheck(t *testing.T) {
	snap := domain.Snapshot{}
	h := NewHealthChecker()
	h.AddBackendCheck(func() domain.Snapshot { return snap })

	assert.Equal(t, "initial load pending", h.CheckAll(context.Background()).Checks["backend"])

	snap.Initialized = true
	snap.Connectivity = domain.Connectivity{Online: false, Reason: "connection refused"}
	assert.Equal(t, "connection refused", h.CheckAll(context.Background()).Checks["backend"])

	snap.Connectivity = domain.Connectivity{Online: true}
	assert.True(t, h.IsReady(context.Background()))
}
