package monitoring

import (
	"context"
	"errors"
	"sync"
	"time"

	"cctvdash/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

type HealthChecker struct {
	checks []HealthCheck
	mu     sync.RWMutex
}

type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) (bool, error)
	Timeout time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make([]HealthCheck, 0),
	}
}

// AddCheck registers a named check. A check that returns false or an error
// marks the whole status unhealthy.
func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) (bool, error), timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, HealthCheck{
		Name:    name,
		Check:   check,
		Timeout: timeout,
	})
}

// CheckAll runs every check and aggregates the results.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for _, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		healthy, err := check.Check(checkCtx)
		cancel()

		switch {
		case err != nil:
			status.Status = "unhealthy"
			status.Checks[check.Name] = err.Error()
		case !healthy:
			status.Status = "unhealthy"
			status.Checks[check.Name] = "check failed"
		default:
			status.Checks[check.Name] = "healthy"
		}
	}

	return status
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == "healthy"
}

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddBackendCheck reports the backend connectivity last seen by the
// dashboard.
func (h *HealthChecker) AddBackendCheck(snapshot func() domain.Snapshot) {
	h.AddCheck("backend", func(context.Context) (bool, error) {
		snap := snapshot()
		if !snap.Initialized {
			return false, errors.New("initial load pending")
		}
		if !snap.Connectivity.Online {
			reason := snap.Connectivity.Reason
			if reason == "" {
				reason = "backend offline"
			}
			return false, errors.New(reason)
		}
		return true, nil
	}, time.Second)
}

// AddPushCheck reports whether the push channel currently holds a
// connection.
func (h *HealthChecker) AddPushCheck(connected func() bool) {
	h.AddCheck("push_channel", func(context.Context) (bool, error) {
		if !connected() {
			return false, domain.ErrPushNotConnected
		}
		return true, nil
	}, time.Second)
}
