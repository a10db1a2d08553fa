package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"
	"cctvdash/pkg/circuitbreaker"
	"cctvdash/pkg/retry"
	"cctvdash/pkg/tracing"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var _ ports.BackendAPI = (*Client)(nil)

const (
	pathCameras          = "/api/cameras"
	pathEmployees        = "/api/employees"
	pathEmployeeStatus   = "/api/employees/status"
	pathEmployeeLocation = "/api/employee/{id}/location"
	pathAIStart          = "/api/ai/start"
	pathAIStop           = "/api/ai/stop"
)

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	Retry          retry.Policy
	CircuitBreaker circuitbreaker.Config
}

// Client talks to the camera/presence backend REST API. Only the list
// endpoints used by a (re)load are retried with backoff; the status poll and
// location lookups are sent once and the next poll is their retry. POSTs are
// sent once. Every request goes through one circuit breaker so a dead backend
// fails fast.
type Client struct {
	http    *resty.Client
	retry   retry.Policy
	breaker *circuitbreaker.CircuitBreaker
	metrics ports.DashboardMetrics
	logger  *zap.SugaredLogger
}

type locationResponse struct {
	EmployeeID string `json:"employeeId"`
	Location   string `json:"location"`
}

type aiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient validates cfg and builds a client. Zero retry and breaker
// settings fall back to their package defaults.
func NewClient(cfg Config, metrics ports.DashboardMetrics, logger *zap.SugaredLogger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend client: invalid base url %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.CircuitBreaker.FailureThreshold <= 0 {
		cfg.CircuitBreaker = circuitbreaker.DefaultConfig()
	}

	r := resty.New()
	r.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	r.SetHeader("Accept", "application/json")
	r.SetTimeout(cfg.RequestTimeout)

	breaker := circuitbreaker.New(cfg.CircuitBreaker)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("Backend circuit breaker state changed", "from", from, "to", to)
	})

	policy := cfg.Retry
	policy.OnRetry = func(attempt int, err error) {
		logger.Debugw("Retrying backend request", "attempt", attempt, "error", err)
	}

	return &Client{
		http:    r,
		retry:   policy,
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// ListCameras fetches the camera list for a (re)load.
func (c *Client) ListCameras(ctx context.Context) ([]domain.CameraDescriptor, error) {
	var cameras []domain.CameraDescriptor
	err := c.get(ctx, "cameras", pathCameras, c.retry, nil, &cameras)
	return cameras, err
}

func (c *Client) ListEmployees(ctx context.Context) ([]domain.EmployeeDescriptor, error) {
	var employees []domain.EmployeeDescriptor
	err := c.get(ctx, "employees", pathEmployees, c.retry, nil, &employees)
	return employees, err
}

// PresenceUpdates fetches the status batch for one poll.
func (c *Client) PresenceUpdates(ctx context.Context) ([]domain.PresenceUpdate, error) {
	var updates []domain.PresenceUpdate
	err := c.get(ctx, "employees_status", pathEmployeeStatus, retry.NoRetry(), nil, &updates)
	return updates, err
}

func (c *Client) EmployeeLocation(ctx context.Context, id domain.EmployeeID) (string, error) {
	var resp locationResponse
	err := c.get(ctx, "employee_location", pathEmployeeLocation, retry.NoRetry(), map[string]string{"id": string(id)}, &resp,
		tracing.EmployeeIDKey.String(string(id)))
	if err != nil {
		return "", err
	}
	return resp.Location, nil
}

func (c *Client) StartAI(ctx context.Context) error {
	return c.postAI(ctx, "ai_start", pathAIStart)
}

func (c *Client) StopAI(ctx context.Context) error {
	return c.postAI(ctx, "ai_stop", pathAIStop)
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

func (c *Client) get(ctx context.Context, endpoint, path string, policy retry.Policy, params map[string]string, out interface{}, attrs ...attribute.KeyValue) error {
	return c.do(ctx, http.MethodGet, endpoint, policy, attrs, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParams(params).
			SetResult(out).
			SetError(&errorResponse{}).
			Get(path)
		return checkResponse(resp, err)
	})
}

func (c *Client) postAI(ctx context.Context, endpoint, path string) error {
	return c.do(ctx, http.MethodPost, endpoint, retry.NoRetry(), nil, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&aiResponse{}).
			SetError(&aiResponse{}).
			Post(path)
		if err := checkResponse(resp, err); err != nil {
			return err
		}
		result, ok := resp.Result().(*aiResponse)
		if ok && result.Status != "" && result.Status != "success" {
			return retry.Permanent(fmt.Errorf("%w: %s", domain.ErrBackendUnavailable, result.Message))
		}
		return nil
	})
}

func (c *Client) do(ctx context.Context, method, endpoint string, policy retry.Policy, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := tracing.TraceBackendRequest(ctx, method, endpoint)
	defer span.End()
	span.SetAttributes(attrs...)

	start := time.Now()
	attempt := 0
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		attempt++
		err := c.breaker.Execute(ctx, fn)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return retry.Permanent(fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err))
		}
		return err
	})
	duration := time.Since(start)

	span.SetAttributes(tracing.AttemptKey.Int(attempt))
	if c.metrics != nil {
		c.metrics.RecordBackendRequest(endpoint, duration, err)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		c.logger.Debugw("Backend request failed", "endpoint", endpoint, "attempts", attempt, "duration", duration, "error", err)
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	return nil
}

// checkResponse turns transport errors and non-2xx responses into errors.
// 4xx responses are permanent; 5xx and transport errors are retried.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := resp.Status()
	switch body := resp.Error().(type) {
	case *errorResponse:
		if body.Error != "" {
			msg = body.Error
		} else if body.Message != "" {
			msg = body.Message
		}
	case *aiResponse:
		if body.Message != "" {
			msg = body.Message
		}
	}

	statusErr := fmt.Errorf("%w: status %d: %s", domain.ErrBackendUnavailable, resp.StatusCode(), msg)
	if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
		return retry.Permanent(statusErr)
	}
	return statusErr
}
