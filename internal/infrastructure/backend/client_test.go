package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/pkg/circuitbreaker"
	"cctvdash/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL:        srv.URL,
		RequestTimeout: time.Second,
		Retry:          retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
		CircuitBreaker: circuitbreaker.Config{FailureThreshold: 10, SuccessThreshold: 1, Timeout: time.Minute},
	}, nil, nil)
	require.NoError(t, err)
	return client
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "localhost"}, nil, nil)
	assert.Error(t, err)
}

func TestClient_ListCameras(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cameras", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"id": "cam1", "name": "Lobby", "rtspUrl": "rtsp://10.0.0.5/stream", "isActive": true, "status": "online"},
			{"id": "cam2", "name": "Parking", "address": "rtsp://10.0.0.6/stream"},
		})
	})
	client := newTestClient(t, mux)

	cameras, err := client.ListCameras(context.Background())
	require.NoError(t, err)
	require.Len(t, cameras, 2)
	assert.Equal(t, "rtsp://10.0.0.5/stream", cameras[0].Locator())
	assert.True(t, cameras[0].IsActive)
	assert.Equal(t, "rtsp://10.0.0.6/stream", cameras[1].Locator())
}

func TestClient_PresenceUpdates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/employees/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{
			{"employeeId": "john_smith", "status": "present", "lastSeen": "Just now", "location": "Lobby"},
		})
	})
	client := newTestClient(t, mux)

	updates, err := client.PresenceUpdates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.PresenceUpdate{
		{EmployeeID: "john_smith", Status: "present", LastSeen: "Just now", Location: "Lobby"},
	}, updates)
}

func TestClient_EmployeeLocation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/employee/john_smith/location", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"employeeId": "john_smith",
			"location":   "Main Entrance",
			"history":    []interface{}{},
		})
	})
	client := newTestClient(t, mux)

	location, err := client.EmployeeLocation(context.Background(), "john_smith")
	require.NoError(t, err)
	assert.Equal(t, "Main Entrance", location)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/employees", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database locked"})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]string{{"id": "e1", "name": "John Smith"}})
	})
	client := newTestClient(t, mux)

	employees, err := client.ListEmployees(context.Background())
	require.NoError(t, err)
	assert.Len(t, employees, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_PollAndLookupAreSentOnce(t *testing.T) {
	var polls, lookups atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/employees/status", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy"})
	})
	mux.HandleFunc("/api/employee/e1/location", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database locked"})
	})
	client := newTestClient(t, mux)

	_, err := client.PresenceUpdates(context.Background())
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Equal(t, int32(1), polls.Load())

	_, err = client.EmployeeLocation(context.Background(), "e1")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Equal(t, int32(1), lookups.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cameras", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cameras configured"})
	})
	client := newTestClient(t, mux)

	_, err := client.ListCameras(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "no cameras configured")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_AIControlsAreNotRetried(t *testing.T) {
	var starts, stops atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ai/start", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		starts.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "AI processing started"})
	})
	mux.HandleFunc("/api/ai/stop", func(w http.ResponseWriter, r *http.Request) {
		stops.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Failed to stop AI processing"})
	})
	client := newTestClient(t, mux)

	require.NoError(t, client.StartAI(context.Background()))
	assert.Equal(t, int32(1), starts.Load())

	err := client.StopAI(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to stop AI processing")
	assert.Equal(t, int32(1), stops.Load())
}

func TestClient_AIErrorStatusInSuccessfulResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ai/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "model not loaded"})
	})
	client := newTestClient(t, mux)

	err := client.StartAI(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:        srv.URL,
		RequestTimeout: time.Second,
		Retry:          retry.NoRetry(),
		CircuitBreaker: circuitbreaker.Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute},
	}, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, _ = client.PresenceUpdates(ctx)
	_, _ = client.PresenceUpdates(ctx)
	assert.Equal(t, circuitbreaker.StateOpen, client.BreakerState())

	_, err = client.PresenceUpdates(ctx)
	assert.True(t, errors.Is(err, domain.ErrBackendUnavailable))
	assert.Equal(t, int32(2), calls.Load())
}
