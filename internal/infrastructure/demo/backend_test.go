package demo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/infrastructure/pushchannel"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDemoServer(t *testing.T) (*Backend, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := NewBackend(nil)
	b.Pipeline().FrameInterval = 10 * time.Millisecond
	srv := httptest.NewServer(b.Router())
	t.Cleanup(srv.Close)
	return b, srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestBackend_Cameras(t *testing.T) {
	_, srv := newDemoServer(t)

	var cameras []domain.CameraDescriptor
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/cameras", &cameras))
	require.Len(t, cameras, 5)
	assert.Equal(t, "Main Entrance", cameras[0].Name)
	assert.True(t, cameras[0].IsActive)
	assert.Equal(t, "rtsp://demo.local/main-entrance", cameras[0].Locator())
}

func TestBackend_EmployeesAndLocation(t *testing.T) {
	_, srv := newDemoServer(t)

	var employees []domain.EmployeeDescriptor
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/employees", &employees))
	require.Len(t, employees, 6)
	assert.Equal(t, "Just now", employees[0].LastSeen)
	assert.Equal(t, "5 min ago", employees[2].LastSeen)
	assert.Equal(t, "2 hours ago", employees[5].LastSeen)

	var location struct {
		Location string `json:"location"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/employee/sarah_johnson/location", &location))
	assert.Equal(t, "Lobby", location.Location)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/employee/nobody/location", &location))
}

func TestBackend_TickChangesPresence(t *testing.T) {
	b, _ := newDemoServer(t)

	updates := b.Tick()
	require.Len(t, updates, 6)
	assert.Equal(t, "absent", updates[0].Status)
	assert.Equal(t, "Just now", updates[0].LastSeen)

	updates = b.Tick()
	updates = b.Tick()
	assert.Equal(t, "present", updates[2].Status)
	assert.Equal(t, "Warehouse", updates[2].Location)
}

func TestBackend_AIControls(t *testing.T) {
	b, srv := newDemoServer(t)

	resp, err := http.Post(srv.URL+"/api/ai/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, b.AIActive())

	resp, err = http.Post(srv.URL+"/api/ai/stop", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.False(t, b.AIActive())
}

func dialPipeline(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/camera", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd domain.StreamCommand) {
	t.Helper()
	data, err := pushchannel.EncodeCommand(cmd)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readFrame(t *testing.T, conn *websocket.Conn) domain.FrameEvent {
	t.Helper()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		event, err := pushchannel.DecodeEvent(data, time.Now())
		require.NoError(t, err)
		if frame, ok := event.(domain.FrameEvent); ok {
			return frame
		}
	}
}

func TestPipeline_StreamsFrames(t *testing.T) {
	_, srv := newDemoServer(t)
	conn := dialPipeline(t, srv)

	sendCommand(t, conn, domain.StreamCommand{Type: domain.CommandStartStream, CameraID: "lobby", Address: "rtsp://demo.local/lobby"})

	frame := readFrame(t, conn)
	assert.Equal(t, "rtsp://demo.local/lobby", frame.Address)
	assert.Equal(t, domain.FrameKindData, frame.Payload.Kind)
	assert.Greater(t, frame.Payload.Size, 0)
}

func TestPipeline_UnavailableCamera(t *testing.T) {
	_, srv := newDemoServer(t)
	conn := dialPipeline(t, srv)

	sendCommand(t, conn, domain.StreamCommand{Type: domain.CommandStartStream, CameraID: "warehouse", Address: UnavailableAddress})

	frame := readFrame(t, conn)
	assert.Equal(t, domain.FrameKindStreamError, frame.Payload.Kind)
	assert.Equal(t, "Camera Unavailable", frame.Payload.Reason)
}

func TestRenderFrame(t *testing.T) {
	frame, err := renderFrame(3, true)
	require.NoError(t, err)
	payload := domain.ParseFramePayload(frame)
	assert.Equal(t, domain.FrameKindData, payload.Kind)
}
