package services

import (
	"encoding/base64"
	"testing"

	"cctvdash/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJPEG = base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46})

func dataFrame(address string) domain.FrameEvent {
	return domain.FrameEvent{Address: address, Payload: domain.ParseFramePayload(testJPEG)}
}

func rawFrame(address, raw string) domain.FrameEvent {
	return domain.FrameEvent{Address: address, Payload: domain.ParseFramePayload(raw)}
}

func TestStreamSession_StartThenFrame(t *testing.T) {
	s := NewStreamSession(nil, nil)
	require.Equal(t, domain.StateIdle, s.State())

	outcome := s.RequestStart("cam1", "rtsp://a1")
	assert.Equal(t, domain.SelectStarted, outcome)
	assert.Equal(t, domain.StateLoading, s.State())
	assert.Equal(t, []domain.StreamCommand{
		{Type: domain.CommandStartStream, CameraID: "cam1", Address: "rtsp://a1"},
	}, s.DrainCommands())

	assert.Equal(t, domain.FrameDisplayed, s.OnFrame(dataFrame("rtsp://a1")))
	view := s.View()
	assert.Equal(t, domain.StateStreaming, view.State)
	assert.Equal(t, testJPEG, view.Frame)
	assert.Equal(t, uint64(1), view.FrameSeq)
	assert.Empty(t, view.LastError)
}

func TestStreamSession_SentinelFrame(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	s.OnFrame(dataFrame("rtsp://a1"))

	assert.Equal(t, domain.FrameSentinel, s.OnFrame(rawFrame("rtsp://a1", "Camera Unavailable")))
	view := s.View()
	assert.Equal(t, domain.StateError, view.State)
	assert.Equal(t, "Camera Unavailable", view.LastError)
	assert.Empty(t, view.Frame)

	// a good frame recovers the session
	s.OnFrame(dataFrame("rtsp://a1"))
	assert.Equal(t, domain.StateStreaming, s.State())
	assert.Empty(t, s.View().LastError)
}

func TestStreamSession_SentinelSubstring(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")

	s.OnFrame(rawFrame("", "Failed to open video stream: rtsp://a1"))
	assert.Equal(t, domain.StateError, s.State())
	assert.Equal(t, "Failed to open video stream", s.View().LastError)
}

func TestStreamSession_MalformedFrame(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")

	assert.Equal(t, domain.FrameMalformed, s.OnFrame(rawFrame("rtsp://a1", "%%%garbage%%%")))
	assert.Equal(t, domain.StateError, s.State())
	assert.Equal(t, domain.ErrMsgStreamError, s.View().LastError)
}

func TestStreamSession_InvalidAddress(t *testing.T) {
	for _, addr := range []string{"", "   ", "rtsp://bad host/x"} {
		s := NewStreamSession(nil, nil)
		outcome := s.RequestStart("cam1", addr)

		assert.Equal(t, domain.SelectFailed, outcome, addr)
		assert.Equal(t, domain.StateError, s.State())
		assert.Equal(t, domain.ErrMsgCameraUnavailable, s.View().LastError)
		assert.Empty(t, s.DrainCommands(), "no start command for %q", addr)
		assert.Equal(t, domain.CameraID("cam1"), s.BoundCamera())
	}
}

func TestStreamSession_SwitchStopsPreviousFirst(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	s.OnFrame(dataFrame("rtsp://a1"))
	s.RequestStart("cam2", "rtsp://a2")

	assert.Equal(t, []domain.StreamCommand{
		{Type: domain.CommandStartStream, CameraID: "cam1", Address: "rtsp://a1"},
		{Type: domain.CommandStopStream, CameraID: "cam1", Address: "rtsp://a1"},
		{Type: domain.CommandStartStream, CameraID: "cam2", Address: "rtsp://a2"},
	}, s.DrainCommands())
	assert.Equal(t, domain.StateLoading, s.State())
	assert.Empty(t, s.View().Frame)
}

func TestStreamSession_StaleFramesDiscarded(t *testing.T) {
	metrics := NewMetricsService(nil)
	s := NewStreamSession(metrics, nil)
	s.RequestStart("cam1", "rtsp://a1")
	s.RequestStart("cam2", "rtsp://a2")

	assert.Equal(t, domain.FrameStale, s.OnFrame(dataFrame("rtsp://a1")))
	assert.Equal(t, domain.FrameStale, s.OnFrame(rawFrame("rtsp://a1", "Camera Error")))
	assert.Equal(t, domain.StateLoading, s.State())
	assert.Equal(t, uint64(2), metrics.FrameCount(domain.FrameStale))

	assert.Equal(t, domain.FrameDisplayed, s.OnFrame(dataFrame("rtsp://a2")))
}

func TestStreamSession_StopEndsIdleDespiteLateFrames(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	s.OnFrame(dataFrame("rtsp://a1"))

	assert.True(t, s.RequestStop())
	s.OnFrame(dataFrame("rtsp://a1"))
	s.OnFrame(dataFrame(""))
	s.OnFrame(rawFrame("rtsp://a1", "Camera Unavailable"))

	view := s.View()
	assert.Equal(t, domain.StateIdle, view.State)
	assert.Empty(t, view.Frame)
	assert.Empty(t, view.LastError)
	assert.Empty(t, view.CameraID)

	cmds := s.DrainCommands()
	require.Len(t, cmds, 2)
	assert.Equal(t, domain.CommandStopStream, cmds[1].Type)
}

func TestStreamSession_StopWithoutBindingEmitsNothing(t *testing.T) {
	s := NewStreamSession(nil, nil)
	assert.False(t, s.RequestStop())
	assert.Empty(t, s.DrainCommands())
	assert.Equal(t, domain.StateIdle, s.State())
}

func TestStreamSession_ReselectWhileLiveIsNoop(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	s.DrainCommands()

	assert.Equal(t, domain.SelectStarted, s.RequestStart("cam1", "rtsp://a1"))
	s.OnFrame(dataFrame("rtsp://a1"))
	assert.Equal(t, domain.SelectStarted, s.RequestStart("cam1", "rtsp://a1"))

	assert.Empty(t, s.DrainCommands())
	assert.Equal(t, domain.StateStreaming, s.State())
}

func TestStreamSession_ReselectFromErrorRetries(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	s.OnFrame(rawFrame("rtsp://a1", "Camera Unavailable"))
	s.DrainCommands()

	assert.Equal(t, domain.SelectStarted, s.RequestStart("cam1", "rtsp://a1"))
	assert.Equal(t, []domain.StreamCommand{
		{Type: domain.CommandStopStream, CameraID: "cam1", Address: "rtsp://a1"},
		{Type: domain.CommandStartStream, CameraID: "cam1", Address: "rtsp://a1"},
	}, s.DrainCommands())
	assert.Equal(t, domain.StateLoading, s.State())
}

func TestStreamSession_UndeliveredStartIsReissued(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	gen := s.StartGeneration()
	s.DrainCommands()

	assert.False(t, s.RedeliverStart())
	require.True(t, s.MarkStartUndelivered(gen))
	assert.Equal(t, domain.StateLoading, s.State())

	assert.True(t, s.RedeliverStart())
	assert.Equal(t, []domain.StreamCommand{
		{Type: domain.CommandStartStream, CameraID: "cam1", Address: "rtsp://a1"},
	}, s.DrainCommands())
	assert.False(t, s.RedeliverStart())
}

func TestStreamSession_ReselectAfterUndeliveredStart(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	require.True(t, s.MarkStartUndelivered(s.StartGeneration()))
	s.DrainCommands()

	assert.Equal(t, domain.SelectStarted, s.RequestStart("cam1", "rtsp://a1"))
	// the pipeline never started, so nothing is stopped first
	assert.Equal(t, []domain.StreamCommand{
		{Type: domain.CommandStartStream, CameraID: "cam1", Address: "rtsp://a1"},
	}, s.DrainCommands())
}

func TestStreamSession_UndeliveredReportIgnoredWhenOutdated(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	first := s.StartGeneration()
	s.RequestStart("cam2", "rtsp://a2")
	assert.False(t, s.MarkStartUndelivered(first))

	s.OnFrame(dataFrame("rtsp://a2"))
	assert.False(t, s.MarkStartUndelivered(s.StartGeneration()))

	s.RequestStop()
	assert.False(t, s.MarkStartUndelivered(s.StartGeneration()))
}

func TestStreamSession_StopAfterUndeliveredStartEmitsNothing(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	require.True(t, s.MarkStartUndelivered(s.StartGeneration()))
	s.DrainCommands()

	assert.False(t, s.RequestStop())
	assert.Empty(t, s.DrainCommands())
}

func TestStreamSession_AIStatusIsOrthogonal(t *testing.T) {
	s := NewStreamSession(nil, nil)
	s.RequestStart("cam1", "rtsp://a1")
	s.OnAIStatus(true)

	assert.True(t, s.View().AIActive)
	assert.Equal(t, domain.StateLoading, s.State())

	s.RequestStop()
	assert.True(t, s.View().AIActive)
}
