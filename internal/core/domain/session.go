package domain

import "time"

type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateLoading   SessionState = "loading"
	StateStreaming SessionState = "streaming"
	StateError     SessionState = "error"
)

// Error messages surfaced in SessionView.LastError.
const (
	ErrMsgCameraUnavailable = "Camera Unavailable"
	ErrMsgStreamError       = "Stream Error"
)

type StreamCommandType string

const (
	CommandStartStream StreamCommandType = "start_stream"
	CommandStopStream  StreamCommandType = "stop_stream"
)

// StreamCommand is an outbound request to the capture pipeline.
type StreamCommand struct {
	Type     StreamCommandType `json:"type"`
	CameraID CameraID          `json:"cameraId"`
	Address  string            `json:"address"`
}

// SessionView is an immutable copy of the stream session.
type SessionView struct {
	State     SessionState `json:"state"`
	CameraID  CameraID     `json:"cameraId,omitempty"`
	Address   string       `json:"address,omitempty"`
	LastError string       `json:"lastError,omitempty"`
	Frame     string       `json:"frame,omitempty"`
	FrameSeq  uint64       `json:"frameSeq"`
	AIActive  bool         `json:"aiActive"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// FrameOutcome is what the session did with a received frame.
type FrameOutcome int

const (
	FrameDisplayed FrameOutcome = iota
	FrameStale
	FrameSentinel
	FrameMalformed
)

func (o FrameOutcome) String() string {
	switch o {
	case FrameDisplayed:
		return "displayed"
	case FrameStale:
		return "stale"
	case FrameSentinel:
		return "sentinel"
	case FrameMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}
