package domain

import "strings"

type CameraID string

type CameraStatus string

const (
	CameraOnline  CameraStatus = "online"
	CameraOffline CameraStatus = "offline"
	CameraError   CameraStatus = "error"
)

// ParseCameraStatus maps a wire value onto a known status. Unknown values are
// treated as offline.
func ParseCameraStatus(s string) CameraStatus {
	switch CameraStatus(strings.ToLower(strings.TrimSpace(s))) {
	case CameraOnline:
		return CameraOnline
	case CameraError:
		return CameraError
	default:
		return CameraOffline
	}
}

type Camera struct {
	ID       CameraID     `json:"id"`
	Name     string       `json:"name"`
	Address  string       `json:"address"`
	IsActive bool         `json:"isActive"`
	Status   CameraStatus `json:"status"`
}

// CameraDescriptor is the shape returned by GET /cameras. Optional fields are
// filled with defaults by the registry.
type CameraDescriptor struct {
	ID       CameraID `json:"id,omitempty"`
	Name     string   `json:"name"`
	Address  string   `json:"address,omitempty"`
	RTSPURL  string   `json:"rtspUrl,omitempty"`
	IsActive bool     `json:"isActive,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// Locator returns the stream address, preferring Address over the legacy
// rtspUrl key.
func (d CameraDescriptor) Locator() string {
	if d.Address != "" {
		return d.Address
	}
	return d.RTSPURL
}

type SelectOutcome int

const (
	SelectFailed SelectOutcome = iota
	SelectStarted
)

func (o SelectOutcome) String() string {
	if o == SelectStarted {
		return "started"
	}
	return "failed"
}

func (o SelectOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
