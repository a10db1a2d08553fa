package domain

import "strings"

type EmployeeID string

type PresenceStatus string

const (
	PresencePresent PresenceStatus = "present"
	PresenceAbsent  PresenceStatus = "absent"
)

const (
	DefaultLastSeen = "Now"
	UnknownLocation = "Unknown"
)

// ParsePresenceStatus normalises backend status strings. "available" is the
// legacy spelling of present; anything unrecognised counts as absent so that
// present + absent always equals the total.
func ParsePresenceStatus(s string) PresenceStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "available":
		return PresencePresent
	default:
		return PresenceAbsent
	}
}

type Employee struct {
	ID       EmployeeID     `json:"id"`
	Name     string         `json:"name"`
	Status   PresenceStatus `json:"status"`
	LastSeen string         `json:"lastSeen"`
	Location string         `json:"location"`
}

type EmployeeDescriptor struct {
	ID       EmployeeID `json:"id,omitempty"`
	Name     string     `json:"name"`
	Status   string     `json:"status,omitempty"`
	LastSeen string     `json:"lastSeen,omitempty"`
	Location string     `json:"location,omitempty"`
}

// PresenceUpdate is a partial patch. Empty LastSeen or Location means the
// field was not provided and the stored value is kept.
type PresenceUpdate struct {
	EmployeeID EmployeeID `json:"employeeId"`
	Status     string     `json:"status,omitempty"`
	LastSeen   string     `json:"lastSeen,omitempty"`
	Location   string     `json:"location,omitempty"`
}

type PresenceStats struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Total   int `json:"total"`
}

type ApplyOutcome int

const (
	ApplyMissed ApplyOutcome = iota
	ApplyApplied
)

func (o ApplyOutcome) String() string {
	if o == ApplyApplied {
		return "applied"
	}
	return "missed"
}

type RemoveOutcome int

const (
	RemoveMissed RemoveOutcome = iota
	RemoveRemoved
)

func (o RemoveOutcome) String() string {
	if o == RemoveRemoved {
		return "removed"
	}
	return "missed"
}

type TrackOutcome int

const (
	TrackMissed TrackOutcome = iota
	TrackPending
)

func (o TrackOutcome) String() string {
	if o == TrackPending {
		return "pending"
	}
	return "missed"
}

func (o TrackOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// LocationResult is the answer of GET /employee/{id}/location, delivered
// back to the event loop after the request completes.
type LocationResult struct {
	EmployeeID EmployeeID
	Location   string
	Err        error
}

// TrackResolution describes what a location result changed.
type TrackResolution struct {
	Updated        bool
	Location       string
	CameraSelected bool
	Select         SelectOutcome
}
