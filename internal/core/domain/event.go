package domain

import "time"

type EventKind string

const (
	EventCameraFrame    EventKind = "camera_frame"
	EventAIStatus       EventKind = "ai_status_update"
	EventPresenceBatch  EventKind = "employee_status_update"
	EventLocationResult EventKind = "location_result"
	EventConnectivity   EventKind = "connectivity"
)

// Event is anything the event loop can dispatch.
type Event interface {
	Kind() EventKind
}

// FrameEvent carries one frame for the stream published at Address. Address
// is empty when the producer does not tag frames.
type FrameEvent struct {
	Address    string
	Payload    FramePayload
	ReceivedAt time.Time
}

func (FrameEvent) Kind() EventKind { return EventCameraFrame }

type AIStatusEvent struct {
	Active bool
}

func (AIStatusEvent) Kind() EventKind { return EventAIStatus }

// PresenceBatchEvent carries updates from the status poll or the push topic.
type PresenceBatchEvent struct {
	Updates []PresenceUpdate
	Source  string
}

func (PresenceBatchEvent) Kind() EventKind { return EventPresenceBatch }

type LocationResultEvent struct {
	Result LocationResult
}

func (LocationResultEvent) Kind() EventKind { return EventLocationResult }

// ConnectivityEvent reports a transport becoming reachable or unreachable.
type ConnectivityEvent struct {
	Online bool
	Source string
	Reason string
}

func (ConnectivityEvent) Kind() EventKind { return EventConnectivity }
