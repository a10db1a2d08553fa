package ports

import (
	"context"
	"time"

	"cctvdash/internal/core/domain"
)

// BackendAPI is the HTTP surface of the camera/presence backend.
type BackendAPI interface {
	ListCameras(ctx context.Context) ([]domain.CameraDescriptor, error)
	ListEmployees(ctx context.Context) ([]domain.EmployeeDescriptor, error)
	PresenceUpdates(ctx context.Context) ([]domain.PresenceUpdate, error)
	EmployeeLocation(ctx context.Context, id domain.EmployeeID) (string, error)
	StartAI(ctx context.Context) error
	StopAI(ctx context.Context) error
}

// StreamCommandSender delivers start/stop requests to the capture pipeline.
type StreamCommandSender interface {
	SendCommand(ctx context.Context, cmd domain.StreamCommand) error
}

// EventSink accepts inbound events for the dashboard event loop.
type EventSink interface {
	Post(ctx context.Context, event domain.Event) error
}

// PushChannel is the bidirectional message channel to the backend. Run
// blocks, delivering inbound events to sink until ctx is cancelled.
type PushChannel interface {
	StreamCommandSender
	Run(ctx context.Context, sink EventSink) error
	Connected() bool
	Close() error
}

// SnapshotSink receives every published snapshot. Publish is called from the
// event loop and must not block.
type SnapshotSink interface {
	Publish(snapshot domain.Snapshot)
}

// CameraSelector lets the presence store follow a tracked employee onto the
// camera named by their location.
type CameraSelector interface {
	SelectByName(name string) (domain.SelectOutcome, bool)
}

// DashboardMetrics records core activity. Implementations must be safe for
// concurrent use.
type DashboardMetrics interface {
	RecordFrame(outcome domain.FrameOutcome)
	RecordStreamCommand(cmd domain.StreamCommandType, err error)
	RecordSessionState(state domain.SessionState)
	RecordPresence(stats domain.PresenceStats)
	RecordPresenceUpdate(outcome domain.ApplyOutcome)
	RecordTrack(outcome string)
	RecordBackendRequest(endpoint string, duration time.Duration, err error)
	RecordConnectivity(online bool)
	RecordSnapshotPublished()
}
