package services

import (
	"sync"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"
)

// MetricsSummary is a point-in-time copy of the in-process counters.
type MetricsSummary struct {
	Frames          map[string]uint64   `json:"frames"`
	StreamCommands  map[string]uint64   `json:"streamCommands"`
	CommandFailures uint64              `json:"commandFailures"`
	PresenceApplied uint64              `json:"presenceApplied"`
	PresenceMissed  uint64              `json:"presenceMissed"`
	Tracks          map[string]uint64   `json:"tracks"`
	BackendFailures map[string]uint64   `json:"backendFailures"`
	Snapshots       uint64              `json:"snapshots"`
	LastState       domain.SessionState `json:"lastState"`
	Online          bool                `json:"online"`
}

// MetricsService keeps in-process counters for the dashboard and forwards
// every observation to an optional exporter (prometheus in production).
type MetricsService struct {
	mu sync.RWMutex

	frames          map[domain.FrameOutcome]uint64
	streamCommands  map[domain.StreamCommandType]uint64
	commandFailures uint64
	presenceApplied uint64
	presenceMissed  uint64
	tracks          map[string]uint64
	backendFailures map[string]uint64
	snapshots       uint64
	lastState       domain.SessionState
	online          bool

	next ports.DashboardMetrics
}

// NewMetricsService creates the in-process counters. When next is not nil
// every record is forwarded to it as well.
func NewMetricsService(next ports.DashboardMetrics) *MetricsService {
	return &MetricsService{
		frames:          make(map[domain.FrameOutcome]uint64),
		streamCommands:  make(map[domain.StreamCommandType]uint64),
		tracks:          make(map[string]uint64),
		backendFailures: make(map[string]uint64),
		lastState:       domain.StateIdle,
		online:          true,
		next:            next,
	}
}

func (m *MetricsService) RecordFrame(outcome domain.FrameOutcome) {
	m.mu.Lock()
	m.frames[outcome]++
	m.mu.Unlock()
	if m.next != nil {
		m.next.RecordFrame(outcome)
	}
}

func (m *MetricsService) RecordStreamCommand(cmd domain.StreamCommandType, err error) {
	m.mu.Lock()
	m.streamCommands[cmd]++
	if err != nil {
		m.commandFailures++
	}
	m.mu.Unlock()
	if m.next != nil {
		m.next.RecordStreamCommand(cmd, err)
	}
}

func (m *MetricsService) RecordSessionState(state domain.SessionState) {
	m.mu.Lock()
	m.lastState = state
	m.mu.Unlock()
	if m.next != nil {
		m.next.RecordSessionState(state)
	}
}

func (m *MetricsService) RecordPresence(stats domain.PresenceStats) {
	if m.next != nil {
		m.next.RecordPresence(stats)
	}
}

func (m *MetricsService) RecordPresenceUpdate(outcome domain.ApplyOutcome) {
	m.mu.Lock()
	if outcome == domain.ApplyApplied {
		m.presenceApplied++
	} else {
		m.presenceMissed++
	}
	m.mu.Unlock()
	if m.next != nil {
		m.next.RecordPresenceUpdate(outcome)
	}
}

func (m *MetricsService) RecordTrack(outcome string) {
	m.mu.Lock()
	m.tracks[outcome]++
	m.mu.Unlock()
	if m.next != nil {
		m.next.RecordTrack(outcome)
	}
}

func (m *MetricsService) RecordBackendRequest(endpoint string, duration time.Duration, err error) {
	if err != nil {
		m.mu.Lock()
		m.backendFailures[endpoint]++
		m.mu.Unlock()
	}
	if m.next != nil {
		m.next.RecordBackendRequest(endpoint, duration, err)
	}
}

func (m *MetricsService) RecordConnectivity(online bool) {
	m.mu.Lock()
	m.online = online
	m.mu.Unlock()
	if m.next != nil {
		m.next.RecordConnectivity(online)
	}
}

func (m *MetricsService) RecordSnapshotPublished() {
	m.mu.Lock()
	m.snapshots++
	m.mu.Unlock()
	if m.next != nil {
		m.next.RecordSnapshotPublished()
	}
}

// FrameCount returns how many frames ended with the given outcome.
func (m *MetricsService) FrameCount(outcome domain.FrameOutcome) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frames[outcome]
}

// Summary returns a copy of the counters.
func (m *MetricsService) Summary() MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSummary{
		Frames:          make(map[string]uint64, len(m.frames)),
		StreamCommands:  make(map[string]uint64, len(m.streamCommands)),
		CommandFailures: m.commandFailures,
		PresenceApplied: m.presenceApplied,
		PresenceMissed:  m.presenceMissed,
		Tracks:          make(map[string]uint64, len(m.tracks)),
		BackendFailures: make(map[string]uint64, len(m.backendFailures)),
		Snapshots:       m.snapshots,
		LastState:       m.lastState,
		Online:          m.online,
	}
	for k, v := range m.frames {
		s.Frames[k.String()] = v
	}
	for k, v := range m.streamCommands {
		s.StreamCommands[string(k)] = v
	}
	for k, v := range m.tracks {
		s.Tracks[k] = v
	}
	for k, v := range m.backendFailures {
		s.BackendFailures[k] = v
	}
	return s
}
