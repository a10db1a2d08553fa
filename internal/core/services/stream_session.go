package services

import (
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"
	"cctvdash/pkg/validation"

	"go.uber.org/zap"
)

// StreamSession is the live-view state machine. It is not safe for
// concurrent use; the dashboard event loop owns it.
type StreamSession struct {
	state     domain.SessionState
	cameraID  domain.CameraID
	address   string
	started   bool // a start command was issued for the current binding
	startGen  uint64
	lastError string
	frame     string
	frameSeq  uint64
	aiActive  bool
	updatedAt time.Time

	// the transport failed to deliver the current start; it is re-issued on
	// the next push reconnect or re-select
	undelivered bool

	outbox []domain.StreamCommand

	metrics ports.DashboardMetrics
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewStreamSession creates an Idle session. Nil metrics and logger are
// replaced by no-op defaults.
func NewStreamSession(metrics ports.DashboardMetrics, logger *zap.SugaredLogger) *StreamSession {
	if metrics == nil {
		metrics = NewMetricsService(nil)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &StreamSession{
		state:     domain.StateIdle,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		updatedAt: time.Now(),
	}
}

// RequestStart binds the session to a camera and asks the pipeline to start
// its stream. A previously started stream is stopped first. A start that
// never reached the pipeline is issued again.
func (s *StreamSession) RequestStart(cameraID domain.CameraID, address string) domain.SelectOutcome {
	if s.cameraID == cameraID && s.address == address && s.started && !s.undelivered &&
		(s.state == domain.StateLoading || s.state == domain.StateStreaming) {
		s.logger.Debugw("Camera already bound, ignoring start", "camera_id", cameraID, "state", s.state)
		return domain.SelectStarted
	}

	if s.started && !s.undelivered {
		s.enqueue(domain.CommandStopStream, s.cameraID, s.address)
	}

	s.cameraID = cameraID
	s.address = address
	s.frame = ""
	s.started = false
	s.undelivered = false

	if err := validation.ValidateStreamAddress(address); err != nil {
		s.logger.Warnw("Camera address rejected", "camera_id", cameraID, "address", address, "error", err)
		s.setState(domain.StateError, domain.ErrMsgCameraUnavailable)
		return domain.SelectFailed
	}

	s.issueStart()
	s.setState(domain.StateLoading, "")
	return domain.SelectStarted
}

// MarkStartUndelivered records that the start issued as generation gen could
// not be sent. It is ignored when a newer start was issued or a frame already
// proved the stream running.
func (s *StreamSession) MarkStartUndelivered(gen uint64) bool {
	if !s.started || gen != s.startGen || s.state != domain.StateLoading {
		return false
	}
	s.undelivered = true
	return true
}

// RedeliverStart re-issues an undelivered start for the bound camera.
func (s *StreamSession) RedeliverStart() bool {
	if !s.started || !s.undelivered {
		return false
	}
	s.logger.Infow("Re-issuing undelivered start", "camera_id", s.cameraID)
	s.issueStart()
	return true
}

// StartGeneration identifies the most recent start command.
func (s *StreamSession) StartGeneration() uint64 {
	return s.startGen
}

func (s *StreamSession) issueStart() {
	s.enqueue(domain.CommandStartStream, s.cameraID, s.address)
	s.startGen++
	s.started = true
	s.undelivered = false
}

// OnFrame applies one inbound frame. Frames for a stream other than the bound
// one are discarded.
func (s *StreamSession) OnFrame(ev domain.FrameEvent) domain.FrameOutcome {
	outcome := s.applyFrame(ev)
	s.metrics.RecordFrame(outcome)
	return outcome
}

func (s *StreamSession) applyFrame(ev domain.FrameEvent) domain.FrameOutcome {
	if !s.started || (ev.Address != "" && ev.Address != s.address) {
		s.logger.Debugw("Discarding stale frame", "frame_address", ev.Address, "bound_address", s.address)
		return domain.FrameStale
	}
	s.undelivered = false

	switch ev.Payload.Kind {
	case domain.FrameKindStreamError:
		s.frame = ""
		s.setState(domain.StateError, ev.Payload.Reason)
		return domain.FrameSentinel
	case domain.FrameKindMalformed:
		s.frame = ""
		s.setState(domain.StateError, domain.ErrMsgStreamError)
		return domain.FrameMalformed
	default:
		s.frame = ev.Payload.Data
		s.frameSeq++
		s.setState(domain.StateStreaming, "")
		return domain.FrameDisplayed
	}
}

// RequestStop returns the session to Idle and reports whether a stop command
// was emitted.
func (s *StreamSession) RequestStop() bool {
	emitted := false
	if s.started && !s.undelivered {
		s.enqueue(domain.CommandStopStream, s.cameraID, s.address)
		emitted = true
	}
	s.cameraID = ""
	s.address = ""
	s.started = false
	s.undelivered = false
	s.frame = ""
	s.setState(domain.StateIdle, "")
	return emitted
}

// OnAIStatus records the detection indicator reported by the backend.
func (s *StreamSession) OnAIStatus(active bool) {
	s.aiActive = active
	s.updatedAt = s.now()
}

// DrainCommands returns queued commands in emission order and clears the
// outbox.
func (s *StreamSession) DrainCommands() []domain.StreamCommand {
	if len(s.outbox) == 0 {
		return nil
	}
	cmds := s.outbox
	s.outbox = nil
	return cmds
}

// State returns the current live-view state.
func (s *StreamSession) State() domain.SessionState {
	return s.state
}

// BoundCamera returns the camera the session is bound to, or "" when Idle.
func (s *StreamSession) BoundCamera() domain.CameraID {
	return s.cameraID
}

// View returns a copy of the session for snapshots.
func (s *StreamSession) View() domain.SessionView {
	return domain.SessionView{
		State:     s.state,
		CameraID:  s.cameraID,
		Address:   s.address,
		LastError: s.lastError,
		Frame:     s.frame,
		FrameSeq:  s.frameSeq,
		AIActive:  s.aiActive,
		UpdatedAt: s.updatedAt,
	}
}

func (s *StreamSession) enqueue(t domain.StreamCommandType, cameraID domain.CameraID, address string) {
	s.outbox = append(s.outbox, domain.StreamCommand{Type: t, CameraID: cameraID, Address: address})
}

func (s *StreamSession) setState(state domain.SessionState, lastError string) {
	prev := s.state
	s.state = state
	s.lastError = lastError
	s.updatedAt = s.now()
	if prev != state {
		s.logger.Debugw("Stream session transition", "from", prev, "to", state, "camera_id", s.cameraID, "error", lastError)
		s.metrics.RecordSessionState(state)
	}
}
