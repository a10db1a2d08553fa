package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"
	"cctvdash/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	_ ports.DashboardService = (*Dashboard)(nil)
	_ ports.EventSink        = (*Dashboard)(nil)
)

type DashboardConfig struct {
	PollInterval    time.Duration
	RequestTimeout  time.Duration
	CommandTimeout  time.Duration
	ShutdownTimeout time.Duration
	InboxSize       int
	CommandBuffer   int

	// TrackLimiter bounds location lookups; nil means unlimited.
	TrackLimiter *rate.Limiter
}

// DefaultDashboardConfig returns the intervals and buffer sizes used when a
// field is left zero.
func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		PollInterval:    10 * time.Second,
		RequestTimeout:  5 * time.Second,
		CommandTimeout:  5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		InboxSize:       256,
		CommandBuffer:   64,
	}
}

type task struct {
	event domain.Event
	run   func(ctx context.Context)
	done  chan struct{}
}

// queuedCommand carries the start generation current when cmd was drained,
// so a failed start can be traced back to its binding.
type queuedCommand struct {
	cmd      domain.StreamCommand
	startGen uint64
}

type loadResult struct {
	cameras   []domain.CameraDescriptor
	camErr    error
	employees []domain.EmployeeDescriptor
	empErr    error
}

// Dashboard is the composition root of the core. One goroutine (Run) owns
// the registry, session, store and router; inbound events and operator
// commands are serialized through its inbox.
type Dashboard struct {
	cfg DashboardConfig

	registry *CameraRegistry
	session  *StreamSession
	store    *PresenceStore
	router   *EventRouter

	backend  ports.BackendAPI
	commands ports.StreamCommandSender
	sinks    []ports.SnapshotSink
	metrics  ports.DashboardMetrics
	logger   *zap.SugaredLogger
	now      func() time.Time

	inbox    chan task
	cmdQueue chan queuedCommand
	stopped  chan struct{}
	running  atomic.Bool

	version     uint64
	initialized bool
	loading     bool
	snapshot    atomic.Pointer[domain.Snapshot]
}

// NewDashboard wires the core. backend is required; a nil commands sender
// leaves the dashboard usable for presence only and stream commands are
// dropped with a warning.
func NewDashboard(
	backend ports.BackendAPI,
	commands ports.StreamCommandSender,
	metrics ports.DashboardMetrics,
	logger *zap.SugaredLogger,
	cfg DashboardConfig,
	sinks ...ports.SnapshotSink,
) (*Dashboard, error) {
	if backend == nil {
		return nil, fmt.Errorf("dashboard: %w: backend api", domain.ErrMissingCollaborator)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = NewMetricsService(nil)
	}
	if commands == nil {
		logger.Warnw("No stream command sender configured, live view disabled")
		commands = droppingSender{logger: logger}
	}
	defaults := DefaultDashboardConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaults.CommandTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaults.InboxSize
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = defaults.CommandBuffer
	}

	session := NewStreamSession(metrics, logger.Named("session"))
	registry, err := NewCameraRegistry(session, logger.Named("cameras"))
	if err != nil {
		return nil, err
	}
	store := NewPresenceStore(registry, metrics, logger.Named("presence"))
	router := NewEventRouter(session, store, metrics, logger.Named("router"))

	d := &Dashboard{
		cfg:      cfg,
		registry: registry,
		session:  session,
		store:    store,
		router:   router,
		backend:  backend,
		commands: commands,
		sinks:    sinks,
		metrics:  metrics,
		logger:   logger,
		now:      utils.Now,
		inbox:    make(chan task, cfg.InboxSize),
		cmdQueue: make(chan queuedCommand, cfg.CommandBuffer),
		stopped:  make(chan struct{}),
	}
	initial := d.buildSnapshot()
	d.snapshot.Store(&initial)
	return d, nil
}

// Run loads the initial data, starts the status poll and processes the inbox
// until ctx is cancelled. On shutdown the live stream is stopped and pending
// commands are flushed.
func (d *Dashboard) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("dashboard already running")
	}

	sendCtx, cancelSend := context.WithCancel(context.Background())
	defer cancelSend()
	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		d.sendLoop(sendCtx)
	}()
	go d.pollLoop(ctx)

	d.logger.Infow("Dashboard started", "poll_interval", d.cfg.PollInterval)
	d.startLoad(ctx)
	d.publish()

	for {
		select {
		case <-ctx.Done():
			d.shutdown(sendDone)
			return nil
		case t := <-d.inbox:
			d.handle(ctx, t)
		}
	}
}

func (d *Dashboard) handle(ctx context.Context, t task) {
	if t.event != nil {
		report := d.router.Dispatch(t.event)
		if report.Restored {
			d.startLoad(ctx)
		}
	}
	if t.run != nil {
		t.run(ctx)
	}
	d.flush(ctx)
	d.publish()
	if t.done != nil {
		close(t.done)
	}
}

func (d *Dashboard) shutdown(sendDone <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()

	d.session.RequestStop()
	d.flushCommands(ctx)
	close(d.cmdQueue)

	select {
	case <-sendDone:
	case <-ctx.Done():
		d.logger.Warnw("Timed out flushing stream commands on shutdown")
	}
	d.publish()
	close(d.stopped)
	d.logger.Infow("Dashboard stopped")
}

// flush hands queued stream commands to the sender and starts queued
// location lookups.
func (d *Dashboard) flush(ctx context.Context) {
	d.flushCommands(ctx)

	for _, id := range d.store.DrainLookups() {
		if d.cfg.TrackLimiter != nil && !d.cfg.TrackLimiter.Allow() {
			d.store.ResolveTrack(domain.LocationResult{EmployeeID: id, Err: domain.ErrLookupRateLimited})
			continue
		}
		go d.lookupLocation(ctx, id)
	}
}

func (d *Dashboard) flushCommands(ctx context.Context) {
	cmds := d.session.DrainCommands()
	gen := d.session.StartGeneration()
	for _, cmd := range cmds {
		select {
		case d.cmdQueue <- queuedCommand{cmd: cmd, startGen: gen}:
		case <-ctx.Done():
			d.logger.Warnw("Dropping stream command", "type", cmd.Type, "address", cmd.Address)
		}
	}
}

// sendLoop delivers commands in order. A start the transport rejects is
// reported back to the loop so the session can re-issue it.
func (d *Dashboard) sendLoop(ctx context.Context) {
	for q := range d.cmdQueue {
		cmd := q.cmd
		cmdCtx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
		err := d.commands.SendCommand(cmdCtx, cmd)
		cancel()
		d.metrics.RecordStreamCommand(cmd.Type, err)
		if err != nil {
			d.logger.Warnw("Failed to send stream command", "type", cmd.Type, "camera_id", cmd.CameraID, "error", err)
			if cmd.Type == domain.CommandStartStream {
				d.reportUndelivered(q.startGen)
			}
			continue
		}
		d.logger.Debugw("Stream command sent", "type", cmd.Type, "camera_id", cmd.CameraID, "address", cmd.Address)
	}
}

// reportUndelivered never blocks: the send loop must keep draining while the
// event loop is shutting down.
func (d *Dashboard) reportUndelivered(gen uint64) {
	t := task{run: func(context.Context) {
		if d.session.MarkStartUndelivered(gen) {
			d.logger.Infow("Start command undelivered, waiting for push channel", "camera_id", d.session.BoundCamera())
		}
	}}
	select {
	case <-d.stopped:
	case d.inbox <- t:
	default:
		d.logger.Warnw("Inbox full, undelivered start not recorded")
	}
}

func (d *Dashboard) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

func (d *Dashboard) pollOnce(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	updates, err := d.backend.PresenceUpdates(reqCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.logger.Warnw("Presence poll failed", "error", err)
		_ = d.Post(ctx, domain.ConnectivityEvent{Online: false, Source: "poll", Reason: err.Error()})
		return
	}
	_ = d.Post(ctx, domain.PresenceBatchEvent{Updates: updates, Source: "poll"})
	_ = d.Post(ctx, domain.ConnectivityEvent{Online: true, Source: "poll"})
}

func (d *Dashboard) startLoad(ctx context.Context) {
	if d.loading {
		return
	}
	d.loading = true

	go func() {
		reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
		defer cancel()

		var res loadResult
		res.cameras, res.camErr = d.backend.ListCameras(reqCtx)
		res.employees, res.empErr = d.backend.ListEmployees(reqCtx)

		_ = d.enqueue(ctx, task{run: func(context.Context) { d.applyLoad(res) }})
	}()
}

func (d *Dashboard) applyLoad(res loadResult) {
	d.loading = false
	d.initialized = true

	if res.camErr != nil {
		d.logger.Warnw("Failed to load cameras", "error", res.camErr)
	} else if err := d.registry.Load(res.cameras); err != nil {
		d.logger.Warnw("Rejected camera list", "error", err)
	} else if id, ok := d.registry.DefaultSelection(); ok {
		d.registry.Select(id)
	}

	if res.empErr != nil {
		d.logger.Warnw("Failed to load employees", "error", res.empErr)
	} else if err := d.store.Load(res.employees); err != nil {
		d.logger.Warnw("Rejected employee list", "error", err)
	}

	if err := errors.Join(res.camErr, res.empErr); err != nil {
		d.router.Dispatch(domain.ConnectivityEvent{Online: false, Source: "backend", Reason: err.Error()})
		return
	}
	// a successful load is itself the recovery, so no reload is triggered
	d.router.Dispatch(domain.ConnectivityEvent{Online: true, Source: "backend"})
}

func (d *Dashboard) lookupLocation(ctx context.Context, id domain.EmployeeID) {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	location, err := d.backend.EmployeeLocation(reqCtx, id)
	cancel()
	result := domain.LocationResult{EmployeeID: id, Location: location, Err: err}
	_ = d.Post(ctx, domain.LocationResultEvent{Result: result})
}

func (d *Dashboard) publish() {
	d.version++
	snap := d.buildSnapshot()
	d.snapshot.Store(&snap)
	for _, sink := range d.sinks {
		sink.Publish(snap)
	}
	d.metrics.RecordSnapshotPublished()
}

func (d *Dashboard) buildSnapshot() domain.Snapshot {
	now := d.now()
	snap := domain.Snapshot{
		Version:      d.version,
		GeneratedAt:  now,
		Clock:        utils.FormatClock(now),
		Date:         utils.FormatDate(now),
		Initialized:  d.initialized,
		Cameras:      d.registry.Cameras(),
		Session:      d.session.View(),
		Streaming:    d.session.State() == domain.StateStreaming,
		Employees:    d.store.Employees(),
		Stats:        d.store.Stats(),
		Connectivity: d.router.Connectivity(),
	}
	if cam, ok := d.registry.Current(); ok {
		snap.CurrentCamera = &cam
	}
	return snap
}

// Post enqueues an inbound event. It implements ports.EventSink.
func (d *Dashboard) Post(ctx context.Context, event domain.Event) error {
	return d.enqueue(ctx, task{event: event})
}

func (d *Dashboard) enqueue(ctx context.Context, t task) error {
	select {
	case <-d.stopped:
		return domain.ErrDashboardStopped
	default:
	}
	select {
	case d.inbox <- t:
		return nil
	case <-d.stopped:
		return domain.ErrDashboardStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exec runs fn on the event loop and waits until it, and the snapshot
// publish that follows it, have completed.
func (d *Dashboard) exec(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})
	if err := d.enqueue(ctx, task{run: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-d.stopped:
		select {
		case <-done:
			return nil
		default:
			return domain.ErrDashboardStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the most recently published state.
func (d *Dashboard) Snapshot() domain.Snapshot {
	return *d.snapshot.Load()
}

// AddCamera registers a camera without selecting it.
func (d *Dashboard) AddCamera(ctx context.Context, desc domain.CameraDescriptor) (domain.CameraID, error) {
	var id domain.CameraID
	var addErr error
	if err := d.exec(ctx, func(context.Context) { id, addErr = d.registry.Add(desc) }); err != nil {
		return "", err
	}
	return id, addErr
}

// SelectCamera makes id the live camera.
func (d *Dashboard) SelectCamera(ctx context.Context, id domain.CameraID) (domain.SelectOutcome, error) {
	outcome := domain.SelectFailed
	found := false
	err := d.exec(ctx, func(context.Context) {
		if _, found = d.registry.Get(id); found {
			outcome = d.registry.Select(id)
		}
	})
	if err != nil {
		return domain.SelectFailed, err
	}
	if !found {
		return domain.SelectFailed, domain.ErrCameraNotFound
	}
	return outcome, nil
}

// UpdateCameraStatus overrides the status shown for id.
func (d *Dashboard) UpdateCameraStatus(ctx context.Context, id domain.CameraID, status domain.CameraStatus) error {
	found := false
	if err := d.exec(ctx, func(context.Context) { found = d.registry.UpdateStatus(id, status) }); err != nil {
		return err
	}
	if !found {
		return domain.ErrCameraNotFound
	}
	return nil
}

// StopStream stops the live view and returns the session to Idle.
func (d *Dashboard) StopStream(ctx context.Context) error {
	return d.exec(ctx, func(context.Context) { d.session.RequestStop() })
}

// Employee returns the employee with the given id.
func (d *Dashboard) Employee(ctx context.Context, id domain.EmployeeID) (domain.Employee, error) {
	var emp domain.Employee
	found := false
	if err := d.exec(ctx, func(context.Context) { emp, found = d.store.Get(id) }); err != nil {
		return domain.Employee{}, err
	}
	if !found {
		return domain.Employee{}, domain.ErrEmployeeNotFound
	}
	return emp, nil
}

// SearchEmployees filters by query (name or location) and, when status is
// not empty, by presence status.
func (d *Dashboard) SearchEmployees(ctx context.Context, query string, status domain.PresenceStatus) ([]domain.Employee, error) {
	var result []domain.Employee
	err := d.exec(ctx, func(context.Context) {
		for _, emp := range d.store.Search(query) {
			if status == "" || emp.Status == status {
				result = append(result, emp)
			}
		}
	})
	return result, err
}

// AddEmployee adds one employee to the presence list.
func (d *Dashboard) AddEmployee(ctx context.Context, desc domain.EmployeeDescriptor) (domain.EmployeeID, error) {
	var id domain.EmployeeID
	var addErr error
	if err := d.exec(ctx, func(context.Context) { id, addErr = d.store.Add(desc) }); err != nil {
		return "", err
	}
	return id, addErr
}

// RemoveEmployee drops id from the presence list.
func (d *Dashboard) RemoveEmployee(ctx context.Context, id domain.EmployeeID) error {
	outcome := domain.RemoveMissed
	if err := d.exec(ctx, func(context.Context) { outcome = d.store.Remove(id) }); err != nil {
		return err
	}
	if outcome == domain.RemoveMissed {
		return domain.ErrEmployeeNotFound
	}
	return nil
}

// TrackEmployee queues a location lookup. The location and camera switch
// arrive later through the event loop.
func (d *Dashboard) TrackEmployee(ctx context.Context, id domain.EmployeeID) (domain.TrackOutcome, error) {
	outcome := domain.TrackMissed
	if err := d.exec(ctx, func(context.Context) { outcome = d.store.Track(id) }); err != nil {
		return domain.TrackMissed, err
	}
	if outcome == domain.TrackMissed {
		return outcome, domain.ErrEmployeeNotFound
	}
	return outcome, nil
}

// StartAI asks the backend to enable detection.
func (d *Dashboard) StartAI(ctx context.Context) error {
	return d.toggleAI(ctx, true)
}

func (d *Dashboard) StopAI(ctx context.Context) error {
	return d.toggleAI(ctx, false)
}

func (d *Dashboard) toggleAI(ctx context.Context, active bool) error {
	call := d.backend.StopAI
	if active {
		call = d.backend.StartAI
	}
	if err := call(ctx); err != nil {
		d.logger.Warnw("AI toggle failed", "active", active, "error", err)
		return fmt.Errorf("toggle ai: %w", err)
	}
	return d.exec(ctx, func(context.Context) {
		d.router.Dispatch(domain.AIStatusEvent{Active: active})
	})
}

// Refresh reloads cameras and employees from the backend.
func (d *Dashboard) Refresh(ctx context.Context) error {
	return d.exec(ctx, func(loopCtx context.Context) { d.startLoad(loopCtx) })
}

// droppingSender stands in when no push channel could be created.
type droppingSender struct {
	logger *zap.SugaredLogger
}

func (s droppingSender) SendCommand(_ context.Context, cmd domain.StreamCommand) error {
	s.logger.Warnw("Stream command dropped, no push channel", "type", cmd.Type, "camera_id", cmd.CameraID)
	return domain.ErrPushNotConnected
}
