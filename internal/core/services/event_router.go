package services

import (
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"

	"go.uber.org/zap"
)

// DispatchReport summarizes what one event changed.
type DispatchReport struct {
	Kind      domain.EventKind
	Frame     domain.FrameOutcome
	Applied   int
	Missed    int
	Track     domain.TrackResolution
	Restored  bool // connectivity went from offline to online
	Resent    bool // an undelivered start was issued again
	Unhandled bool
}

// EventRouter dispatches inbound events to the session and the presence
// store and tracks backend connectivity.
type EventRouter struct {
	session      *StreamSession
	store        *PresenceStore
	connectivity domain.Connectivity

	metrics ports.DashboardMetrics
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewEventRouter creates a router that starts out online.
func NewEventRouter(session *StreamSession, store *PresenceStore, metrics ports.DashboardMetrics, logger *zap.SugaredLogger) *EventRouter {
	if metrics == nil {
		metrics = NewMetricsService(nil)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &EventRouter{
		session:      session,
		store:        store,
		connectivity: domain.Connectivity{Online: true, Since: time.Now()},
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Dispatch applies event to the session or the store and reports what
// changed. Unknown event kinds are logged and ignored.
func (r *EventRouter) Dispatch(event domain.Event) DispatchReport {
	report := DispatchReport{}
	if event == nil {
		report.Unhandled = true
		return report
	}
	report.Kind = event.Kind()

	switch e := event.(type) {
	case domain.FrameEvent:
		report.Frame = r.session.OnFrame(e)

	case domain.AIStatusEvent:
		r.session.OnAIStatus(e.Active)

	case domain.PresenceBatchEvent:
		for _, u := range e.Updates {
			if r.store.Apply(u) == domain.ApplyApplied {
				report.Applied++
			} else {
				report.Missed++
			}
		}
		if report.Missed > 0 {
			r.logger.Debugw("Presence batch had unknown employees", "source", e.Source, "applied", report.Applied, "missed", report.Missed)
		}

	case domain.LocationResultEvent:
		report.Track = r.store.ResolveTrack(e.Result)

	case domain.ConnectivityEvent:
		report.Restored = r.setConnectivity(e)
		if e.Online && isPushSource(e.Source) {
			report.Resent = r.session.RedeliverStart()
		}

	default:
		r.logger.Warnw("Unhandled event", "kind", event.Kind())
		report.Unhandled = true
	}
	return report
}

// Connectivity returns the shared backend indicator.
func (r *EventRouter) Connectivity() domain.Connectivity {
	return r.connectivity
}

func (r *EventRouter) setConnectivity(e domain.ConnectivityEvent) bool {
	prev := r.connectivity.Online
	if prev == e.Online {
		if !e.Online {
			r.connectivity.Source = e.Source
			r.connectivity.Reason = e.Reason
		}
		return false
	}

	r.connectivity = domain.Connectivity{Online: e.Online, Source: e.Source, Reason: e.Reason, Since: r.now()}
	r.metrics.RecordConnectivity(e.Online)
	if e.Online {
		r.logger.Infow("Backend connectivity restored", "source", e.Source)
		return true
	}
	r.logger.Warnw("Backend connectivity lost", "source", e.Source, "reason", e.Reason)
	return false
}

// isPushSource reports whether source is a transport that carries stream
// commands.
func isPushSource(source string) bool {
	return source == "push" || source == "redis"
}
