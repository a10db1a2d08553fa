package monitoring

import (
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ ports.DashboardMetrics = (*PrometheusCollector)(nil)

type PrometheusCollector struct {
	// Counters
	framesTotal          *prometheus.CounterVec
	streamCommandsTotal  *prometheus.CounterVec
	presenceUpdatesTotal *prometheus.CounterVec
	tracksTotal          *prometheus.CounterVec
	backendRequestsTotal *prometheus.CounterVec
	snapshotsPublished   prometheus.Counter

	// Gauges
	sessionState *prometheus.GaugeVec
	employees    *prometheus.GaugeVec
	backendUp    prometheus.Gauge

	// Histograms
	backendRequestDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers the dashboard metrics with reg. A nil reg
// uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cctvdash_frames_total",
			Help: "Inbound frames by outcome",
		}, []string{"outcome"}),

		streamCommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cctvdash_stream_commands_total",
			Help: "Stream commands sent to the capture pipeline",
		}, []string{"command", "result"}),

		presenceUpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cctvdash_presence_updates_total",
			Help: "Presence updates by outcome",
		}, []string{"outcome"}),

		tracksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cctvdash_track_requests_total",
			Help: "Employee tracking requests by outcome",
		}, []string{"outcome"}),

		backendRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cctvdash_backend_requests_total",
			Help: "Backend REST requests by endpoint and result",
		}, []string{"endpoint", "result"}),

		snapshotsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "cctvdash_snapshots_published_total",
			Help: "Dashboard snapshots published to viewers",
		}),

		sessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cctvdash_stream_session_state",
			Help: "1 for the current stream session state, 0 otherwise",
		}, []string{"state"}),

		employees: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cctvdash_employees",
			Help: "Employees by presence status",
		}, []string{"status"}),

		backendUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cctvdash_backend_up",
			Help: "Whether the backend is reachable (1) or not (0)",
		}),

		backendRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cctvdash_backend_request_duration_seconds",
			Help:    "Duration of backend REST requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
	}
}

func (p *PrometheusCollector) RecordFrame(outcome domain.FrameOutcome) {
	p.framesTotal.WithLabelValues(outcome.String()).Inc()
}

func (p *PrometheusCollector) RecordStreamCommand(cmd domain.StreamCommandType, err error) {
	p.streamCommandsTotal.WithLabelValues(string(cmd), result(err)).Inc()
}

func (p *PrometheusCollector) RecordSessionState(state domain.SessionState) {
	for _, s := range []domain.SessionState{domain.StateIdle, domain.StateLoading, domain.StateStreaming, domain.StateError} {
		value := 0.0
		if s == state {
			value = 1
		}
		p.sessionState.WithLabelValues(string(s)).Set(value)
	}
}

func (p *PrometheusCollector) RecordPresence(stats domain.PresenceStats) {
	p.employees.WithLabelValues(string(domain.PresencePresent)).Set(float64(stats.Present))
	p.employees.WithLabelValues(string(domain.PresenceAbsent)).Set(float64(stats.Absent))
}

func (p *PrometheusCollector) RecordPresenceUpdate(outcome domain.ApplyOutcome) {
	p.presenceUpdatesTotal.WithLabelValues(outcome.String()).Inc()
}

func (p *PrometheusCollector) RecordTrack(outcome string) {
	p.tracksTotal.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordBackendRequest(endpoint string, duration time.Duration, err error) {
	p.backendRequestsTotal.WithLabelValues(endpoint, result(err)).Inc()
	p.backendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordConnectivity(online bool) {
	if online {
		p.backendUp.Set(1)
		return
	}
	p.backendUp.Set(0)
}

func (p *PrometheusCollector) RecordSnapshotPublished() {
	p.snapshotsPublished.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
