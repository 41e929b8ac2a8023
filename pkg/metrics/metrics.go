// Package metrics exposes Prometheus counters and histograms for every
// component described in the spec: the dispatcher's promotion/dismissal
// rate, the coordinator's phase durations and token spend, the action
// executor's outcomes, the retry queue's DLQ depth, and HTTP request
// volume. Grounded on the r3e-network-service_layer pack repo's
// pkg/metrics/metrics.go (the teacher itself does not use Prometheus;
// prometheus/client_golang is adopted from that repo as the pack's
// sole Prometheus user).
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every HORNET-specific collector, kept separate from
// the default global registry so tests can construct throwaway
// instances without colliding on re-registration.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hornet", Subsystem: "http", Name: "inflight_requests",
		Help: "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hornet", Subsystem: "http", Name: "requests_total",
		Help: "Total HTTP requests handled, by method, path and status.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hornet", Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	eventsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hornet", Subsystem: "dispatcher", Name: "events_ingested_total",
		Help: "Total events consumed from the ingress stream.",
	}, []string{"event_type"})

	incidentsPromoted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hornet", Subsystem: "dispatcher", Name: "incidents_promoted_total",
		Help: "Total incidents promoted past the detection threshold, by triggering agent.",
	}, []string{"triggering_agent"})

	incidentsDismissed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hornet", Subsystem: "dispatcher", Name: "events_dismissed_total",
		Help: "Total events dismissed below the detection threshold.",
	}, []string{"event_type"})

	phaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hornet", Subsystem: "coordinator", Name: "phase_duration_seconds",
		Help:    "FSM phase duration in seconds, by phase and outcome.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"phase", "outcome"})

	incidentsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hornet", Subsystem: "coordinator", Name: "incidents_closed_total",
		Help: "Total incidents reaching CLOSED, by outcome.",
	}, []string{"outcome"})

	tokensSpent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hornet", Subsystem: "coordinator", Name: "tokens_spent_total",
		Help: "Total agent tokens spent, by phase.",
	}, []string{"phase"})

	actionsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hornet", Subsystem: "executor", Name: "actions_total",
		Help: "Total actions executed, by action type and status.",
	}, []string{"action_type", "status"})

	retryJobsDLQ = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hornet", Subsystem: "retryqueue", Name: "dlq_depth",
		Help: "Current number of dead-lettered retry jobs, across all tenants.",
	})

	retryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hornet", Subsystem: "retryqueue", Name: "attempts_total",
		Help: "Total retry job attempts, by job type and result.",
	}, []string{"job_type", "result"})

	campaignsFormed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hornet", Subsystem: "campaign", Name: "campaigns_formed_total",
		Help: "Total campaigns created by the correlator.",
	}, []string{"dominant_link_type"})

	dashboardConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hornet", Subsystem: "realtime", Name: "dashboard_connections",
		Help: "Current number of connected dashboard WebSocket clients.",
	})

	edgeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hornet", Subsystem: "realtime", Name: "edge_connections",
		Help: "Current number of connected edge-agent WebSocket clients.",
	})
)

func init() {
	Registry.MustRegister(
		httpInFlight, httpRequests, httpDuration,
		eventsIngested, incidentsPromoted, incidentsDismissed,
		phaseDuration, incidentsClosed, tokensSpent,
		actionsExecuted, retryJobsDLQ, retryAttempts,
		campaignsFormed, dashboardConnections, edgeConnections,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler wraps an HTTP handler with request-count and
// latency collection. Skips the metrics endpoint itself.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordEventIngested increments the ingress counter for eventType.
func RecordEventIngested(eventType string) {
	eventsIngested.WithLabelValues(eventType).Inc()
}

// RecordIncidentPromoted increments the promotion counter.
func RecordIncidentPromoted(triggeringAgent string) {
	incidentsPromoted.WithLabelValues(triggeringAgent).Inc()
}

// RecordEventDismissed increments the dismissal counter.
func RecordEventDismissed(eventType string) {
	incidentsDismissed.WithLabelValues(eventType).Inc()
}

// RecordPhaseDuration observes a phase's wall-clock time.
func RecordPhaseDuration(phase, outcome string, d time.Duration) {
	phaseDuration.WithLabelValues(phase, outcome).Observe(d.Seconds())
}

// RecordIncidentClosed increments the terminal-outcome counter.
func RecordIncidentClosed(outcome string) {
	incidentsClosed.WithLabelValues(outcome).Inc()
}

// RecordTokensSpent adds n tokens to the phase's running total.
func RecordTokensSpent(phase string, n int) {
	if n <= 0 {
		return
	}
	tokensSpent.WithLabelValues(phase).Add(float64(n))
}

// RecordActionExecuted increments the executor outcome counter.
func RecordActionExecuted(actionType, status string) {
	actionsExecuted.WithLabelValues(actionType, status).Inc()
}

// SetDLQDepth sets the current DLQ gauge value.
func SetDLQDepth(n int) {
	retryJobsDLQ.Set(float64(n))
}

// RecordRetryAttempt increments the retry-attempt counter.
func RecordRetryAttempt(jobType, result string) {
	retryAttempts.WithLabelValues(jobType, result).Inc()
}

// RecordCampaignFormed increments the campaign-creation counter.
func RecordCampaignFormed(dominantLinkType string) {
	campaignsFormed.WithLabelValues(dominantLinkType).Inc()
}

// SetDashboardConnections sets the dashboard connection gauge.
func SetDashboardConnections(n int) {
	dashboardConnections.Set(float64(n))
}

// SetEdgeConnections sets the edge connection gauge.
func SetEdgeConnections(n int) {
	edgeConnections.Set(float64(n))
}
