package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the careloop service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Reconciliation metrics.
	PassesTotal     *prometheus.CounterVec
	PassDuration    *prometheus.HistogramVec
	GraphTeams      prometheus.Gauge
	GraphUsers      prometheus.Gauge
	GraphPatients   prometheus.Gauge
	RosterAnomalies prometheus.Counter
	FlagRepairs     prometheus.Counter

	// Mutation metrics.
	MutationsTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careloop_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careloop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careloop_reconciliation_passes_total",
			Help: "Total number of reconciliation passes by result.",
		}, []string{"result"}),

		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careloop_reconciliation_pass_duration_seconds",
			Help:    "Reconciliation pass duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),

		GraphTeams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "careloop_graph_teams",
			Help: "Number of teams in the published graph, private team included.",
		}),

		GraphUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "careloop_graph_users",
			Help: "Number of distinct users in the published graph.",
		}),

		GraphPatients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "careloop_graph_patients",
			Help: "Number of distinct patients in the published graph.",
		}),

		RosterAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careloop_roster_anomalies_total",
			Help: "Total number of roster entries referencing unknown teams.",
		}),

		FlagRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careloop_flag_repairs_total",
			Help: "Total number of stale flagged-patient list repairs.",
		}),

		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careloop_mutations_total",
			Help: "Total number of graph mutations by operation and result.",
		}, []string{"op", "result"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "careloop_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	// Register all metrics.
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PassesTotal,
		m.PassDuration,
		m.GraphTeams,
		m.GraphUsers,
		m.GraphPatients,
		m.RosterAnomalies,
		m.FlagRepairs,
		m.MutationsTotal,
		m.ServerStartTime,
	)

	// Set server start time.
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// IncHTTPRequest increments the HTTP request counter.
func (m *Metrics) IncHTTPRequest(method, pathPattern string, statusCode int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, fmt.Sprintf("%d", statusCode)).Inc()
}

// ObserveHTTPDuration records an HTTP request duration.
func (m *Metrics) ObserveHTTPDuration(method, pathPattern string, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(seconds)
}

// ObservePass records the result and duration of a reconciliation pass.
func (m *Metrics) ObservePass(result string, seconds float64) {
	m.PassesTotal.WithLabelValues(result).Inc()
	m.PassDuration.WithLabelValues(result).Observe(seconds)
}

// SetGraphSize records the published graph dimensions.
func (m *Metrics) SetGraphSize(teams, users, patients int) {
	m.GraphTeams.Set(float64(teams))
	m.GraphUsers.Set(float64(users))
	m.GraphPatients.Set(float64(patients))
}

// AddRosterAnomalies counts roster entries filed under the private team
// because their team was unknown.
func (m *Metrics) AddRosterAnomalies(n int) {
	m.RosterAnomalies.Add(float64(n))
}

// IncFlagRepair increments the stale-flag repair counter.
func (m *Metrics) IncFlagRepair() {
	m.FlagRepairs.Inc()
}

// IncMutation increments the mutation counter.
func (m *Metrics) IncMutation(op, result string) {
	m.MutationsTotal.WithLabelValues(op, result).Inc()
}
