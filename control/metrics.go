// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus-backed runtime metrics for the reactor, pool and HTTP layers.

package control

import (
	"strconv"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is every sink the server reports to.
type Metrics interface {
	api.ReactorMetrics
	api.PoolMetrics
	RequestServed(method string, status int)
}

// PrometheusMetrics implements Metrics on a private registry.
type PrometheusMetrics struct {
	reg *prometheus.Registry

	accepted     prometheus.Counter
	rejected     *prometheus.CounterVec
	closed       prometheus.Counter
	active       prometheus.Gauge
	events       *prometheus.CounterVec
	appends      *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	tasks        prometheus.Counter
	panics       prometheus.Counter
	taskDuration prometheus.Histogram
	requests     *prometheus.CounterVec
}

var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the collectors on a fresh registry, together
// with the Go runtime and process collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &PrometheusMetrics{
		reg: reg,
		accepted: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_httpd_connections_accepted_total",
			Help: "Connections accepted and registered",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_httpd_connections_rejected_total",
			Help: "Connections closed without service, by reason",
		}, []string{"reason"}),
		closed: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_httpd_connections_closed_total",
			Help: "Connections released by the registry",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_httpd_connections_active",
			Help: "Connections currently held",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_httpd_reactor_events_total",
			Help: "Readiness events dispatched, by kind",
		}, []string{"kind"}),
		appends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_httpd_pool_appends_total",
			Help: "Work queue appends, by result",
		}, []string{"result"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_httpd_pool_queue_depth",
			Help: "Work queue length after the last append",
		}),
		tasks: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_httpd_pool_tasks_processed_total",
			Help: "Tasks run to completion or panic",
		}),
		panics: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_httpd_pool_task_panics_total",
			Help: "Tasks that panicked",
		}),
		taskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hioload_httpd_pool_task_duration_seconds",
			Help:    "Time spent in Process",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_httpd_http_requests_total",
			Help: "HTTP responses, by method and status",
		}, []string{"method", "status"}),
	}
}

// Registry returns the registry to serve.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.reg }

func (m *PrometheusMetrics) ConnectionAccepted() { m.accepted.Inc() }

func (m *PrometheusMetrics) ConnectionRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) ConnectionClosed() { m.closed.Inc() }

func (m *PrometheusMetrics) SetActiveConnections(n int) { m.active.Set(float64(n)) }

func (m *PrometheusMetrics) EventDispatched(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) TaskAppended(depth int) {
	m.appends.WithLabelValues("accepted").Inc()
	m.queueDepth.Set(float64(depth))
}

func (m *PrometheusMetrics) TaskRejected() {
	m.appends.WithLabelValues("rejected").Inc()
}

func (m *PrometheusMetrics) TaskDone(elapsed time.Duration, panicked bool) {
	m.tasks.Inc()
	m.taskDuration.Observe(elapsed.Seconds())
	if panicked {
		m.panics.Inc()
	}
}

func (m *PrometheusMetrics) RequestServed(method string, status int) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// NoopMetrics discards everything. Used when metrics are disabled.
type NoopMetrics struct{}

var _ Metrics = NoopMetrics{}

func (NoopMetrics) ConnectionAccepted()          {}
func (NoopMetrics) ConnectionRejected(string)    {}
func (NoopMetrics) ConnectionClosed()            {}
func (NoopMetrics) SetActiveConnections(int)     {}
func (NoopMetrics) EventDispatched(string)       {}
func (NoopMetrics) TaskAppended(int)             {}
func (NoopMetrics) TaskRejected()                {}
func (NoopMetrics) TaskDone(time.Duration, bool) {}
func (NoopMetrics) RequestServed(string, int)    {}
