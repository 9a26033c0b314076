package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CoordinatorMetrics instruments the coordinator's request path and
// cluster state. A nil *CoordinatorMetrics is valid and records nothing.
type CoordinatorMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeSessions  prometheus.Gauge
	nodesRegistered prometheus.Gauge
	nodesActive     prometheus.Gauge
	heartbeatFails  prometheus.Counter
	fallbackServes  *prometheus.CounterVec
	registryFiles   prometheus.Gauge
}

// NewCoordinatorMetrics creates the coordinator metric set, or nil when
// metrics are disabled.
func NewCoordinatorMetrics() *CoordinatorMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()

	return &CoordinatorMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docufs_coordinator_requests_total",
				Help: "Client requests handled, by opcode and result",
			},
			[]string{"opcode", "result"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docufs_coordinator_request_duration_seconds",
				Help:    "Request handling latency by opcode",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"opcode"},
		),
		activeSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "docufs_coordinator_active_sessions",
			Help: "Live client sessions",
		}),
		nodesRegistered: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "docufs_coordinator_nodes_registered",
			Help: "Storage nodes known to the registry",
		}),
		nodesActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "docufs_coordinator_nodes_active",
			Help: "Storage nodes currently passing heartbeats",
		}),
		heartbeatFails: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "docufs_coordinator_heartbeat_failures_total",
			Help: "Heartbeat exchanges that failed",
		}),
		fallbackServes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docufs_coordinator_fallback_serves_total",
				Help: "Reads served without the owning node, by source (cache, backup, failover)",
			},
			[]string{"source"},
		),
		registryFiles: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "docufs_coordinator_registry_files",
			Help: "File records in the registry",
		}),
	}
}

// ObserveRequest records one handled request.
func (m *CoordinatorMetrics) ObserveRequest(opcode, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(opcode, result).Inc()
	m.requestDuration.WithLabelValues(opcode).Observe(d.Seconds())
}

// SetActiveSessions updates the live session gauge.
func (m *CoordinatorMetrics) SetActiveSessions(n int) {
	if m != nil {
		m.activeSessions.Set(float64(n))
	}
}

// SetNodeCounts updates the node gauges.
func (m *CoordinatorMetrics) SetNodeCounts(registered, active int) {
	if m != nil {
		m.nodesRegistered.Set(float64(registered))
		m.nodesActive.Set(float64(active))
	}
}

// ObserveHeartbeatFailure counts one failed heartbeat exchange.
func (m *CoordinatorMetrics) ObserveHeartbeatFailure() {
	if m != nil {
		m.heartbeatFails.Inc()
	}
}

// ObserveFallback counts one read served from cache, backup, or failover.
func (m *CoordinatorMetrics) ObserveFallback(source string) {
	if m != nil {
		m.fallbackServes.WithLabelValues(source).Inc()
	}
}

// SetRegistryFiles updates the file record gauge.
func (m *CoordinatorMetrics) SetRegistryFiles(n int) {
	if m != nil {
		m.registryFiles.Set(float64(n))
	}
}
