// Package metrics exposes the driver's operational counters through
// prometheus/client_golang. Unlike the teacher's internal/metrics.Metrics
// (a package-level sync.Once singleton bound to the default registry, and
// shaped around cache occupancy — not applicable here since caching is a
// non-goal of this core), this one takes its Registerer as a constructor
// argument so tests and multiple driver instances in one process don't
// collide on global state.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter/gauge this driver reports.
type Metrics struct {
	RequestsStarted   *prometheus.CounterVec
	RequestsCompleted *prometheus.CounterVec
	SocketsTracked    prometheus.Gauge
	BackupPollAlarms  prometheus.Counter
}

// New creates and registers the driver's metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aresdriver_requests_started_total",
			Help: "Requests started, by kind (hostname, srv, txt).",
		}, []string{"kind"}),
		RequestsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aresdriver_requests_completed_total",
			Help: "Requests completed, by kind and outcome (ok, error, cancelled).",
		}, []string{"kind", "outcome"}),
		SocketsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aresdriver_sockets_tracked",
			Help: "Stub sockets currently registered with the poller.",
		}),
		BackupPollAlarms: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aresdriver_backup_poll_alarms_total",
			Help: "Backup poll timer ticks that fired across all requests.",
		}),
	}
	reg.MustRegister(m.RequestsStarted, m.RequestsCompleted, m.SocketsTracked, m.BackupPollAlarms)
	return m
}
