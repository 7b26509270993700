package dosshserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session outcomes, used as the "outcome" label.
const (
	outcomeOK        = "ok"
	outcomeLocked    = "locked"
	outcomeRefused   = "refused"
	outcomeHandshake = "handshake"
	outcomeFailed    = "failed"
)

// Metrics are the server's Prometheus collectors.
type Metrics struct {
	SessionsTotal   *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	RelayedBytes    *prometheus.CounterVec
	SessionDuration prometheus.Histogram
}

// NewMetrics registers the server collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsTotal:   f.NewCounterVec(prometheus.CounterOpts{Name: "dossh_sessions_total", Help: "Finished sessions by outcome"}, []string{"outcome"}),
		ActiveSessions:  f.NewGauge(prometheus.GaugeOpts{Name: "dossh_active_sessions", Help: "Sessions currently open"}),
		RelayedBytes:    f.NewCounterVec(prometheus.CounterOpts{Name: "dossh_relayed_bytes_total", Help: "Bytes relayed by direction"}, []string{"direction"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{Name: "dossh_session_duration_seconds", Help: "Session lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 20)}),
	}
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) sessionFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionsTotal.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(d.Seconds())
}

func (m *Metrics) relayed(localToRemote, remoteToLocal int64) {
	if m == nil {
		return
	}
	m.RelayedBytes.WithLabelValues("local_to_remote").Add(float64(localToRemote))
	m.RelayedBytes.WithLabelValues("remote_to_local").Add(float64(remoteToLocal))
}
