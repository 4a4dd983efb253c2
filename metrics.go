package switchboard

import "github.com/prometheus/client_golang/prometheus"

// metrics are the Manager's Prometheus collectors. A nil *metrics is valid
// and records nothing, so callers never need to check Config.Metrics.
type metrics struct {
	logins   *prometheus.CounterVec
	logouts  prometheus.Counter
	checks   *prometheus.CounterVec
	sessions prometheus.Gauge
	waiting  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_logins_total",
			Help: "Login attempts by result (ok, rejected, error)",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchboard_logouts_total",
			Help: "Sessions removed by logout",
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_session_checks_total",
			Help: "Session liveness checks by result (live, stale)",
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "switchboard_sessions",
			Help: "Sessions currently held by the client",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "switchboard_session_check_waiters",
			Help: "Callers waiting on an in-flight session check",
		}),
	}

	for _, c := range []prometheus.Collector{m.logins, m.logouts, m.checks, m.sessions, m.waiting} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *metrics) logout() {
	if m != nil {
		m.logouts.Inc()
	}
}

func (m *metrics) check(result string) {
	if m != nil {
		m.checks.WithLabelValues(result).Inc()
	}
}

func (m *metrics) setSessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}

func (m *metrics) checkWaiting(delta float64) {
	if m != nil {
		m.waiting.Add(delta)
	}
}
