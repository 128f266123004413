package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the Prometheus counters exposed on /metrics. Each Server
// carries its own registry so tests can construct servers freely.
type metrics struct {
	registry *prometheus.Registry

	signIns     *prometheus.CounterVec
	adminChecks *prometheus.CounterVec
	provisioned prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		signIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmail_sign_ins_total",
			Help: "Sign-in attempts by result.",
		}, []string{"result"}),
		adminChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmail_admin_checks_total",
			Help: "Database diagnostic endpoint invocations by check and result.",
		}, []string{"check", "result"}),
		provisioned: factory.NewCounter(prometheus.CounterOpts{
			Name: "llmail_profiles_provisioned_total",
			Help: "Profile rows created on first sign-in.",
		}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) signIn(success bool) {
	m.signIns.WithLabelValues(resultLabel(success)).Inc()
}

func (m *metrics) adminCheck(check string, success bool) {
	m.adminChecks.WithLabelValues(check, resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
