package apiclient

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "canton_client"

// Metrics holds the collectors shared by every Client built with it.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	auth     *prometheus.CounterVec
	retries  *prometheus.CounterVec
}

// NewMetrics creates the client collectors and registers them with
// registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Ledger API requests by API, method and outcome.",
		}, []string{"api", "method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Ledger API request latency including any retry.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"api", "method"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_total",
			Help:      "Token requests by API and outcome.",
		}, []string{"api", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retries_total",
			Help:      "Requests retried after a security-sensitive error.",
		}, []string{"api"}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, collector := range []prometheus.Collector{m.requests, m.duration, m.auth, m.retries} {
		if err := registerer.Register(collector); err != nil {
			return nil, errors.Wrap(err, "failed to register client metrics")
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(api, method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(api, method, outcome).Inc()
	m.duration.WithLabelValues(api, method).Observe(seconds)
}

func (m *Metrics) observeAuth(api, outcome string) {
	if m == nil {
		return
	}
	m.auth.WithLabelValues(api, outcome).Inc()
}

func (m *Metrics) observeRetry(api string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(api).Inc()
}
