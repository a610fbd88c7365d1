package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the middleware counters.
type Metrics struct {
	// requests counts handled requests by outcome:
	// hit, miss, bypass, not_modified, gateway_timeout.
	requests *prometheus.CounterVec

	// stored counts responses written to the cache.
	stored prometheus.Counter
}

// NewMetrics creates and registers the middleware metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rescache",
			Name:      "requests_total",
			Help:      "Number of requests handled by the caching middleware, by outcome.",
		}, []string{"outcome"}),
		stored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rescache",
			Name:      "stored_responses_total",
			Help:      "Number of responses stored in the cache.",
		}),
	}
}

const (
	outcomeHit            = "hit"
	outcomeMiss           = "miss"
	outcomeBypass         = "bypass"
	outcomeNotModified    = "not_modified"
	outcomeGatewayTimeout = "gateway_timeout"
)

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeStored() {
	if m == nil {
		return
	}
	m.stored.Inc()
}
