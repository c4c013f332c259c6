package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the CMS collectors.
const (
	OutcomeOK        = "ok"
	OutcomeStatus    = "status_error"
	OutcomeTransport = "transport_error"
	OutcomeNoToken   = "no_token"
)

// CMS holds the collectors for outbound calls to the headless CMS.
// A nil *CMS is valid and records nothing.
type CMS struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	logins   *prometheus.CounterVec
}

func NewCMS(reg prometheus.Registerer) *CMS {
	m := &CMS{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "news_site",
			Subsystem: "cms",
			Name:      "requests_total",
			Help:      "Number of CMS requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "news_site",
			Subsystem: "cms",
			Name:      "request_duration_seconds",
			Help:      "Time spent waiting on the CMS",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "news_site",
			Subsystem: "cms",
			Name:      "logins_total",
			Help:      "Number of CMS login attempts by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.requests, m.duration, m.logins)
	return m
}

func (m *CMS) ObserveRequest(endpoint, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.duration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func (m *CMS) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Handler exposes everything gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
