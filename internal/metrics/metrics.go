package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the aggregation collectors. A nil *Metrics records nothing.
type Metrics struct {
	Attempts     *prometheus.CounterVec
	Exhausted    *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
	Offers       *prometheus.CounterVec
	FetchSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offeragg_provider_attempts_total",
			Help: "Upstream fetch attempts by outcome (ok, error).",
		}, []string{"provider", "outcome"}),
		Exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offeragg_provider_exhausted_total",
			Help: "Fetches that failed on every attempt.",
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offeragg_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss).",
		}, []string{"provider", "result"}),
		Offers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offeragg_offers_total",
			Help: "Normalized offers returned per provider.",
		}, []string{"provider"}),
		FetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "offeragg_provider_fetch_seconds",
			Help:    "Duration of a single upstream attempt.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.Attempts, m.Exhausted, m.CacheLookups, m.Offers, m.FetchSeconds)
	}
	return m
}

// Attempt records one upstream attempt.
func (m *Metrics) Attempt(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Attempts.WithLabelValues(provider, outcome).Inc()
	m.FetchSeconds.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) Exhaust(provider string) {
	if m == nil {
		return
	}
	m.Exhausted.WithLabelValues(provider).Inc()
}

func (m *Metrics) CacheLookup(provider string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) OffersReturned(provider string, n int) {
	if m == nil {
		return
	}
	m.Offers.WithLabelValues(provider).Add(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
