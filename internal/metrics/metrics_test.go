package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"offeragg/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Attempt("ByteMe", time.Second, nil)
	m.Attempt("ByteMe", time.Second, errors.New("x"))
	m.Attempt("ByteMe", time.Second, errors.New("x"))
	m.Exhaust("ByteMe")
	m.CacheLookup("WebWunder", true)
	m.CacheLookup("WebWunder", false)
	m.OffersReturned("WebWunder", 7)

	require.InDelta(t, 1, testutil.ToFloat64(m.Attempts.WithLabelValues("ByteMe", "ok")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.Attempts.WithLabelValues("ByteMe", "error")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.Exhausted.WithLabelValues("ByteMe")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("WebWunder", "hit")), 0)
	require.InDelta(t, 7, testutil.ToFloat64(m.Offers.WithLabelValues("WebWunder")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(m.FetchSeconds))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.Attempt("x", 0, nil)
		m.Exhaust("x")
		m.CacheLookup("x", true)
		m.OffersReturned("x", 1)
	})
}

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics.New(reg).Exhaust("Ping Perfect")

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `offeragg_provider_exhausted_total{provider="Ping Perfect"} 1`)
}
