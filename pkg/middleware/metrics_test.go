package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricFor extracts the series matching every given label pair from a
// collector, or nil when no series matches.
func metricFor(c prometheus.Collector, labels map[string]string) *dto.Metric {
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		got := make(map[string]string, len(d.GetLabel()))
		for _, lp := range d.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		matched := true
		for k, v := range labels {
			if got[k] != v {
				matched = false
				break
			}
		}
		if matched {
			return d
		}
	}
	return nil
}

// serveInstrumented sends one GET /wishlists through PrometheusMetrics(service)
// in front of the given handler. A chi router is used so the middleware can
// read the route pattern.
func serveInstrumented(t *testing.T, service string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/wishlists", handler)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/wishlists", nil))
	return rr
}

func TestPrometheusMetrics_CountsAndTimesRequests(t *testing.T) {
	for i := 0; i < 3; i++ {
		rr := serveInstrumented(t, "wishlist", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	labels := map[string]string{"service": "wishlist", "method": "GET", "path": "/wishlists", "status": "200"}

	counter := metricFor(httpRequestsTotal, labels)
	require.NotNil(t, counter, "request counter series missing")
	assert.GreaterOrEqual(t, counter.GetCounter().GetValue(), float64(3))

	hist := metricFor(httpRequestDuration, labels)
	require.NotNil(t, hist, "duration histogram series missing")
	assert.GreaterOrEqual(t, hist.GetHistogram().GetSampleCount(), uint64(3))
}

func TestPrometheusMetrics_InFlightGauge(t *testing.T) {
	inFlight := float64(-1)
	serveInstrumented(t, "wishlist-inflight", func(w http.ResponseWriter, r *http.Request) {
		if m := metricFor(httpRequestsInFlight, map[string]string{"service": "wishlist-inflight"}); m != nil {
			inFlight = m.GetGauge().GetValue()
		}
		w.WriteHeader(http.StatusOK)
	})

	assert.GreaterOrEqual(t, inFlight, float64(1), "gauge should count the request while the handler runs")
}

func TestPrometheusMetrics_RecordsStatusCode(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			service := "wishlist-status-" + strconv.Itoa(code)
			rr := serveInstrumented(t, service, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			})
			assert.Equal(t, code, rr.Code)

			m := metricFor(httpRequestsTotal, map[string]string{"service": service, "status": strconv.Itoa(code)})
			assert.NotNil(t, m, "counter should carry the handler's status code")
		})
	}
}

func TestPrometheusMetrics_DefaultStatusCode(t *testing.T) {
	serveInstrumented(t, "wishlist-implicit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	m := metricFor(httpRequestsTotal, map[string]string{"service": "wishlist-implicit", "status": "200"})
	assert.NotNil(t, m, "an implicit WriteHeader should be recorded as 200")
}

// streamWriter records Flush and Hijack calls made through the wrapper.
type streamWriter struct {
	http.ResponseWriter
	flushed  bool
	hijacked bool
}

func (s *streamWriter) Flush() { s.flushed = true }

func (s *streamWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	s.hijacked = true
	return nil, nil, nil
}

// headerOnlyWriter satisfies http.ResponseWriter and nothing else.
type headerOnlyWriter struct{ h http.Header }

func (w *headerOnlyWriter) Header() http.Header {
	if w.h == nil {
		w.h = make(http.Header)
	}
	return w.h
}

func (w *headerOnlyWriter) Write(b []byte) (int, error) { return len(b), nil }

func (w *headerOnlyWriter) WriteHeader(int) {}

func TestMetricsResponseWriter_StreamingDelegation(t *testing.T) {
	under := &streamWriter{ResponseWriter: httptest.NewRecorder()}
	rw := &metricsResponseWriter{ResponseWriter: under, statusCode: http.StatusOK}

	rw.Flush()
	assert.True(t, under.flushed)

	_, _, err := rw.Hijack()
	assert.NoError(t, err)
	assert.True(t, under.hijacked)
}

func TestMetricsResponseWriter_NonStreamingUnderlying(t *testing.T) {
	rw := &metricsResponseWriter{ResponseWriter: &headerOnlyWriter{}, statusCode: http.StatusOK}

	rw.Flush() // must not panic

	_, _, err := rw.Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
}

func TestMetricsResponseWriter_InterfaceSatisfaction(t *testing.T) {
	var rw interface{} = &metricsResponseWriter{ResponseWriter: httptest.NewRecorder()}

	_, ok := rw.(http.Flusher)
	assert.True(t, ok)
	_, ok = rw.(http.Hijacker)
	assert.True(t, ok)
}
