package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrometheusHandlerExposesSnapshot(t *testing.T) {
	req := require.New(t)
	m := New()
	m.Inc(SignalsRelayed)
	m.Add(SignalsDropped, 2)
	m.Inc(`quote"back\slash`)

	rr := httptest.NewRecorder()
	PrometheusHandler(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	req.Equal(http.StatusOK, rr.Code)
	body := rr.Body.String()
	req.Contains(body, "# TYPE vogo_relay_events_total counter")
	req.Contains(body, `vogo_relay_events_total{event="signals_relayed"} 1`)
	req.Contains(body, `vogo_relay_events_total{event="signals_dropped"} 2`)
	req.Contains(body, `vogo_relay_events_total{event="quote\"back\\slash"} 1`)
}

func TestNilMetricsIsSafeToCount(t *testing.T) {
	var m *Metrics
	m.Inc(Broadcasts)
	require.Zero(t, m.Get(Broadcasts))

	rr := httptest.NewRecorder()
	PrometheusHandler(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
