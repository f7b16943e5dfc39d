package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCommand(t *testing.T) {
	m := New()

	m.ObserveCommand("propose", OutcomeOK)
	m.ObserveCommand("propose", OutcomeOK)
	m.ObserveCommand("propose", OutcomeRejected)
	m.ObserveCommit()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("propose", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("propose", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commits))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveCommand("propose", OutcomeOK)
		m.ObserveCommit()
		m.ObserveRequest("GET", "/api/circles", "200", time.Millisecond)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/circles/:id", "200", 20*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `circles_http_requests_total{method="GET",route="/api/circles/:id",status="200"} 1`)
}

func TestRegistryGathersCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "/api/circles", "201", time.Millisecond)
	m.ObserveRequest("GET", "/api/circles", "200", time.Millisecond)
	m.ObserveCommand("create_circle", OutcomeOK)

	count, err := testutil.GatherAndCount(m.Registry(), "circles_http_requests_total", "circles_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
