package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecorders(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/token", "POST", 200, 15*time.Millisecond)
	m.RecordError("/api/tasks/:id", "GET", "NOT_FOUND")
	m.RecordAuthDecision("forbidden")
	m.RecordAuthDecision("forbidden")
	m.RecordLogin("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/api/token", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("GET", "/api/tasks/:id", "NOT_FOUND")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.authDecisions.WithLabelValues("forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loginsTotal.WithLabelValues("success")))

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordAuthDecision("allow")
		m.RecordLogin("success")
	})
}

func TestIndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordLogin("success")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.loginsTotal.WithLabelValues("success")))
}
