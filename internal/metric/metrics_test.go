package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	require.NotNil(t, registry.Metrics)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["superserial_link_state"])
	assert.True(t, names["superserial_link_bytes_read_total"])
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordLinkState(2)
	m.RecordOpen(true)
	m.RecordOpen(false)
	m.RecordOpen(false)
	m.RecordBytesRead(10)
	m.RecordBytesRead(-1)
	m.RecordBytesWritten(4)
	m.RecordError("DeviceRemoved")
	m.RecordProfileLoad(true, 3)
	m.RecordProfileLoad(false, 0)
	m.RecordProfileSave(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LinkState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkOpens.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LinkOpens.WithLabelValues("failure")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.BytesRead))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.BytesWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("DeviceRemoved")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ProfilesLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProfileSaves.WithLabelValues("success")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordLinkState(1)
		m.RecordOpen(true)
		m.RecordBytesRead(1)
		m.RecordBytesWritten(1)
		m.RecordError("Timeout")
		m.RecordProfileLoad(true, 1)
		m.RecordProfileSave(false)
	})
}

func TestRegistry_Handler(t *testing.T) {
	registry := NewRegistry()
	registry.Metrics.RecordBytesWritten(7)

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "superserial_link_bytes_written_total 7")
}
