package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancesAreIndependent(t *testing.T) {
	a := New()
	b := New()

	a.SessionsStarted.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.SessionsStarted))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SessionsStarted))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ChunksDelivered.Add(3)
	m.StartFailures.WithLabelValues("backend").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "audiotap_chunks_delivered_total 3")
	assert.Contains(t, string(body), `audiotap_start_failures_total{reason="backend"} 1`)
}

func TestTotal(t *testing.T) {
	m := New()
	m.FramesIn.Add(480)
	m.StartFailures.WithLabelValues("backend").Inc()
	m.StartFailures.WithLabelValues("already_capturing").Add(2)

	assert.Equal(t, 480.0, m.Total("audiotap_frames_in_total"))
	assert.Equal(t, 3.0, m.Total("audiotap_start_failures_total"))
	assert.Equal(t, 0.0, m.Total("audiotap_no_such_counter"))
}
