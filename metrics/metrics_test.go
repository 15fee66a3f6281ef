package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	require.NoError(t, err)

	rec.NotificationReceived("approved")
	rec.NotificationReceived("approved")
	rec.DispatchObserved("pix_timeout", false, 20*time.Millisecond)
	rec.DispatchObserved("approved", true, 10*time.Millisecond)
	rec.PendingOrders(3)
	rec.Escalation(EscalationFired)
	rec.HTTPRequest("/status", "GET", 200, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.notifications.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.dispatches.WithLabelValues("pix_timeout", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.dispatches.WithLabelValues("approved", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.escalations.WithLabelValues(EscalationFired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.httpRequests.WithLabelValues("/status", "GET", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["relay_dispatch_duration_seconds"])
	assert.True(t, names["relay_http_request_duration_seconds"])
}

func TestRecorderDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	m := Normalize(nil)
	require.NotNil(t, m)
	m.DispatchObserved("approved", true, time.Second)

	rec, err := NewRecorder(nil)
	require.NoError(t, err)
	assert.Same(t, rec, Normalize(rec))
}
