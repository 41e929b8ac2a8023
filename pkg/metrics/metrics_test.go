package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	RecordEventIngested("port_scan")
	RecordIncidentPromoted("hunter")
	RecordPhaseDuration("detection", "promoted", 10*time.Millisecond)
	RecordActionExecuted("isolate_host", "resolved")
	SetDLQDepth(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "hornet_dispatcher_events_ingested_total")
	assert.Contains(t, body, "hornet_dispatcher_incidents_promoted_total")
	assert.Contains(t, body, "hornet_coordinator_phase_duration_seconds")
	assert.Contains(t, body, "hornet_executor_actions_total")
	assert.Contains(t, body, "hornet_retryqueue_dlq_depth 3")
}

func TestInstrumentHandlerRecordsRequest(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	wrapped := InstrumentHandler(inner)

	req := httptest.NewRequest(http.MethodGet, "/incidents", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRecordTokensSpentIgnoresNonPositive(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordTokensSpent("analysis", 0)
		RecordTokensSpent("analysis", -5)
		RecordTokensSpent("analysis", 100)
	})
}
