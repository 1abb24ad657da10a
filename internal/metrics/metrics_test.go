package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsUpdate(t *testing.T) {
	before := testutil.ToFloat64(MessagesPublishedTotal.WithLabelValues("reload"))
	MessagesPublishedTotal.WithLabelValues("reload").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(MessagesPublishedTotal.WithLabelValues("reload")))

	WatcherUp.Set(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(WatcherUp))
	WatcherUp.Set(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(WatcherUp))
}

func TestHandlerExposesCollectors(t *testing.T) {
	StaticRequestsTotal.WithLabelValues("file").Inc()
	StaticRequestDuration.Observe(0.002)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"liveserve_connected_clients",
		"liveserve_watcher_up",
		"liveserve_static_requests_total",
		"liveserve_static_request_duration_seconds",
	} {
		assert.Contains(t, body, name)
	}
}
