package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.AlertCreated("SOS")
		m.BroadcastResult("websocket", nil)
		m.ValidationRecorded(true)
		m.WebsocketConnected()
		m.WebsocketDisconnected()
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.AlertCreated("SOS")
	m.AlertCreated("SOS")
	m.BroadcastResult("mqtt", errors.New("broker down"))
	m.ValidationRecorded(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsCreated.WithLabelValues("SOS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Broadcasts.WithLabelValues("mqtt", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("false")))
}

func TestHandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m, err := New()
	require.NoError(t, err)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `silentsos_http_request_duration_seconds_count{method="GET",route="/ping",status="204"} 1`)
}
