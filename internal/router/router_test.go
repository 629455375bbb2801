package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silentsos/silentsos/internal/auth"
	"github.com/silentsos/silentsos/internal/broadcast"
	"github.com/silentsos/silentsos/internal/config"
	"github.com/silentsos/silentsos/internal/handlers"
	"github.com/silentsos/silentsos/internal/metrics"
	"github.com/silentsos/silentsos/internal/router"
	"github.com/silentsos/silentsos/internal/services"
	"github.com/silentsos/silentsos/internal/storage"
	"github.com/silentsos/silentsos/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, m *metrics.Metrics) *gin.Engine {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		AllowedOrigins:  []string{"http://localhost:3000"},
		AlertTypes:      []string{"SOS", "RISK"},
		AlertVisibility: "owner",
		Storage:         config.StorageConfig{MediaURL: "/media"},
	}

	conn := testutil.NewTestDB(t)

	issuer, err := auth.NewIssuer(cfg.JWTSecret, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	store, err := storage.NewLocalStore(t.TempDir(), cfg.Storage.MediaURL)
	require.NoError(t, err)

	h := handlers.New(handlers.Handler{
		DB:          conn,
		Config:      cfg,
		Issuer:      issuer,
		Alerts:      services.NewAlertService(conn, store, nil, services.AlertOptions{AlertTypes: cfg.AlertTypes, Visibility: cfg.AlertVisibility}, m),
		Validations: services.NewValidationService(conn, nil, true, m),
		Hub:         broadcast.NewHub(m),
	})

	return router.NewRouter(h, router.Options{Metrics: m, MediaRoot: store.Root()})
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMetricsEndpoint(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)

	r := newRouter(t, m)

	require.Equal(t, http.StatusOK, get(r, "/api/health").Code)

	rec := get(r, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `silentsos_http_request_duration_seconds_count{method="GET",route="/api/health",status="200"} 1`)
}

func TestRoutesWithoutOptionalFeatures(t *testing.T) {
	r := newRouter(t, nil)

	assert.Equal(t, http.StatusNotFound, get(r, "/api/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/auth/google/start").Code, "web sign-in needs client credentials")

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/alerts").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/users/me").Code)
}

func TestCORS(t *testing.T) {
	r := newRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/alerts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/alerts", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
