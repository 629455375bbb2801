package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/auth"
	"github.com/silentsos/silentsos/internal/broadcast"
	"github.com/silentsos/silentsos/internal/config"
	"github.com/silentsos/silentsos/internal/handlers"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/router"
	"github.com/silentsos/silentsos/internal/services"
	"github.com/silentsos/silentsos/internal/storage"
	"github.com/silentsos/silentsos/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []broadcast.AlertEvent
}

func (n *recordingNotifier) PublishAsync(event broadcast.AlertEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type fakeVerifier struct {
	identity *auth.GoogleIdentity
	err      error
}

func (f *fakeVerifier) Verify(context.Context, string) (*auth.GoogleIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type testEnv struct {
	conn     *gorm.DB
	cfg      *config.Config
	issuer   *auth.Issuer
	verifier *fakeVerifier
	notifier *recordingNotifier
	handler  *handlers.Handler
	router   *gin.Engine
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           "test-secret",
		AccessTokenTTL:      5 * time.Minute,
		RefreshTokenTTL:     24 * time.Hour,
		EmailDomain:         testutil.Domain,
		AlertTypes:          []string{models.AlertTypeSOS, models.AlertTypeRisk},
		AlertVisibility:     config.VisibilityOwner,
		AllowSelfValidation: true,
		TrustDeltaTrue:      1,
		TrustDeltaFalse:     -1,
		PublishTimeout:      time.Second,
		Storage:             config.StorageConfig{Backend: "local", MediaURL: "/media"},
		AllowedOrigins:      []string{"http://localhost:3000"},
		SessionSecret:       "session-secret",
	}
}

func newTestEnv(t *testing.T, configure ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	conn := testutil.NewTestDB(t)

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	require.NoError(t, err)

	store, err := storage.NewLocalStore(t.TempDir(), cfg.Storage.MediaURL)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	verifier := &fakeVerifier{}

	trust := services.NewTrustUpdater(conn, services.TrustPolicy{DeltaTrue: cfg.TrustDeltaTrue, DeltaFalse: cfg.TrustDeltaFalse})

	auth.InitializeGoth(cfg.Google, cfg.SessionSecret, false)

	h := handlers.New(handlers.Handler{
		DB:       conn,
		Config:   cfg,
		Issuer:   issuer,
		Verifier: verifier,
		Alerts: services.NewAlertService(conn, store, notifier, services.AlertOptions{
			AlertTypes:     cfg.AlertTypes,
			Visibility:     cfg.AlertVisibility,
			AllowAnonymous: cfg.AllowAnonymousAlerts,
		}, nil),
		Validations: services.NewValidationService(conn, trust, cfg.AllowSelfValidation, nil),
		Hub:         broadcast.NewHub(nil),
	})

	return &testEnv{
		conn:     conn,
		cfg:      cfg,
		issuer:   issuer,
		verifier: verifier,
		notifier: notifier,
		handler:  h,
		router:   router.NewRouter(h, router.Options{MediaRoot: store.Root()}),
	}
}

func (e *testEnv) token(t *testing.T, user *models.User) string {
	t.Helper()

	pair, err := e.issuer.IssuePair(user.ID, user.Email)
	require.NoError(t, err)

	return pair.Access
}

func (e *testEnv) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return e.serve(req, token)
}

type filePart struct {
	field, name string
	content     []byte
}

func (e *testEnv) multipart(t *testing.T, path string, fields map[string]string, file *filePart, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	if file != nil {
		part, err := w.CreateFormFile(file.field, file.name)
		require.NoError(t, err)
		_, err = part.Write(file.content)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return e.serve(req, token)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	return body
}

var errBadToken = errors.New("token signature mismatch")
