package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/auth"
	"github.com/silentsos/silentsos/internal/middleware"
	"github.com/silentsos/silentsos/internal/testutil"
	"github.com/silentsos/silentsos/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*gorm.DB, *auth.Issuer, *gin.Engine) {
	t.Helper()

	conn := testutil.NewTestDB(t)
	issuer, err := auth.NewIssuer("test-secret", time.Minute, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	whoami := func(ctx *gin.Context) {
		user, err := utils.GetCurrentUser(ctx)
		if err != nil {
			ctx.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"id": user.ID})
	}
	r.GET("/private", middleware.AuthMiddleware(conn, issuer), whoami)
	r.GET("/optional", middleware.OptionalAuth(conn, issuer), whoami)

	return conn, issuer, r
}

func do(r http.Handler, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	conn, issuer, r := setup(t)
	user := testutil.CreateUser(t, conn, "alice")

	pair, err := issuer.IssuePair(user.ID, user.Email)
	require.NoError(t, err)

	t.Run("missing credentials", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "/private", nil).Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		w := do(r, "/private", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+pair.Access)
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":`)
	})

	t.Run("cookie fallback", func(t *testing.T) {
		w := do(r, "/private", func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: pair.Access})
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := do(r, "/private", func(req *http.Request) {
			req.Header.Set("Authorization", "Token "+pair.Access)
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		w := do(r, "/private", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+pair.Refresh)
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("inactive user rejected", func(t *testing.T) {
		require.NoError(t, conn.Model(user).UpdateColumn("is_active", false).Error)
		w := do(r, "/private", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+pair.Access)
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	conn, issuer, r := setup(t)
	user := testutil.CreateUser(t, conn, "bob")

	pair, err := issuer.IssuePair(user.ID, user.Email)
	require.NoError(t, err)

	w := do(r, "/optional", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous")

	w = do(r, "/optional", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+pair.Access)
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "anonymous")

	w = do(r, "/optional", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer garbage")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/limited", middleware.RateLimit(time.Hour, 2, time.Minute), func(ctx *gin.Context) {
		ctx.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, do(r, "/limited", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/limited", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "/limited", nil).Code)

	other := do(r, "/limited", func(req *http.Request) {
		req.RemoteAddr = "10.0.0.2:1234"
	})
	assert.Equal(t, http.StatusNoContent, other.Code, "limits are per client IP")
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.GET("/missing/:id", func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
	})

	do(r, "/missing/3", nil)

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"route":"/missing/:id"`)
	assert.Contains(t, out, `"status":404`)
}
