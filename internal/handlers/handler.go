// Package handlers implements the HTTP endpoints of the API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/auth"
	"github.com/silentsos/silentsos/internal/broadcast"
	"github.com/silentsos/silentsos/internal/config"
	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/middleware"
	"github.com/silentsos/silentsos/internal/scheduler"
	"github.com/silentsos/silentsos/internal/services"
	"github.com/silentsos/silentsos/internal/utils"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	DB          *gorm.DB
	Config      *config.Config
	Issuer      *auth.Issuer
	Verifier    auth.GoogleVerifier
	Alerts      *services.AlertService
	Validations *services.ValidationService
	Hub         *broadcast.Hub
	Scheduler   *scheduler.Scheduler
	// HTTPClient is used for outbound calls such as token revocation.
	HTTPClient *http.Client

	log *slog.Logger
}

func New(h Handler) *Handler {
	h.log = logging.For("handlers")
	if h.HTTPClient == nil {
		h.HTTPClient = http.DefaultClient
	}
	return &h
}

// respondError writes the response matching err's kind. Unknown errors are
// logged and hidden behind a 500.
func (h *Handler) respondError(ctx *gin.Context, err error) {
	var (
		vErr    *apperr.ValidationError
		authErr *apperr.AuthError
	)

	switch {
	case errors.As(err, &vErr):
		ctx.JSON(http.StatusBadRequest, vErr.Fields)
	case errors.As(err, &authErr):
		ctx.JSON(authErr.Status, gin.H{"error": authErr.Message, "code": authErr.Code})
	case errors.Is(err, apperr.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, apperr.ErrForbidden):
		ctx.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action"})
	default:
		_ = ctx.Error(err)
		h.log.Error("request failed", "method", ctx.Request.Method, "path", ctx.Request.URL.Path, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *Handler) requireUser(ctx *gin.Context) (middleware.AuthenticatedUser, bool) {
	user, err := utils.GetCurrentUser(ctx)
	if err != nil {
		h.respondError(ctx, apperr.ErrNotAuthenticated)
		return user, false
	}
	return user, true
}

func (h *Handler) setTokenCookie(ctx *gin.Context, token string) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Domain:   h.Config.CookieDomain,
		MaxAge:   int(h.Config.AccessTokenTTL.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *Handler) clearTokenCookie(ctx *gin.Context) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Domain:   h.Config.CookieDomain,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

func invalidBody() error {
	return apperr.NewValidation(apperr.NonFieldErrors, "Invalid request body.")
}

func notFound(ctx *gin.Context) {
	ctx.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}
