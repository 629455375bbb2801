package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/markbates/goth/gothic"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/auth"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/services"
	"github.com/silentsos/silentsos/internal/types"
)

const googleProvider = "google"

func providerRequest(ctx *gin.Context) *http.Request {
	return gothic.GetContextWithProvider(ctx.Request, googleProvider)
}

// sessionUserID reads the user id stored by GoogleComplete.
func sessionUserID(req *http.Request) (uint, error) {
	raw, err := gothic.GetFromSession(auth.SessionUserKey, req)
	if err != nil || raw == "" {
		return 0, apperr.ErrNotAuthenticated
	}

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.ErrNotAuthenticated
	}

	return uint(id), nil
}

// GoogleStart redirects the browser to Google's consent screen.
func (h *Handler) GoogleStart(ctx *gin.Context) {
	gothic.BeginAuthHandler(ctx.Writer, providerRequest(ctx))
}

// GoogleComplete finishes the OAuth exchange, links the Google account and
// remembers the user in the session.
func (h *Handler) GoogleComplete(ctx *gin.Context) {
	req := providerRequest(ctx)

	gothUser, err := gothic.CompleteUserAuth(ctx.Writer, req)
	if err != nil {
		h.log.Info("Google sign-in failed", "error", err)
		h.respondError(ctx, apperr.ErrInvalidToken)
		return
	}

	user, err := services.ResolveUser(req.Context(), h.DB, gothUser.Email)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	if !user.IsActive {
		h.respondError(ctx, apperr.ErrAccountDisabled)
		return
	}

	_, err = services.LinkSocialAccount(req.Context(), h.DB, user, services.ExternalLogin{
		Provider:     gothUser.Provider,
		UID:          gothUser.UserID,
		RawData:      gothUser.RawData,
		AccessToken:  gothUser.AccessToken,
		RefreshToken: gothUser.RefreshToken,
		ExpiresAt:    gothUser.ExpiresAt,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	if gothUser.AvatarURL != "" {
		if err := services.SetProfilePicture(req.Context(), h.DB, user, gothUser.AvatarURL); err != nil {
			h.log.Warn("failed to store profile picture", "user_id", user.ID, "error", err)
		}
	}

	if err := gothic.StoreInSession(auth.SessionUserKey, strconv.FormatUint(uint64(user.ID), 10), req, ctx.Writer); err != nil {
		h.respondError(ctx, err)
		return
	}

	h.log.Info("Google account linked", "user_id", user.ID)

	callback := strings.TrimSuffix(ctx.Request.URL.Path, "/complete") + "/callback"
	ctx.Redirect(http.StatusFound, callback)
}

// GoogleCallback mints a token pair for the user signed in through the web
// flow, provided their Google account is still linked.
func (h *Handler) GoogleCallback(ctx *gin.Context) {
	userID, err := sessionUserID(ctx.Request)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	if _, err := services.LinkedToken(ctx.Request.Context(), h.DB, userID, googleProvider); err != nil {
		h.respondError(ctx, err)
		return
	}

	var user models.User
	if err := h.DB.WithContext(ctx.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperr.ErrNotAuthenticated
		}
		h.respondError(ctx, err)
		return
	}

	resp, ok := h.signIn(ctx, &user)
	if !ok {
		return
	}

	resp["user"] = types.UserResponse{ID: user.ID, Email: user.Email}

	ctx.JSON(http.StatusOK, resp)
}

// GoogleLogout revokes the stored Google token and ends the web session.
// Revocation failures are logged; the local token is dropped regardless.
func (h *Handler) GoogleLogout(ctx *gin.Context) {
	userID, err := sessionUserID(ctx.Request)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	token, err := services.LinkedToken(ctx.Request.Context(), h.DB, userID, googleProvider)

	var authErr *apperr.AuthError
	switch {
	case errors.As(err, &authErr):
		h.log.Info("no Google token to revoke", "user_id", userID, "code", authErr.Code)
	case err != nil:
		h.respondError(ctx, err)
		return
	default:
		if err := auth.RevokeGoogleToken(ctx.Request.Context(), h.HTTPClient, services.OAuth2Token(token)); err != nil {
			h.log.Warn("failed to revoke Google token", "user_id", userID, "error", err)
		}

		if err := services.DeleteToken(ctx.Request.Context(), h.DB, token); err != nil {
			h.respondError(ctx, err)
			return
		}
	}

	if err := gothic.Logout(ctx.Writer, providerRequest(ctx)); err != nil {
		h.log.Warn("failed to clear session", "user_id", userID, "error", err)
	}

	h.clearTokenCookie(ctx)

	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
