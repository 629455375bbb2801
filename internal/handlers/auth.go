package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/services"
	"github.com/silentsos/silentsos/internal/types"
)

type LoginRequest struct {
	Email string `json:"email"`
}

type GoogleLoginRequest struct {
	Token string `json:"token"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

var errTokenNotValid = &apperr.AuthError{
	Code:    "token_not_valid",
	Message: "Token is invalid or expired",
	Status:  http.StatusUnauthorized,
}

// signIn records the login and mints a token pair for an active user.
func (h *Handler) signIn(ctx *gin.Context, user *models.User) (gin.H, bool) {
	if !user.IsActive {
		h.respondError(ctx, apperr.ErrAccountDisabled)
		return nil, false
	}

	if err := services.RecordLogin(ctx.Request.Context(), h.DB, user); err != nil {
		h.log.Warn("failed to record login", "user_id", user.ID, "error", err)
	}

	pair, err := h.Issuer.IssuePair(user.ID, user.Email)
	if err != nil {
		h.respondError(ctx, err)
		return nil, false
	}

	h.setTokenCookie(ctx, pair.Access)

	return gin.H{"refresh": pair.Refresh, "access": pair.Access}, true
}

// LoginUser signs a user in by institutional email, creating the account on
// first use.
func (h *Handler) LoginUser(ctx *gin.Context) {
	var body LoginRequest

	if err := ctx.ShouldBindJSON(&body); err != nil || body.Email == "" {
		h.respondError(ctx, apperr.NewValidation("email", "This field is required."))
		return
	}

	user, err := services.ResolveUser(ctx.Request.Context(), h.DB, body.Email)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	resp, ok := h.signIn(ctx, user)
	if !ok {
		return
	}

	resp["user"] = types.UserResponse{ID: user.ID, Email: user.Email}

	ctx.JSON(http.StatusOK, resp)
}

// GoogleLogin exchanges a Google ID token for a token pair.
func (h *Handler) GoogleLogin(ctx *gin.Context) {
	var body GoogleLoginRequest

	if err := ctx.ShouldBindJSON(&body); err != nil || body.Token == "" {
		h.respondError(ctx, apperr.NewValidation("token", "This field is required."))
		return
	}

	if h.Verifier == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	identity, err := h.Verifier.Verify(ctx.Request.Context(), body.Token)
	if err != nil {
		h.log.Info("rejected Google ID token", "error", err)
		h.respondError(ctx, apperr.ErrInvalidToken)
		return
	}

	user, err := services.ResolveUser(ctx.Request.Context(), h.DB, identity.Email)
	if err != nil {
		var vErr *apperr.ValidationError
		if errors.As(err, &vErr) && len(vErr.Fields["email"]) > 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": vErr.Fields["email"][0]})
			return
		}
		h.respondError(ctx, err)
		return
	}

	if identity.Picture != "" {
		if err := services.SetProfilePicture(ctx.Request.Context(), h.DB, user, identity.Picture); err != nil {
			h.log.Warn("failed to store profile picture", "user_id", user.ID, "error", err)
		}
	}

	resp, ok := h.signIn(ctx, user)
	if !ok {
		return
	}

	resp["message"] = "Authenticated"
	resp["user"] = user.Email

	ctx.JSON(http.StatusOK, resp)
}

// RefreshToken issues a new access token for a valid refresh token.
func (h *Handler) RefreshToken(ctx *gin.Context) {
	var body RefreshRequest

	if err := ctx.ShouldBindJSON(&body); err != nil || body.Refresh == "" {
		h.respondError(ctx, apperr.NewValidation("refresh", "This field is required."))
		return
	}

	access, err := h.Issuer.Refresh(body.Refresh)
	if err != nil {
		h.respondError(ctx, errTokenNotValid)
		return
	}

	h.setTokenCookie(ctx, access)

	ctx.JSON(http.StatusOK, gin.H{"access": access})
}

// LogoutUser blacklists the refresh token and clears the token cookie.
func (h *Handler) LogoutUser(ctx *gin.Context) {
	var body RefreshRequest

	if err := ctx.ShouldBindJSON(&body); err != nil || body.Refresh == "" {
		h.respondError(ctx, apperr.NewValidation("refresh", "This field is required."))
		return
	}

	if err := h.Issuer.Revoke(body.Refresh); err != nil {
		h.respondError(ctx, errTokenNotValid)
		return
	}

	h.clearTokenCookie(ctx)

	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me returns the caller's profile.
func (h *Handler) Me(ctx *gin.Context) {
	profile, ok := h.profile(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": profile})
}
