package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/services"
	"github.com/silentsos/silentsos/internal/types"
)

type UpdateProfileRequest struct {
	Email          *string `json:"email"`
	ProfilePicture *string `json:"profile_picture"`
}

func (h *Handler) profileResponse(ctx *gin.Context, user *models.User) (types.ProfileResponse, error) {
	score, err := services.TrustScoreOf(ctx.Request.Context(), h.DB, user.ID)
	if err != nil {
		return types.ProfileResponse{}, err
	}

	return types.ProfileResponse{
		ID:             user.ID,
		Email:          user.Email,
		IsActive:       user.IsActive,
		IsStaff:        user.IsStaff,
		ProfilePicture: user.ProfilePicture,
		TrustScore:     score,
		LastLogin:      user.LastLogin,
		CreatedAt:      user.CreatedAt,
	}, nil
}

func (h *Handler) profile(ctx *gin.Context) (types.ProfileResponse, bool) {
	current, ok := h.requireUser(ctx)
	if !ok {
		return types.ProfileResponse{}, false
	}

	var user models.User

	if err := h.DB.WithContext(ctx.Request.Context()).First(&user, current.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperr.ErrNotAuthenticated
		}
		h.respondError(ctx, err)
		return types.ProfileResponse{}, false
	}

	resp, err := h.profileResponse(ctx, &user)
	if err != nil {
		h.respondError(ctx, err)
		return types.ProfileResponse{}, false
	}

	return resp, true
}

func (h *Handler) GetProfile(ctx *gin.Context) {
	profile, ok := h.profile(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, profile)
}

func (h *Handler) UpdateProfile(ctx *gin.Context) {
	current, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	var body UpdateProfileRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		h.respondError(ctx, invalidBody())
		return
	}

	user, err := services.UpdateProfile(ctx.Request.Context(), h.DB, current.ID, services.ProfileUpdate{
		Email:          body.Email,
		ProfilePicture: body.ProfilePicture,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	resp, err := h.profileResponse(ctx, user)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

// DeleteProfile deactivates the caller's account and signs them out.
func (h *Handler) DeleteProfile(ctx *gin.Context) {
	current, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	if err := services.Deactivate(ctx.Request.Context(), h.DB, current.ID); err != nil {
		h.respondError(ctx, err)
		return
	}

	h.clearTokenCookie(ctx)

	ctx.Status(http.StatusNoContent)
}
