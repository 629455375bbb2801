package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/services"
	"github.com/silentsos/silentsos/internal/types"
	"github.com/silentsos/silentsos/internal/utils"
)

type CreateValidationRequest struct {
	Alert  uint  `json:"alert"`
	IsTrue *bool `json:"is_true"`
}

type CreateEndorsementRequest struct {
	Alert uint `json:"alert"`
}

func validationResponse(v *models.AlertValidation) types.ValidationResponse {
	return types.ValidationResponse{
		ID:          v.ID,
		User:        v.UserID,
		Alert:       v.AlertID,
		IsTrue:      v.IsTrue,
		ValidatedAt: v.ValidatedAt,
	}
}

func endorsementResponse(e *models.Endorsement) types.EndorsementResponse {
	return types.EndorsementResponse{
		ID:        e.ID,
		User:      e.UserID,
		Alert:     e.AlertID,
		CreatedAt: e.CreatedAt,
	}
}

func (h *Handler) ListValidations(ctx *gin.Context) {
	user, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	page := utils.GetPage(ctx)

	validations, count, err := h.Validations.List(ctx.Request.Context(), user.ID, page)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	results := make([]types.ValidationResponse, 0, len(validations))
	for i := range validations {
		results = append(results, validationResponse(&validations[i]))
	}

	ctx.JSON(http.StatusOK, types.ListResponse[types.ValidationResponse]{
		Count:   count,
		Limit:   page.Limit,
		Offset:  page.Offset,
		Results: results,
	})
}

// CreateValidation records the caller's true/false judgment of an alert.
func (h *Handler) CreateValidation(ctx *gin.Context) {
	user, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	var body CreateValidationRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		h.respondError(ctx, invalidBody())
		return
	}

	var v apperr.ValidationError
	if body.Alert == 0 {
		v.Add("alert", "This field is required.")
	}
	if body.IsTrue == nil {
		v.Add("is_true", "This field is required.")
	}
	if err := v.Err(); err != nil {
		h.respondError(ctx, err)
		return
	}

	validation, err := h.Validations.Record(ctx.Request.Context(), user.ID, body.Alert, *body.IsTrue)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, validationResponse(validation))
}

func (h *Handler) GetValidation(ctx *gin.Context) {
	user, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	id, err := utils.GetIDParam(ctx, "id")
	if err != nil {
		notFound(ctx)
		return
	}

	validation, err := h.Validations.Get(ctx.Request.Context(), user.ID, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, validationResponse(validation))
}

// ListEndorsements lists every endorsement, optionally for one ?alert=.
func (h *Handler) ListEndorsements(ctx *gin.Context) {
	page := utils.GetPage(ctx)

	var alertID uint
	if raw := ctx.Query("alert"); raw != "" {
		id, err := parsePK("alert", []byte(raw))
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		alertID = id
	}

	endorsements, count, err := services.ListEndorsements(ctx.Request.Context(), h.DB, alertID, page)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	results := make([]types.EndorsementResponse, 0, len(endorsements))
	for i := range endorsements {
		results = append(results, endorsementResponse(&endorsements[i]))
	}

	ctx.JSON(http.StatusOK, types.ListResponse[types.EndorsementResponse]{
		Count:   count,
		Limit:   page.Limit,
		Offset:  page.Offset,
		Results: results,
	})
}

func (h *Handler) CreateEndorsement(ctx *gin.Context) {
	user, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	var body CreateEndorsementRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		h.respondError(ctx, invalidBody())
		return
	}

	endorsement, err := services.Endorse(ctx.Request.Context(), h.DB, user.ID, body.Alert)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, endorsementResponse(endorsement))
}

func (h *Handler) GetEndorsement(ctx *gin.Context) {
	id, err := utils.GetIDParam(ctx, "id")
	if err != nil {
		notFound(ctx)
		return
	}

	endorsement, err := services.GetEndorsement(ctx.Request.Context(), h.DB, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, endorsementResponse(endorsement))
}

func (h *Handler) DeleteEndorsement(ctx *gin.Context) {
	user, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	id, err := utils.GetIDParam(ctx, "id")
	if err != nil {
		notFound(ctx)
		return
	}

	if err := services.DeleteEndorsement(ctx.Request.Context(), h.DB, user.ID, id); err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
