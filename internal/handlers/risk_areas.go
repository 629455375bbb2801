package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/types"
	"github.com/silentsos/silentsos/internal/utils"
)

func riskAreaResponse(area *models.RiskArea) types.RiskAreaResponse {
	return types.RiskAreaResponse{
		ID:          area.ID,
		Name:        area.Name,
		Description: area.Description,
		Latitude:    area.Latitude,
		Longitude:   area.Longitude,
		Radius:      area.Radius,
		CreatedAt:   area.CreatedAt,
		UpdatedAt:   area.UpdatedAt,
	}
}

// applyRiskArea copies the fields present in req onto area and validates the
// result. Unless partial, every field but description must be present.
func applyRiskArea(area *models.RiskArea, req types.RiskAreaRequest, partial bool) error {
	var v apperr.ValidationError

	if req.Name != nil {
		area.Name = *req.Name
	} else if !partial {
		v.Add("name", "This field is required.")
	}

	if req.Description != nil {
		area.Description = *req.Description
	}

	if req.Latitude != nil {
		area.Latitude = req.Latitude.String()
	} else if !partial {
		v.Add("latitude", "This field is required.")
	}

	if req.Longitude != nil {
		area.Longitude = req.Longitude.String()
	} else if !partial {
		v.Add("longitude", "This field is required.")
	}

	if req.Radius != nil {
		area.Radius = *req.Radius
	} else if !partial {
		v.Add("radius", "This field is required.")
	}

	if err := v.Err(); err != nil {
		return err
	}

	return area.Validate()
}

func (h *Handler) loadRiskArea(ctx *gin.Context) (*models.RiskArea, bool) {
	id, err := utils.GetIDParam(ctx, "id")
	if err != nil {
		notFound(ctx)
		return nil, false
	}

	var area models.RiskArea

	if err := h.DB.WithContext(ctx.Request.Context()).First(&area, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperr.ErrNotFound
		}
		h.respondError(ctx, err)
		return nil, false
	}

	return &area, true
}

func (h *Handler) ListRiskAreas(ctx *gin.Context) {
	page := utils.GetPage(ctx)

	var (
		areas []models.RiskArea
		count int64
	)

	q := h.DB.WithContext(ctx.Request.Context()).Model(&models.RiskArea{}).Session(&gorm.Session{})

	if err := q.Count(&count).Error; err != nil {
		h.respondError(ctx, err)
		return
	}

	if err := q.Order("created_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset).Find(&areas).Error; err != nil {
		h.respondError(ctx, err)
		return
	}

	results := make([]types.RiskAreaResponse, 0, len(areas))
	for i := range areas {
		results = append(results, riskAreaResponse(&areas[i]))
	}

	ctx.JSON(http.StatusOK, types.ListResponse[types.RiskAreaResponse]{
		Count:   count,
		Limit:   page.Limit,
		Offset:  page.Offset,
		Results: results,
	})
}

func (h *Handler) CreateRiskArea(ctx *gin.Context) {
	var body types.RiskAreaRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		h.respondError(ctx, invalidBody())
		return
	}

	var area models.RiskArea

	if err := applyRiskArea(&area, body, false); err != nil {
		h.respondError(ctx, err)
		return
	}

	if err := h.DB.WithContext(ctx.Request.Context()).Create(&area).Error; err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, riskAreaResponse(&area))
}

func (h *Handler) GetRiskArea(ctx *gin.Context) {
	area, ok := h.loadRiskArea(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, riskAreaResponse(area))
}

// UpdateRiskArea serves both PUT (every field) and PATCH (present fields).
func (h *Handler) UpdateRiskArea(ctx *gin.Context) {
	area, ok := h.loadRiskArea(ctx)
	if !ok {
		return
	}

	var body types.RiskAreaRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		h.respondError(ctx, invalidBody())
		return
	}

	if err := applyRiskArea(area, body, ctx.Request.Method == http.MethodPatch); err != nil {
		h.respondError(ctx, err)
		return
	}

	if err := h.DB.WithContext(ctx.Request.Context()).Save(area).Error; err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, riskAreaResponse(area))
}

// DeleteRiskArea removes the area. Alerts that referenced it keep existing
// without one.
func (h *Handler) DeleteRiskArea(ctx *gin.Context) {
	area, ok := h.loadRiskArea(ctx)
	if !ok {
		return
	}

	if err := h.DB.WithContext(ctx.Request.Context()).Delete(area).Error; err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
