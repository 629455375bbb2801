package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/services"
	"github.com/silentsos/silentsos/internal/types"
	"github.com/silentsos/silentsos/internal/utils"
)

type CreateAlertRequest struct {
	AlertType    string          `json:"alert_type"`
	LocationLink string          `json:"location_link"`
	RiskArea     json.RawMessage `json:"risk_area"`
	// Email identifies anonymous submitters.
	Email string `json:"email"`
}

type UpdateAlertRequest struct {
	AlertType    *string         `json:"alert_type"`
	LocationLink *string         `json:"location_link"`
	RiskAreaID   json.RawMessage `json:"risk_area_id"`
	RiskArea     json.RawMessage `json:"risk_area"`
}

// parseRiskAreaRef reads risk_area as a primary key or an embedded object.
// The id may arrive as a JSON number or as text from a form field.
func parseRiskAreaRef(raw []byte) (services.RiskAreaRef, error) {
	raw = bytes.TrimSpace(raw)

	if len(raw) == 0 || string(raw) == "null" || string(raw) == `""` {
		return services.RiskAreaRef{}, nil
	}

	if raw[0] == '{' {
		var req types.RiskAreaRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return services.RiskAreaRef{}, apperr.NewValidation("risk_area", "Invalid data. Expected a dictionary.")
		}

		area := &models.RiskArea{}
		if req.Name != nil {
			area.Name = *req.Name
		}
		if req.Description != nil {
			area.Description = *req.Description
		}
		if req.Latitude != nil {
			area.Latitude = req.Latitude.String()
		}
		if req.Longitude != nil {
			area.Longitude = req.Longitude.String()
		}
		if req.Radius != nil {
			area.Radius = *req.Radius
		}

		return services.RiskAreaRef{New: area}, nil
	}

	id, err := parsePK("risk_area", raw)
	if err != nil {
		return services.RiskAreaRef{}, err
	}

	return services.RiskAreaRef{ID: &id}, nil
}

// parsePK reads a primary key for field, reporting bad input against it.
func parsePK(field string, raw []byte) (uint, error) {
	text := strings.Trim(string(bytes.TrimSpace(raw)), `"`)

	id, err := strconv.ParseUint(text, 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.NewValidation(field, fmt.Sprintf("Incorrect type. Expected pk value, received %q.", text))
	}

	return uint(id), nil
}

func isMultipart(ctx *gin.Context) bool {
	return strings.HasPrefix(ctx.ContentType(), "multipart/form-data")
}

// alertInput reads a create request sent as JSON or as a multipart form
// with an optional audio part. The returned func releases the upload.
func alertInput(ctx *gin.Context) (services.AlertInput, func(), error) {
	noop := func() {}

	if !isMultipart(ctx) {
		var body CreateAlertRequest
		if err := ctx.ShouldBindJSON(&body); err != nil {
			return services.AlertInput{}, noop, invalidBody()
		}

		ref, err := parseRiskAreaRef(body.RiskArea)
		if err != nil {
			return services.AlertInput{}, noop, err
		}

		return services.AlertInput{
			Email:        body.Email,
			AlertType:    body.AlertType,
			LocationLink: body.LocationLink,
			RiskArea:     ref,
		}, noop, nil
	}

	ref, err := parseRiskAreaRef([]byte(ctx.PostForm("risk_area")))
	if err != nil {
		return services.AlertInput{}, noop, err
	}

	in := services.AlertInput{
		Email:        ctx.PostForm("email"),
		AlertType:    ctx.PostForm("alert_type"),
		LocationLink: ctx.PostForm("location_link"),
		RiskArea:     ref,
	}

	header, err := ctx.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return in, noop, nil
	}
	if err != nil {
		return services.AlertInput{}, noop, apperr.NewValidation("audio", "The submitted data was not a file.")
	}

	file, err := header.Open()
	if err != nil {
		return services.AlertInput{}, noop, err
	}

	in.Audio = &services.AudioUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}

	return in, func() { file.Close() }, nil
}

func (h *Handler) alertResponse(ctx *gin.Context, alert *models.Alert, score float64) types.AlertResponse {
	return types.AlertResponse{
		ID:               alert.ID,
		User:             alert.UserID,
		UserEmail:        alert.User.Email,
		AlertType:        alert.AlertType,
		Timestamp:        alert.Timestamp,
		RiskArea:         alert.RiskAreaID,
		LocationLink:     alert.LocationLink,
		Audio:            h.Alerts.AudioURL(ctx.Request.Context(), alert),
		HasAudio:         alert.HasAudio(),
		CredibilityScore: score,
	}
}

func (h *Handler) ListAlerts(ctx *gin.Context) {
	user, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	page := utils.GetPage(ctx)

	alerts, count, err := h.Alerts.List(ctx.Request.Context(), user.ID, page)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ids := make([]uint, 0, len(alerts))
	for _, alert := range alerts {
		ids = append(ids, alert.ID)
	}

	scores, err := services.CredibilityScores(ctx.Request.Context(), h.DB, ids)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	results := make([]types.AlertResponse, 0, len(alerts))
	for i := range alerts {
		results = append(results, h.alertResponse(ctx, &alerts[i], scores[alerts[i].ID]))
	}

	ctx.JSON(http.StatusOK, types.ListResponse[types.AlertResponse]{
		Count:   count,
		Limit:   page.Limit,
		Offset:  page.Offset,
		Results: results,
	})
}

// CreateAlert accepts an alert from an authenticated user or, when enabled,
// from an anonymous submitter identified by email.
func (h *Handler) CreateAlert(ctx *gin.Context) {
	in, release, err := alertInput(ctx)
	defer release()

	if err != nil {
		h.respondError(ctx, err)
		return
	}

	if user, err := utils.GetCurrentUser(ctx); err == nil {
		in.UserID = user.ID
		in.Email = ""
	}

	alert, err := h.Alerts.Create(ctx.Request.Context(), in)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, h.alertResponse(ctx, alert, 0))
}

func (h *Handler) visibleAlert(ctx *gin.Context) (*models.Alert, bool) {
	user, ok := h.requireUser(ctx)
	if !ok {
		return nil, false
	}

	id, err := utils.GetIDParam(ctx, "id")
	if err != nil {
		notFound(ctx)
		return nil, false
	}

	alert, err := h.Alerts.Get(ctx.Request.Context(), user.ID, id)
	if err != nil {
		h.respondError(ctx, err)
		return nil, false
	}

	return alert, true
}

func (h *Handler) GetAlert(ctx *gin.Context) {
	alert, ok := h.visibleAlert(ctx)
	if !ok {
		return
	}

	cred, err := services.AlertCredibility(ctx.Request.Context(), h.DB, alert.ID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, h.alertResponse(ctx, alert, cred.Score))
}

// GetAlertCredibility reports the validation tally behind an alert's score.
func (h *Handler) GetAlertCredibility(ctx *gin.Context) {
	alert, ok := h.visibleAlert(ctx)
	if !ok {
		return
	}

	cred, err := services.AlertCredibility(ctx.Request.Context(), h.DB, alert.ID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, types.CredibilityResponse{
		Alert:            cred.AlertID,
		Total:            cred.Total,
		TrueCount:        cred.TrueCount,
		CredibilityScore: cred.Score,
	})
}

// UpdateAlert serves PUT and PATCH. PUT must name the alert type.
func (h *Handler) UpdateAlert(ctx *gin.Context) {
	user, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	id, err := utils.GetIDParam(ctx, "id")
	if err != nil {
		notFound(ctx)
		return
	}

	var body UpdateAlertRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		h.respondError(ctx, invalidBody())
		return
	}

	if ctx.Request.Method == http.MethodPut && body.AlertType == nil {
		h.respondError(ctx, apperr.NewValidation("alert_type", "This field is required."))
		return
	}

	update := services.AlertUpdate{
		AlertType:    body.AlertType,
		LocationLink: body.LocationLink,
	}

	raw := body.RiskAreaID
	if raw == nil {
		raw = body.RiskArea
	}

	switch {
	case raw == nil:
	case string(bytes.TrimSpace(raw)) == "null":
		update.ClearRiskArea = true
	default:
		areaID, err := parsePK("risk_area_id", raw)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		update.RiskAreaID = &areaID
	}

	alert, err := h.Alerts.Update(ctx.Request.Context(), user.ID, id, update)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	cred, err := services.AlertCredibility(ctx.Request.Context(), h.DB, alert.ID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, h.alertResponse(ctx, alert, cred.Score))
}

func (h *Handler) DeleteAlert(ctx *gin.Context) {
	user, ok := h.requireUser(ctx)
	if !ok {
		return
	}

	id, err := utils.GetIDParam(ctx, "id")
	if err != nil {
		notFound(ctx)
		return
	}

	if err := h.Alerts.Delete(ctx.Request.Context(), user.ID, id); err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
