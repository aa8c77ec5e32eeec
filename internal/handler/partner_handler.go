package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"pawpay/internal/errors"
	"pawpay/internal/model"
	"pawpay/internal/repository"
	"pawpay/internal/service"
)

// PartnerHandler handles webhook partner administration endpoints.
type PartnerHandler struct {
	partnerService service.PartnerService
	webhookService service.WebhookService
}

// NewPartnerHandler creates a new partner handler.
func NewPartnerHandler(partnerService service.PartnerService, webhookService service.WebhookService) *PartnerHandler {
	return &PartnerHandler{partnerService: partnerService, webhookService: webhookService}
}

// RegisterPartnerRequest represents a partner registration request.
type RegisterPartnerRequest struct {
	Name         string   `json:"name" validate:"required,min=2,max=100"`
	WebhookURL   string   `json:"webhook_url" validate:"required,url"`
	Events       []string `json:"events" validate:"required,min=1"`
	Description  string   `json:"description,omitempty"`
	ContactEmail string   `json:"contact_email,omitempty" validate:"omitempty,email"`
}

// UpdatePartnerRequest represents a partial partner update.
type UpdatePartnerRequest struct {
	Name         *string  `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	WebhookURL   *string  `json:"webhook_url,omitempty" validate:"omitempty,url"`
	Events       []string `json:"events,omitempty"`
	Description  *string  `json:"description,omitempty"`
	ContactEmail *string  `json:"contact_email,omitempty" validate:"omitempty,email"`
}

// RegisterPartner godoc
// @Summary Register a webhook partner
// @Tags partners
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RegisterPartnerRequest true "Partner data"
// @Success 201 {object} service.RegisteredPartner
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /partners [post]
func (h *PartnerHandler) RegisterPartner(c echo.Context) error {
	var req RegisterPartnerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}

	for _, event := range req.Events {
		if !model.IsKnownEventType(event) {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "unknown event type: " + event,
				Code:  "UNKNOWN_EVENT_TYPE",
			})
		}
	}

	registered, err := h.partnerService.Register(c.Request().Context(), service.RegisterPartnerInput{
		Name:         req.Name,
		WebhookURL:   req.WebhookURL,
		Events:       req.Events,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusCreated, registered)
}

// ListPartners godoc
// @Summary List active webhook partners
// @Tags partners
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Partner
// @Router /partners [get]
func (h *PartnerHandler) ListPartners(c echo.Context) error {
	partners, err := h.partnerService.ListPartners(c.Request().Context())
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, partners)
}

// GetPartner godoc
// @Summary Get a webhook partner
// @Tags partners
// @Produce json
// @Security BearerAuth
// @Param id path string true "Partner ID"
// @Success 200 {object} model.Partner
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /partners/{id} [get]
func (h *PartnerHandler) GetPartner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid partner ID",
			Code:  "INVALID_UUID",
		})
	}

	partner, err := h.partnerService.GetPartner(c.Request().Context(), id)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, partner)
}

// UpdatePartner godoc
// @Summary Update a webhook partner
// @Tags partners
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Partner ID"
// @Param request body UpdatePartnerRequest true "Fields to update"
// @Success 200 {object} model.Partner
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /partners/{id} [patch]
func (h *PartnerHandler) UpdatePartner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid partner ID",
			Code:  "INVALID_UUID",
		})
	}

	var req UpdatePartnerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}

	for _, event := range req.Events {
		if !model.IsKnownEventType(event) {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "unknown event type: " + event,
				Code:  "UNKNOWN_EVENT_TYPE",
			})
		}
	}

	update := repository.PartnerUpdate{
		Name:         req.Name,
		WebhookURL:   req.WebhookURL,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
	}
	if req.Events != nil {
		update.Events = model.StringList(req.Events)
	}

	partner, err := h.partnerService.UpdatePartner(c.Request().Context(), id, update)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, partner)
}

// RotateSecret godoc
// @Summary Rotate a partner's webhook secret
// @Tags partners
// @Produce json
// @Security BearerAuth
// @Param id path string true "Partner ID"
// @Success 200 {object} service.RegisteredPartner
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /partners/{id}/rotate-secret [post]
func (h *PartnerHandler) RotateSecret(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid partner ID",
			Code:  "INVALID_UUID",
		})
	}

	registered, err := h.partnerService.RotateSecret(c.Request().Context(), id)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, registered)
}

// DeactivatePartner godoc
// @Summary Deactivate a webhook partner
// @Tags partners
// @Produce json
// @Security BearerAuth
// @Param id path string true "Partner ID"
// @Success 204 "deactivated"
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /partners/{id} [delete]
func (h *PartnerHandler) DeactivatePartner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid partner ID",
			Code:  "INVALID_UUID",
		})
	}

	if err := h.partnerService.Deactivate(c.Request().Context(), id); err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPartnerDeliveries godoc
// @Summary List webhook deliveries for a partner
// @Tags partners
// @Produce json
// @Security BearerAuth
// @Param id path string true "Partner ID"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {array} model.WebhookLog
// @Failure 400 {object} errors.ErrorResponse
// @Router /partners/{id}/deliveries [get]
func (h *PartnerHandler) ListPartnerDeliveries(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid partner ID",
			Code:  "INVALID_UUID",
		})
	}

	limit := intQueryParam(c, "limit", 50)
	offset := intQueryParam(c, "offset", 0)
	logs, err := h.webhookService.ListByPartner(c.Request().Context(), id, limit, offset)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, logs)
}
