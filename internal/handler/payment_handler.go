package handler

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"pawpay/internal/errors"
	"pawpay/internal/idempotency"
	"pawpay/internal/model"
	"pawpay/internal/service"
)

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	paymentService service.PaymentService
	coordinator    idempotency.Coordinator
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(paymentService service.PaymentService, coordinator idempotency.Coordinator) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, coordinator: coordinator}
}

// CreatePaymentRequest represents a payment creation request.
type CreatePaymentRequest struct {
	Amount      string            `json:"amount" validate:"required"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	PaymentType string            `json:"payment_type" validate:"required,oneof=donation adoption campaign"`
	UserID      string            `json:"user_id,omitempty" validate:"omitempty,uuid"`
	CampaignID  string            `json:"campaign_id,omitempty" validate:"omitempty,uuid"`
	AnimalID    string            `json:"animal_id,omitempty" validate:"omitempty,uuid"`
	ShelterID   string            `json:"shelter_id,omitempty" validate:"omitempty,uuid"`
	CauseID     string            `json:"cause_id,omitempty" validate:"omitempty,uuid"`
	PayerEmail  string            `json:"payer_email,omitempty" validate:"omitempty,email"`
	PayerName   string            `json:"payer_name,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	SuccessURL  string            `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelURL   string            `json:"cancel_url,omitempty" validate:"omitempty,url"`
}

// RefundRequest represents a refund request.
type RefundRequest struct {
	Amount string `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// CreatePayment godoc
// @Summary Create a payment and open a provider checkout
// @Tags payments
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Idempotency key"
// @Param request body CreatePaymentRequest true "Payment data"
// @Success 201 {object} service.PaymentIntent
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /payments [post]
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	var req CreatePaymentRequest
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

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid amount",
			Code:  "INVALID_AMOUNT",
		})
	}

	input := service.CreatePaymentInput{
		Amount:      amount,
		Currency:    req.Currency,
		PaymentType: model.PaymentType(req.PaymentType),
		PayerEmail:  req.PayerEmail,
		PayerName:   req.PayerName,
		Description: req.Description,
		Metadata:    req.Metadata,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
	}
	refs := []struct {
		raw  string
		dest **uuid.UUID
	}{
		{req.UserID, &input.UserID},
		{req.CampaignID, &input.CampaignID},
		{req.AnimalID, &input.AnimalID},
		{req.ShelterID, &input.ShelterID},
		{req.CauseID, &input.CauseID},
	}
	for _, ref := range refs {
		if ref.raw == "" {
			continue
		}
		id, err := uuid.Parse(ref.raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "invalid reference ID",
				Code:  "INVALID_UUID",
			})
		}
		*ref.dest = &id
	}

	ctx := c.Request().Context()
	key := c.Request().Header.Get("Idempotency-Key")
	if key != "" {
		cached, err := h.coordinator.GetCachedResponse(ctx, key)
		if err == nil && cached != nil {
			return c.JSONBlob(http.StatusCreated, cached)
		}

		acquired, err := h.coordinator.TryAcquireLock(ctx, key)
		if err != nil {
			log.Printf("idempotency lock for key: %v", err)
		}
		if !acquired {
			return echo.NewHTTPError(http.StatusConflict, errors.ErrorResponse{
				Error: errors.ErrRequestInProgress.Error(),
				Code:  "REQUEST_IN_PROGRESS",
			})
		}
		defer func() {
			if err := h.coordinator.ReleaseLock(ctx, key); err != nil {
				log.Printf("release idempotency lock: %v", err)
			}
		}()
	}

	intent, err := h.paymentService.CreatePayment(ctx, input, key)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	if key != "" {
		if err := h.coordinator.CacheResponse(ctx, key, intent, idempotency.ResponseTTL); err != nil {
			log.Printf("cache idempotent response: %v", err)
		}
	}
	return c.JSON(http.StatusCreated, intent)
}

// GetPayment godoc
// @Summary Get a payment
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} model.Payment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid payment ID",
			Code:  "INVALID_UUID",
		})
	}

	payment, err := h.paymentService.GetPayment(c.Request().Context(), id)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, payment)
}

// CancelPayment godoc
// @Summary Cancel a pending payment
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} model.Payment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /payments/{id}/cancel [post]
func (h *PaymentHandler) CancelPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid payment ID",
			Code:  "INVALID_UUID",
		})
	}

	payment, err := h.paymentService.CancelPayment(c.Request().Context(), id)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, payment)
}

// RefundPayment godoc
// @Summary Refund a succeeded payment
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Param request body RefundRequest false "Refund options"
// @Success 200 {object} model.Payment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /payments/{id}/refund [post]
func (h *PaymentHandler) RefundPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid payment ID",
			Code:  "INVALID_UUID",
		})
	}

	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}

	var amount *decimal.Decimal
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil || !parsed.IsPositive() {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "invalid amount",
				Code:  "INVALID_AMOUNT",
			})
		}
		amount = &parsed
	}

	payment, err := h.paymentService.RefundPayment(c.Request().Context(), id, amount, req.Reason)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, payment)
}

// CampaignStats godoc
// @Summary Get aggregate stats for a campaign
// @Tags payments
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} service.CampaignStats
// @Failure 400 {object} errors.ErrorResponse
// @Router /campaigns/{id}/stats [get]
func (h *PaymentHandler) CampaignStats(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid campaign ID",
			Code:  "INVALID_UUID",
		})
	}

	stats, err := h.paymentService.CampaignStats(c.Request().Context(), id)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, stats)
}

// CauseStats godoc
// @Summary Get aggregate stats for an urgent cause
// @Tags payments
// @Produce json
// @Param id path string true "Cause ID"
// @Success 200 {object} service.CampaignStats
// @Failure 400 {object} errors.ErrorResponse
// @Router /causes/{id}/stats [get]
func (h *PaymentHandler) CauseStats(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid cause ID",
			Code:  "INVALID_UUID",
		})
	}

	stats, err := h.paymentService.CauseStats(c.Request().Context(), id)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, stats)
}
