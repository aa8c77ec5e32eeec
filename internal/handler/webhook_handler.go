package handler

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"pawpay/internal/errors"
	"pawpay/internal/service"
)

// WebhookHandler handles inbound webhook endpoints and delivery admin.
type WebhookHandler struct {
	webhookService service.WebhookService
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// RetryResponse reports how many due deliveries a retry sweep attempted.
type RetryResponse struct {
	Attempted int `json:"attempted"`
}

// HandleProviderWebhook godoc
// @Summary Receive a payment gateway webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Provider name" Enums(stripe, mock)
// @Success 200 {object} service.InboundResult
// @Failure 400 {object} errors.ErrorResponse
// @Router /webhooks/{provider} [post]
func (h *WebhookHandler) HandleProviderWebhook(c echo.Context) error {
	providerName := c.Param("provider")

	// The raw body is needed verbatim; any re-serialization would break the
	// signature check.
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "unreadable request body",
			Code:  "INVALID_REQUEST",
		})
	}

	sigHeader := c.Request().Header.Get("Stripe-Signature")
	if sigHeader == "" {
		sigHeader = c.Request().Header.Get("X-Webhook-Signature")
	}

	result, err := h.webhookService.ProcessInbound(c.Request().Context(), providerName, payload, sigHeader)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, result)
}

// HandlePartnerWebhook godoc
// @Summary Receive a partner-signed webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param id path string true "Partner ID"
// @Success 200 {object} service.InboundResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /webhooks/partner/{id} [post]
func (h *WebhookHandler) HandlePartnerWebhook(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid partner ID",
			Code:  "INVALID_UUID",
		})
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "unreadable request body",
			Code:  "INVALID_REQUEST",
		})
	}

	sigHeader := c.Request().Header.Get("X-Webhook-Signature")
	result, err := h.webhookService.ProcessPartnerInbound(c.Request().Context(), id, payload, sigHeader)
	if err != nil {
		var verification *errors.VerificationError
		if stderrors.As(err, &verification) {
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: verification.Error(),
				Code:  "WEBHOOK_VERIFICATION_FAILED",
			})
		}
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, result)
}

// RetryDeliveries godoc
// @Summary Redeliver all due failed webhooks
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} RetryResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /webhooks/retry [post]
func (h *WebhookHandler) RetryDeliveries(c echo.Context) error {
	attempted, err := h.webhookService.RetryPending(c.Request().Context())
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, RetryResponse{Attempted: attempted})
}

// ListPaymentWebhooks godoc
// @Summary List webhook activity for a payment
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {array} model.WebhookLog
// @Failure 400 {object} errors.ErrorResponse
// @Router /payments/{id}/webhooks [get]
func (h *WebhookHandler) ListPaymentWebhooks(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid payment ID",
			Code:  "INVALID_UUID",
		})
	}

	logs, err := h.webhookService.ListByPayment(c.Request().Context(), id)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, logs)
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
