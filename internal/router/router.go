package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"pawpay/internal/config"
	"pawpay/internal/handler"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	paymentHandler *handler.PaymentHandler,
	partnerHandler *handler.PartnerHandler,
	webhookHandler *handler.WebhookHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes. Webhook endpoints authenticate via signatures, not
	// bearer tokens; payment creation is open to the storefront.
	api.POST("/auth/token", authHandler.IssueToken)
	api.POST("/payments", paymentHandler.CreatePayment)
	api.POST("/webhooks/partner/:id", webhookHandler.HandlePartnerWebhook)
	api.POST("/webhooks/:provider", webhookHandler.HandleProviderWebhook)
	api.GET("/campaigns/:id/stats", paymentHandler.CampaignStats)
	api.GET("/causes/:id/stats", paymentHandler.CauseStats)

	// Secured routes (require JWT authentication)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(cfg.JWTSecret),
		TokenLookup: "header:" + echo.HeaderAuthorization,
	}))

	// Payment routes
	secured.GET("/payments/:id", paymentHandler.GetPayment)
	secured.POST("/payments/:id/cancel", paymentHandler.CancelPayment)
	secured.POST("/payments/:id/refund", paymentHandler.RefundPayment)
	secured.GET("/payments/:id/webhooks", webhookHandler.ListPaymentWebhooks)

	// Partner routes
	secured.POST("/partners", partnerHandler.RegisterPartner)
	secured.GET("/partners", partnerHandler.ListPartners)
	secured.GET("/partners/:id", partnerHandler.GetPartner)
	secured.PATCH("/partners/:id", partnerHandler.UpdatePartner)
	secured.DELETE("/partners/:id", partnerHandler.DeactivatePartner)
	secured.POST("/partners/:id/rotate-secret", partnerHandler.RotateSecret)
	secured.GET("/partners/:id/deliveries", partnerHandler.ListPartnerDeliveries)

	// Delivery admin
	secured.POST("/webhooks/retry", webhookHandler.RetryDeliveries)
}

// CustomValidator wraps go-playground/validator for echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates a struct.
func (v *CustomValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}
