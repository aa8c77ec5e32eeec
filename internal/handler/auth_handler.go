package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pawpay/internal/auth"
	"pawpay/internal/errors"
)

// AuthHandler handles service token issuance.
type AuthHandler struct {
	jwtService *auth.JWTService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{jwtService: jwtService}
}

// TokenRequest represents an API key exchange request.
type TokenRequest struct {
	APIKey  string `json:"api_key" validate:"required"`
	Subject string `json:"subject,omitempty"`
}

// TokenResponse represents an issued service token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// IssueToken godoc
// @Summary Exchange the admin API key for a service token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenRequest true "API key"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/token [post]
func (h *AuthHandler) IssueToken(c echo.Context) error {
	var req TokenRequest
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

	subject := req.Subject
	if subject == "" {
		subject = "admin"
	}
	token, err := h.jwtService.ExchangeAPIKey(req.APIKey, subject)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "invalid API key",
			Code:  "INVALID_API_KEY",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(auth.ServiceTokenExpiry.Seconds()),
	})
}
