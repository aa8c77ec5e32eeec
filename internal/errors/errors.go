package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPaymentNotFound is returned when a payment lookup misses.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPartnerNotFound is returned when a partner lookup misses.
	ErrPartnerNotFound = errors.New("partner not found")
	// ErrPartnerAlreadyExists is returned when a partner name is taken.
	ErrPartnerAlreadyExists = errors.New("partner already exists")
	// ErrWebhookNotFound is returned when a webhook log lookup misses.
	ErrWebhookNotFound = errors.New("webhook not found")
	// ErrRequestInProgress is returned when an idempotency key is locked by
	// another in-flight request.
	ErrRequestInProgress = errors.New("request with this idempotency key is already being processed")
)

// InvalidStateError reports an operation attempted against a payment whose
// current lifecycle status does not permit it.
type InvalidStateError struct {
	PaymentID    string
	CurrentState string
	Operation    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s payment %s in state %s", e.Operation, e.PaymentID, e.CurrentState)
}

// NewInvalidState creates an InvalidStateError.
func NewInvalidState(paymentID, currentState, operation string) *InvalidStateError {
	return &InvalidStateError{PaymentID: paymentID, CurrentState: currentState, Operation: operation}
}

// ProviderError wraps an upstream payment gateway failure.
type ProviderError struct {
	Provider string
	Reason   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider error (%s): %s", e.Provider, e.Reason)
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider, reason string) *ProviderError {
	return &ProviderError{Provider: provider, Reason: reason}
}

// VerificationError reports a failed webhook signature or timestamp check.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("webhook verification failed: %s", e.Reason)
}

// NewVerificationError creates a VerificationError.
func NewVerificationError(reason string) *VerificationError {
	return &VerificationError{Reason: reason}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var invalidState *InvalidStateError
	var providerErr *ProviderError
	var verificationErr *VerificationError

	switch {
	case errors.Is(err, ErrPaymentNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "PAYMENT_NOT_FOUND")
	case errors.Is(err, ErrPartnerNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "PARTNER_NOT_FOUND")
	case errors.Is(err, ErrWebhookNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "WEBHOOK_NOT_FOUND")
	case errors.Is(err, ErrPartnerAlreadyExists):
		return NewHTTPError(http.StatusConflict, err.Error(), "PARTNER_ALREADY_EXISTS")
	case errors.Is(err, ErrRequestInProgress):
		return NewHTTPError(http.StatusConflict, err.Error(), "REQUEST_IN_PROGRESS")
	case errors.As(err, &invalidState):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_PAYMENT_STATE")
	case errors.As(err, &verificationErr):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "WEBHOOK_VERIFICATION_FAILED")
	case errors.As(err, &providerErr):
		return NewHTTPError(http.StatusBadGateway, err.Error(), "PROVIDER_ERROR")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
