// Package provider defines the payment gateway capability consumed by the
// orchestrator and webhook dispatcher, and its concrete adapters.
package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResultStatus is the normalized outcome of a provider operation.
type ResultStatus string

const (
	ResultSuccess        ResultStatus = "success"
	ResultPending        ResultStatus = "pending"
	ResultFailed         ResultStatus = "failed"
	ResultRequiresAction ResultStatus = "requires_action"
)

// CreatePaymentParams carries everything a gateway needs to open a payment.
type CreatePaymentParams struct {
	Amount        decimal.Decimal
	Currency      string
	PaymentID     uuid.UUID
	Description   string
	Metadata      map[string]string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// PaymentResult is the normalized result of a payment operation.
type PaymentResult struct {
	Status            ResultStatus
	Provider          string
	ProviderPaymentID string
	Amount            decimal.Decimal
	Currency          string
	ClientSecret      string
	CheckoutURL       string
	FailureReason     string
	Metadata          map[string]string
}

// RefundResult is the normalized result of a refund operation.
type RefundResult struct {
	Status            ResultStatus
	Provider          string
	ProviderRefundID  string
	ProviderPaymentID string
	Amount            decimal.Decimal
	Currency          string
	FailureReason     string
}

// WebhookEvent is a provider webhook normalized to internal event types
// ("payment.succeeded", "payment.failed", ...).
type WebhookEvent struct {
	EventType         string
	Provider          string
	ProviderEventID   string
	ProviderPaymentID string
	Amount            decimal.Decimal
	Currency          string
	Metadata          map[string]string
	RawData           map[string]interface{}
	OccurredAt        time.Time
}

// Provider is the capability contract every gateway adapter implements.
type Provider interface {
	// Name identifies the gateway ("stripe", "mock").
	Name() string
	// CreatePayment opens a payment with the gateway.
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*PaymentResult, error)
	// RetrievePayment fetches the gateway's current view of a payment.
	RetrievePayment(ctx context.Context, providerPaymentID string) (*PaymentResult, error)
	// CancelPayment cancels a pending payment at the gateway.
	CancelPayment(ctx context.Context, providerPaymentID string) (*PaymentResult, error)
	// RefundPayment refunds a payment fully (nil amount) or partially.
	RefundPayment(ctx context.Context, providerPaymentID string, amount *decimal.Decimal, reason string) (*RefundResult, error)
	// ConstructWebhookEvent verifies a raw inbound webhook and normalizes
	// it. The error indicates an invalid signature or payload.
	ConstructWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

// Registry resolves configured provider instances by name. Instances are
// built once at startup and injected; the registry only serves inbound
// webhook routing where the provider is chosen by URL path.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name, or false.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
