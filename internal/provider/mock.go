package provider

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pawpay/internal/signature"
)

// Mock simulates a payment gateway for development and testing. Payments
// succeed with a configurable probability; webhooks are signed with a shared
// secret using the "t=<ts>,v1=<hex>" header where v1 covers the raw payload.
type Mock struct {
	secret      string
	successRate float64

	mu       sync.Mutex
	payments map[string]*mockPayment
	refunds  map[string]*mockRefund
}

type mockPayment struct {
	ID            string
	PaymentID     uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Status        string
	Metadata      map[string]string
	WillSucceed   bool
	FailureReason string
	CheckoutURL   string
}

type mockRefund struct {
	ID        string
	PaymentID string
	Amount    decimal.Decimal
	Reason    string
}

var _ Provider = (*Mock)(nil)

// NewMock creates a mock provider. successRate is the probability in [0,1]
// that a simulated payment completes successfully.
func NewMock(secret string, successRate float64) *Mock {
	return &Mock{
		secret:      secret,
		successRate: successRate,
		payments:    make(map[string]*mockPayment),
		refunds:     make(map[string]*mockRefund),
	}
}

// Name identifies the gateway.
func (m *Mock) Name() string { return "mock" }

// CreatePayment opens a simulated pending payment.
func (m *Mock) CreatePayment(ctx context.Context, params CreatePaymentParams) (*PaymentResult, error) {
	id := mockID("cs")
	payment := &mockPayment{
		ID:          id,
		PaymentID:   params.PaymentID,
		Amount:      params.Amount,
		Currency:    strings.ToLower(params.Currency),
		Status:      "pending",
		Metadata:    params.Metadata,
		WillSucceed: rand.Float64() < m.successRate,
		CheckoutURL: fmt.Sprintf("http://localhost:3000/mock-checkout/%s", id),
	}

	m.mu.Lock()
	m.payments[id] = payment
	m.mu.Unlock()

	metadata := map[string]string{"payment_id": params.PaymentID.String()}
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	return &PaymentResult{
		Status:            ResultPending,
		Provider:          m.Name(),
		ProviderPaymentID: id,
		Amount:            params.Amount,
		Currency:          params.Currency,
		CheckoutURL:       payment.CheckoutURL,
		Metadata:          metadata,
	}, nil
}

// RetrievePayment returns the simulated payment state.
func (m *Mock) RetrievePayment(ctx context.Context, providerPaymentID string) (*PaymentResult, error) {
	m.mu.Lock()
	payment, ok := m.payments[providerPaymentID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("payment not found: %s", providerPaymentID)
	}

	status := ResultPending
	switch payment.Status {
	case "succeeded":
		status = ResultSuccess
	case "failed", "canceled":
		status = ResultFailed
	}

	return &PaymentResult{
		Status:            status,
		Provider:          m.Name(),
		ProviderPaymentID: payment.ID,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		CheckoutURL:       payment.CheckoutURL,
		FailureReason:     payment.FailureReason,
	}, nil
}

// CancelPayment cancels a pending simulated payment.
func (m *Mock) CancelPayment(ctx context.Context, providerPaymentID string) (*PaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[providerPaymentID]
	if !ok {
		return nil, fmt.Errorf("payment not found: %s", providerPaymentID)
	}
	if payment.Status != "pending" {
		return nil, fmt.Errorf("cannot cancel payment with status: %s", payment.Status)
	}

	payment.Status = "canceled"
	payment.FailureReason = "Canceled by user"

	return &PaymentResult{
		Status:            ResultFailed,
		Provider:          m.Name(),
		ProviderPaymentID: payment.ID,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		FailureReason:     payment.FailureReason,
	}, nil
}

// RefundPayment refunds a succeeded simulated payment.
func (m *Mock) RefundPayment(ctx context.Context, providerPaymentID string, amount *decimal.Decimal, reason string) (*RefundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[providerPaymentID]
	if !ok {
		return nil, fmt.Errorf("payment not found: %s", providerPaymentID)
	}
	if payment.Status != "succeeded" {
		return &RefundResult{
			Status:            ResultFailed,
			Provider:          m.Name(),
			ProviderPaymentID: providerPaymentID,
			Currency:          payment.Currency,
			FailureReason:     "Can only refund succeeded payments",
		}, nil
	}

	refundAmount := payment.Amount
	if amount != nil {
		refundAmount = *amount
	}

	refundID := mockID("re")
	m.refunds[refundID] = &mockRefund{
		ID:        refundID,
		PaymentID: providerPaymentID,
		Amount:    refundAmount,
		Reason:    reason,
	}
	payment.Status = "refunded"

	return &RefundResult{
		Status:            ResultSuccess,
		Provider:          m.Name(),
		ProviderRefundID:  refundID,
		ProviderPaymentID: providerPaymentID,
		Amount:            refundAmount,
		Currency:          payment.Currency,
	}, nil
}

// ConstructWebhookEvent verifies the mock signature header and parses the
// event payload. The mock signs the raw payload bytes, so any re-encoding of
// the body invalidates the signature.
func (m *Mock) ConstructWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	received := ""
	for _, part := range strings.Split(signatureHeader, ",") {
		if key, value, found := strings.Cut(part, "="); found && strings.TrimSpace(key) == "v1" {
			received = strings.TrimSpace(value)
		}
	}

	expected := signature.Sign(payload, m.secret)
	if !hmac.Equal([]byte(received), []byte(expected)) {
		return nil, fmt.Errorf("invalid webhook signature")
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID       string            `json:"id"`
				Amount   json.Number       `json:"amount"`
				Currency string            `json:"currency"`
				Metadata map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(payload, &raw)

	eventType := event.Type
	if eventType == "" {
		eventType = "unknown"
	}
	eventID := event.ID
	if eventID == "" {
		eventID = mockID("evt")
	}
	amount, _ := decimal.NewFromString(event.Data.Object.Amount.String())
	currency := event.Data.Object.Currency
	if currency == "" {
		currency = "usd"
	}

	return &WebhookEvent{
		EventType:         eventType,
		Provider:          m.Name(),
		ProviderEventID:   eventID,
		ProviderPaymentID: event.Data.Object.ID,
		Amount:            amount,
		Currency:          currency,
		Metadata:          event.Data.Object.Metadata,
		RawData:           raw,
		OccurredAt:        time.Now().UTC(),
	}, nil
}

// SimulateCompletion flips a pending payment to its predetermined outcome and
// returns the webhook event the gateway would emit. Test helper.
func (m *Mock) SimulateCompletion(providerPaymentID string) (*WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[providerPaymentID]
	if !ok {
		return nil, fmt.Errorf("payment not found: %s", providerPaymentID)
	}

	eventType := "payment.succeeded"
	if payment.WillSucceed {
		payment.Status = "succeeded"
	} else {
		payment.Status = "failed"
		payment.FailureReason = "Card declined (simulated)"
		eventType = "payment.failed"
	}

	return &WebhookEvent{
		EventType:         eventType,
		Provider:          m.Name(),
		ProviderEventID:   mockID("evt"),
		ProviderPaymentID: providerPaymentID,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		Metadata:          payment.Metadata,
		OccurredAt:        time.Now().UTC(),
	}, nil
}

// GenerateSignature produces a valid signature header for payload. Test helper.
func (m *Mock) GenerateSignature(payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", time.Now().Unix(), signature.Sign(payload, m.secret))
}

func mockID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:24])
}
