package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
)

// stripeEventTypes maps Stripe event names to internal event types. Unmapped
// types pass through unchanged.
var stripeEventTypes = map[string]string{
	"checkout.session.completed":    "payment.succeeded",
	"checkout.session.expired":      "payment.failed",
	"payment_intent.succeeded":      "payment.succeeded",
	"payment_intent.payment_failed": "payment.failed",
	"payment_intent.canceled":       "payment.canceled",
	"charge.refunded":               "payment.refunded",
}

// Stripe adapts Stripe Checkout Sessions to the Provider contract. Amounts
// are passed to Stripe in the minor currency unit, matching the ledger.
type Stripe struct {
	webhookSecret string
}

var _ Provider = (*Stripe)(nil)

// NewStripe creates a Stripe provider. apiKey configures the package-level
// Stripe client; webhookSecret verifies inbound event signatures.
func NewStripe(apiKey, webhookSecret string) *Stripe {
	stripe.Key = apiKey
	return &Stripe{webhookSecret: webhookSecret}
}

// Name identifies the gateway.
func (s *Stripe) Name() string { return "stripe" }

// CreatePayment opens a Stripe Checkout Session for the payment.
func (s *Stripe) CreatePayment(ctx context.Context, params CreatePaymentParams) (*PaymentResult, error) {
	description := params.Description
	if description == "" {
		description = "Donation"
	}
	successURL := params.SuccessURL
	if successURL == "" {
		successURL = "http://localhost:3000/payments/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := params.CancelURL
	if cancelURL == "" {
		cancelURL = "http://localhost:3000/payments/cancel"
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(params.Amount.IntPart()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	sessionParams.AddMetadata("payment_id", params.PaymentID.String())
	for k, v := range params.Metadata {
		sessionParams.AddMetadata(k, v)
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		// Stripe rejections are a failed result, not a transport error.
		return &PaymentResult{
			Status:        ResultFailed,
			Provider:      s.Name(),
			Amount:        params.Amount,
			Currency:      params.Currency,
			FailureReason: err.Error(),
		}, nil
	}

	return &PaymentResult{
		Status:            ResultPending,
		Provider:          s.Name(),
		ProviderPaymentID: sess.ID,
		Amount:            params.Amount,
		Currency:          params.Currency,
		CheckoutURL:       sess.URL,
	}, nil
}

// RetrievePayment fetches a Checkout Session and maps its payment status.
func (s *Stripe) RetrievePayment(ctx context.Context, providerPaymentID string) (*PaymentResult, error) {
	sess, err := session.Get(providerPaymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve session: %w", err)
	}

	status := ResultPending
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid:
		status = ResultSuccess
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		if sess.Status == stripe.CheckoutSessionStatusExpired {
			status = ResultFailed
		}
	}

	return &PaymentResult{
		Status:            status,
		Provider:          s.Name(),
		ProviderPaymentID: sess.ID,
		Amount:            decimal.NewFromInt(sess.AmountTotal),
		Currency:          string(sess.Currency),
		CheckoutURL:       sess.URL,
	}, nil
}

// CancelPayment expires a Checkout Session; Stripe has no direct cancel.
func (s *Stripe) CancelPayment(ctx context.Context, providerPaymentID string) (*PaymentResult, error) {
	sess, err := session.Expire(providerPaymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("expire session: %w", err)
	}

	return &PaymentResult{
		Status:            ResultFailed,
		Provider:          s.Name(),
		ProviderPaymentID: sess.ID,
		Amount:            decimal.NewFromInt(sess.AmountTotal),
		Currency:          string(sess.Currency),
		FailureReason:     "Canceled by user",
	}, nil
}

// RefundPayment refunds via the session's payment intent.
func (s *Stripe) RefundPayment(ctx context.Context, providerPaymentID string, amount *decimal.Decimal, reason string) (*RefundResult, error) {
	sess, err := session.Get(providerPaymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve session: %w", err)
	}
	if sess.PaymentIntent == nil {
		return nil, fmt.Errorf("no payment intent found for session %s", providerPaymentID)
	}

	refundParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
	}
	if amount != nil {
		refundParams.Amount = stripe.Int64(amount.IntPart())
	}
	if reason != "" {
		refundParams.Reason = stripe.String(string(stripe.RefundReasonRequestedByCustomer))
	}

	ref, err := refund.New(refundParams)
	if err != nil {
		refundAmount := decimal.Zero
		if amount != nil {
			refundAmount = *amount
		}
		return &RefundResult{
			Status:            ResultFailed,
			Provider:          s.Name(),
			ProviderPaymentID: providerPaymentID,
			Amount:            refundAmount,
			Currency:          string(sess.Currency),
			FailureReason:     err.Error(),
		}, nil
	}

	status := ResultPending
	if ref.Status == stripe.RefundStatusSucceeded {
		status = ResultSuccess
	}

	return &RefundResult{
		Status:            status,
		Provider:          s.Name(),
		ProviderRefundID:  ref.ID,
		ProviderPaymentID: providerPaymentID,
		Amount:            decimal.NewFromInt(ref.Amount),
		Currency:          string(ref.Currency),
	}, nil
}

// ConstructWebhookEvent verifies the Stripe-Signature header and normalizes
// the event.
func (s *Stripe) ConstructWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}

	var object struct {
		ID          string            `json:"id"`
		Amount      int64             `json:"amount"`
		AmountTotal int64             `json:"amount_total"`
		Currency    string            `json:"currency"`
		Metadata    map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return nil, fmt.Errorf("failed to process webhook: %w", err)
	}

	amount := object.AmountTotal
	if amount == 0 {
		amount = object.Amount
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(event.Data.Raw, &raw)

	eventType := string(event.Type)
	if mapped, ok := stripeEventTypes[eventType]; ok {
		eventType = mapped
	}

	return &WebhookEvent{
		EventType:         eventType,
		Provider:          s.Name(),
		ProviderEventID:   event.ID,
		ProviderPaymentID: object.ID,
		Amount:            decimal.NewFromInt(amount),
		Currency:          object.Currency,
		Metadata:          object.Metadata,
		RawData:           raw,
		OccurredAt:        time.Unix(event.Created, 0).UTC(),
	}, nil
}
