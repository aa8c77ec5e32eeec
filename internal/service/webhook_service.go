package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "pawpay/internal/errors"
	"pawpay/internal/model"
	"pawpay/internal/provider"
	"pawpay/internal/repository"
	"pawpay/internal/signature"
)

const deliveryTimeout = 10 * time.Second

// eventStatus maps normalized webhook event types onto the payment status
// they imply.
var eventStatus = map[string]model.PaymentStatus{
	model.EventPaymentSucceeded: model.PaymentStatusSucceeded,
	model.EventPaymentFailed:    model.PaymentStatusFailed,
	model.EventPaymentCanceled:  model.PaymentStatusCanceled,
	model.EventPaymentRefunded:  model.PaymentStatusRefunded,
}

// InboundResult is what a webhook endpoint returns to the caller. Gateways
// only care that we acknowledged; the rest is diagnostic.
type InboundResult struct {
	Received  bool       `json:"received"`
	Status    string     `json:"status"`
	EventType string     `json:"event_type,omitempty"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
}

// WebhookService handles inbound provider webhooks and outbound partner
// deliveries.
type WebhookService interface {
	// ProcessInbound verifies and applies a gateway webhook, then fans the
	// event out to subscribed partners.
	ProcessInbound(ctx context.Context, providerName string, payload []byte, signatureHeader string) (*InboundResult, error)
	// ProcessPartnerInbound verifies a partner-originated call against the
	// partner's secret, honoring the rotation grace window.
	ProcessPartnerInbound(ctx context.Context, partnerID uuid.UUID, payload []byte, signatureHeader string) (*InboundResult, error)
	// DispatchEvent delivers an event to every active partner subscribed to
	// it. Delivery failures are recorded for retry, never returned.
	DispatchEvent(ctx context.Context, eventType string, payment *model.Payment)
	// Deliver sends one event to one partner and returns the delivery log id.
	Deliver(ctx context.Context, partner *model.Partner, eventType string, data map[string]interface{}) (uuid.UUID, error)
	// RetryPending redelivers every due failed delivery and reports how many
	// were attempted.
	RetryPending(ctx context.Context) (int, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]model.WebhookLog, error)
	ListByPartner(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]model.WebhookLog, error)
}

type webhookService struct {
	webhookRepo     repository.WebhookLogRepository
	partnerRepo     repository.PartnerRepository
	payments        PaymentService
	registry        *provider.Registry
	client          *http.Client
	orchestratorURL string
}

// NewWebhookService creates a new webhook service. orchestratorURL may be
// empty, in which case the upstream notification sink is disabled.
func NewWebhookService(
	webhookRepo repository.WebhookLogRepository,
	partnerRepo repository.PartnerRepository,
	payments PaymentService,
	registry *provider.Registry,
	orchestratorURL string,
) WebhookService {
	return &webhookService{
		webhookRepo:     webhookRepo,
		partnerRepo:     partnerRepo,
		payments:        payments,
		registry:        registry,
		client:          &http.Client{Timeout: deliveryTimeout},
		orchestratorURL: orchestratorURL,
	}
}

func (s *webhookService) ProcessInbound(ctx context.Context, providerName string, payload []byte, signatureHeader string) (*InboundResult, error) {
	p, ok := s.registry.Get(providerName)
	if !ok {
		return nil, apperrors.NewProviderError(providerName, "unknown provider")
	}

	event, err := p.ConstructWebhookEvent(payload, signatureHeader)
	if err != nil {
		return nil, apperrors.NewVerificationError(err.Error())
	}

	if event.ProviderEventID != "" {
		existing, err := s.webhookRepo.FindByProviderEventID(ctx, event.ProviderEventID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, err
		}
		if existing != nil {
			log.Printf("webhook event %s already processed, skipping", event.ProviderEventID)
			return &InboundResult{Received: true, Status: "already_processed", EventType: event.EventType}, nil
		}
	}

	payment := s.resolvePayment(ctx, event)

	entry := &model.WebhookLog{
		EventType: event.EventType,
		Provider:  event.Provider,
		Payload:   model.JSONMap(event.RawData),
	}
	if event.ProviderEventID != "" {
		id := event.ProviderEventID
		entry.ProviderEventID = &id
	}

	result := &InboundResult{Received: true, Status: "unmatched", EventType: event.EventType}
	if payment != nil {
		entry.PaymentID = &payment.ID
		result.Status = "processed"
		result.PaymentID = &payment.ID

		if newStatus, ok := eventStatus[event.EventType]; ok && newStatus != payment.Status {
			metadata := model.JSONMap{}
			for k, v := range payment.Metadata {
				metadata[k] = v
			}
			for k, v := range event.Metadata {
				metadata[k] = v
			}
			updated, err := s.payments.UpdateStatus(ctx, payment.ID, newStatus, "", metadata)
			if err != nil {
				// The event is still recorded; the state machine just
				// rejected the transition (late or out-of-order delivery).
				log.Printf("webhook %s: status update to %s rejected for payment %s: %v",
					event.EventType, newStatus, payment.ID, err)
			} else {
				payment = updated
			}
		}
	} else {
		log.Printf("webhook %s: no matching payment for provider payment %q", event.EventType, event.ProviderPaymentID)
	}

	// Unmatched events are logged too; the audit trail must not depend on a
	// successful payment lookup.
	if err := s.webhookRepo.CreateIncoming(ctx, entry); err != nil {
		return nil, fmt.Errorf("record inbound webhook: %w", err)
	}

	if payment != nil {
		s.DispatchEvent(ctx, event.EventType, payment)
		s.notifyOrchestrator(ctx, event.EventType, payment)
	}
	return result, nil
}

func (s *webhookService) ProcessPartnerInbound(ctx context.Context, partnerID uuid.UUID, payload []byte, signatureHeader string) (*InboundResult, error) {
	partner, err := s.partnerRepo.FindByID(ctx, partnerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrPartnerNotFound
		}
		return nil, err
	}
	if partner.Status != model.PartnerStatusActive {
		return nil, apperrors.ErrPartnerNotFound
	}

	var previous *string
	if partner.PreviousSecret != nil && partner.PreviousSecretValidUntil != nil &&
		time.Now().UTC().Before(*partner.PreviousSecretValidUntil) {
		previous = partner.PreviousSecret
	}
	if err := signature.VerifyWithRotation(payload, signatureHeader, partner.Secret, previous, signature.DefaultTolerance); err != nil {
		return nil, apperrors.NewVerificationError(err.Error())
	}

	var body struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, apperrors.NewVerificationError("malformed payload")
	}

	entry := &model.WebhookLog{
		EventType:   body.Event,
		Provider:    "partner",
		PartnerID:   &partner.ID,
		PartnerName: partner.Name,
		Payload:     model.JSONMap(body.Data),
	}
	if err := s.webhookRepo.CreateIncoming(ctx, entry); err != nil {
		return nil, fmt.Errorf("record partner webhook: %w", err)
	}
	return &InboundResult{Received: true, Status: "processed", EventType: body.Event}, nil
}

func (s *webhookService) DispatchEvent(ctx context.Context, eventType string, payment *model.Payment) {
	if !model.IsKnownEventType(eventType) {
		return
	}
	partners, err := s.partnerRepo.ListByEvent(ctx, eventType)
	if err != nil {
		log.Printf("list partners for %s: %v", eventType, err)
		return
	}

	data := paymentEventData(payment)
	for i := range partners {
		if _, err := s.Deliver(ctx, &partners[i], eventType, data); err != nil {
			log.Printf("deliver %s to partner %s: %v", eventType, partners[i].Name, err)
		}
	}
}

// Deliver persists the delivery intent, sends, and records the outcome. The
// log row exists before the HTTP call so a crash mid-send still leaves a
// retryable record.
func (s *webhookService) Deliver(ctx context.Context, partner *model.Partner, eventType string, data map[string]interface{}) (uuid.UUID, error) {
	envelope := map[string]interface{}{
		"id":        uuid.NewString(),
		"event":     eventType,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
		"source":    "pawpay",
		"version":   "1.0",
	}

	entry := &model.WebhookLog{
		EventType:   eventType,
		Provider:    "partner",
		PartnerID:   &partner.ID,
		PartnerName: partner.Name,
		Payload:     model.JSONMap(envelope),
	}
	if paymentID, ok := data["payment_id"].(string); ok {
		if id, err := uuid.Parse(paymentID); err == nil {
			entry.PaymentID = &id
		}
	}
	if err := s.webhookRepo.CreateOutgoing(ctx, entry); err != nil {
		return uuid.Nil, fmt.Errorf("record outbound webhook: %w", err)
	}

	s.send(ctx, entry, partner, envelope, 0)
	return entry.ID, nil
}

func (s *webhookService) RetryPending(ctx context.Context) (int, error) {
	due, err := s.webhookRepo.PendingRetries(ctx, 0)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for i := range due {
		entry := &due[i]
		if entry.PartnerID == nil {
			continue
		}
		// Missing or inactive partners don't consume an attempt; the row
		// stays due in case the partner comes back or the lookup error was
		// transient.
		partner, err := s.partnerRepo.FindByID(ctx, *entry.PartnerID)
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				log.Printf("lookup partner %s for webhook %s: %v", *entry.PartnerID, entry.ID, err)
			}
			continue
		}
		if partner.Status != model.PartnerStatusActive {
			continue
		}
		s.send(ctx, entry, partner, map[string]interface{}(entry.Payload), entry.Attempts)
		attempted++
	}
	return attempted, nil
}

func (s *webhookService) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]model.WebhookLog, error) {
	return s.webhookRepo.ListByPayment(ctx, paymentID)
}

func (s *webhookService) ListByPartner(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]model.WebhookLog, error) {
	return s.webhookRepo.ListByPartner(ctx, partnerID, limit, offset)
}

// send performs one delivery attempt and records the result. Retries are
// re-signed with the partner's current secret, so a rotation between
// attempts never strands a delivery on a dead key.
func (s *webhookService) send(ctx context.Context, entry *model.WebhookLog, partner *model.Partner, envelope map[string]interface{}, retryCount int) {
	body, err := json.Marshal(envelope)
	if err != nil {
		if _, markErr := s.webhookRepo.MarkFailed(ctx, entry.ID, "marshal payload: "+err.Error(), repository.DeliveryResult{}); markErr != nil {
			log.Printf("mark webhook %s failed: %v", entry.ID, markErr)
		}
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, partner.WebhookURL, bytes.NewReader(body))
	if err != nil {
		if _, markErr := s.webhookRepo.MarkFailed(ctx, entry.ID, "build request: "+err.Error(), repository.DeliveryResult{}); markErr != nil {
			log.Printf("mark webhook %s failed: %v", entry.ID, markErr)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature.MakeHeader(body, partner.Secret, 0))
	req.Header.Set("X-Webhook-Id", entry.ID.String())
	req.Header.Set("X-Event-Type", entry.EventType)
	if retryCount > 0 {
		req.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retryCount))
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	durationMS := int(time.Since(start).Milliseconds())
	if err != nil {
		if _, markErr := s.webhookRepo.MarkFailed(ctx, entry.ID, err.Error(), repository.DeliveryResult{DurationMS: &durationMS}); markErr != nil {
			log.Printf("mark webhook %s failed: %v", entry.ID, markErr)
		}
		return
	}
	defer resp.Body.Close()

	statusCode := resp.StatusCode
	result := repository.DeliveryResult{StatusCode: &statusCode, DurationMS: &durationMS}
	var respBody map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err == nil {
		result.Response = model.JSONMap(respBody)
	}

	if statusCode >= 200 && statusCode < 300 {
		if _, err := s.webhookRepo.MarkDelivered(ctx, entry.ID, result); err != nil {
			log.Printf("mark webhook %s delivered: %v", entry.ID, err)
			return
		}
		if err := s.partnerRepo.IncrementWebhooksSent(ctx, partner.ID); err != nil {
			log.Printf("increment delivery counter for partner %s: %v", partner.ID, err)
		}
		return
	}

	if _, err := s.webhookRepo.MarkFailed(ctx, entry.ID, fmt.Sprintf("endpoint returned %d", statusCode), result); err != nil {
		log.Printf("mark webhook %s failed: %v", entry.ID, err)
	}
}

// resolvePayment finds the payment an event refers to, by the gateway's
// payment id first and the payment_id metadata echo second.
func (s *webhookService) resolvePayment(ctx context.Context, event *provider.WebhookEvent) *model.Payment {
	if event.ProviderPaymentID != "" {
		payment, err := s.payments.GetByProviderPaymentID(ctx, event.ProviderPaymentID)
		if err == nil {
			return payment
		}
		if err != apperrors.ErrPaymentNotFound {
			log.Printf("lookup payment by provider id %q: %v", event.ProviderPaymentID, err)
		}
	}
	if raw, ok := event.Metadata["payment_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			payment, err := s.payments.GetPayment(ctx, id)
			if err == nil {
				return payment
			}
		}
	}
	return nil
}

// notifyOrchestrator posts a status change to the upstream application.
// Failures are logged and swallowed; payment state is already durable here.
func (s *webhookService) notifyOrchestrator(ctx context.Context, eventType string, payment *model.Payment) {
	if s.orchestratorURL == "" {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"event":   eventType,
		"payment": paymentEventData(payment),
	})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.orchestratorURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("notify orchestrator: %v", err)
		return
	}
	resp.Body.Close()
}

// paymentEventData is the partner-facing projection of a payment. Internal
// identifiers and secret material never leave through it.
func paymentEventData(payment *model.Payment) map[string]interface{} {
	data := map[string]interface{}{
		"payment_id":   payment.ID.String(),
		"status":       string(payment.Status),
		"amount":       payment.Amount.String(),
		"currency":     payment.Currency,
		"payment_type": string(payment.PaymentType),
		"provider":     payment.Provider,
	}
	if payment.CampaignID != nil {
		data["campaign_id"] = payment.CampaignID.String()
	}
	if payment.CauseID != nil {
		data["cause_id"] = payment.CauseID.String()
	}
	if payment.FailureReason != "" {
		data["failure_reason"] = payment.FailureReason
	}
	return data
}
