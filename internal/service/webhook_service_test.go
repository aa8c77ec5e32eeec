package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	apperrors "pawpay/internal/errors"
	"pawpay/internal/model"
	"pawpay/internal/provider"
	"pawpay/internal/repository"
	"pawpay/internal/signature"
)

// MockWebhookLogRepository is a mock implementation of WebhookLogRepository.
type MockWebhookLogRepository struct {
	mock.Mock
}

func (m *MockWebhookLogRepository) CreateIncoming(ctx context.Context, log *model.WebhookLog) error {
	args := m.Called(ctx, log)
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockWebhookLogRepository) CreateOutgoing(ctx context.Context, log *model.WebhookLog) error {
	args := m.Called(ctx, log)
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockWebhookLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookLog), args.Error(1)
}

func (m *MockWebhookLogRepository) FindByProviderEventID(ctx context.Context, providerEventID string) (*model.WebhookLog, error) {
	args := m.Called(ctx, providerEventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookLog), args.Error(1)
}

func (m *MockWebhookLogRepository) MarkDelivered(ctx context.Context, id uuid.UUID, result repository.DeliveryResult) (*model.WebhookLog, error) {
	args := m.Called(ctx, id, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookLog), args.Error(1)
}

func (m *MockWebhookLogRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, result repository.DeliveryResult) (*model.WebhookLog, error) {
	args := m.Called(ctx, id, errorMessage, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookLog), args.Error(1)
}

func (m *MockWebhookLogRepository) PendingRetries(ctx context.Context, limit int) ([]model.WebhookLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WebhookLog), args.Error(1)
}

func (m *MockWebhookLogRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]model.WebhookLog, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WebhookLog), args.Error(1)
}

func (m *MockWebhookLogRepository) ListByPartner(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]model.WebhookLog, error) {
	args := m.Called(ctx, partnerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WebhookLog), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, input CreatePaymentInput, idempotencyKey string) (*PaymentIntent, error) {
	args := m.Called(ctx, input, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentIntent), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.PaymentStatus, failureReason string, metadata model.JSONMap) (*model.Payment, error) {
	args := m.Called(ctx, id, newStatus, failureReason, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) CancelPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) RefundPayment(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, reason string) (*model.Payment, error) {
	args := m.Called(ctx, id, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) CampaignStats(ctx context.Context, campaignID uuid.UUID) (*CampaignStats, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CampaignStats), args.Error(1)
}

func (m *MockPaymentService) CauseStats(ctx context.Context, causeID uuid.UUID) (*CampaignStats, error) {
	args := m.Called(ctx, causeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CampaignStats), args.Error(1)
}

const testMockSecret = "mock_webhook_secret_for_testing"

func newWebhookTestService(webhookRepo repository.WebhookLogRepository, partnerRepo repository.PartnerRepository, payments PaymentService) (WebhookService, *provider.Mock) {
	mockProv := provider.NewMock(testMockSecret, 1.0)
	registry := provider.NewRegistry(mockProv)
	return NewWebhookService(webhookRepo, partnerRepo, payments, registry, ""), mockProv
}

func TestWebhookService_ProcessInbound(t *testing.T) {
	paymentID := uuid.New()
	payload := []byte(`{
		"id": "evt_inbound_1",
		"type": "payment.succeeded",
		"data": {"object": {"id": "cs_inbound_1", "amount": 25.00, "currency": "usd", "metadata": {"payment_id": "` + paymentID.String() + `"}}}
	}`)

	t.Run("verified event updates the payment and fans out", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, mockProv := newWebhookTestService(webhookRepo, partnerRepo, payments)

		pending := &model.Payment{ID: paymentID, Status: model.PaymentStatusPending}
		succeeded := &model.Payment{ID: paymentID, Status: model.PaymentStatusSucceeded, Amount: decimal.RequireFromString("25.00")}

		webhookRepo.On("FindByProviderEventID", mock.Anything, "evt_inbound_1").Return(nil, gorm.ErrRecordNotFound)
		payments.On("GetByProviderPaymentID", mock.Anything, "cs_inbound_1").Return(pending, nil)
		payments.On("UpdateStatus", mock.Anything, paymentID, model.PaymentStatusSucceeded, "", mock.Anything).Return(succeeded, nil)
		webhookRepo.On("CreateIncoming", mock.Anything, mock.MatchedBy(func(entry *model.WebhookLog) bool {
			return entry.EventType == "payment.succeeded" && entry.Provider == "mock" &&
				entry.PaymentID != nil && *entry.PaymentID == paymentID
		})).Return(nil)
		partnerRepo.On("ListByEvent", mock.Anything, "payment.succeeded").Return([]model.Partner{}, nil)

		result, err := svc.ProcessInbound(context.Background(), "mock", payload, mockProv.GenerateSignature(payload))

		assert.NoError(t, err)
		assert.True(t, result.Received)
		assert.Equal(t, "processed", result.Status)
		assert.Equal(t, paymentID, *result.PaymentID)
		webhookRepo.AssertExpectations(t)
		payments.AssertExpectations(t)
	})

	t.Run("duplicate event id is acknowledged without reprocessing", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, mockProv := newWebhookTestService(webhookRepo, partnerRepo, payments)

		webhookRepo.On("FindByProviderEventID", mock.Anything, "evt_inbound_1").Return(&model.WebhookLog{
			Status: model.WebhookStatusDelivered,
		}, nil)

		result, err := svc.ProcessInbound(context.Background(), "mock", payload, mockProv.GenerateSignature(payload))

		assert.NoError(t, err)
		assert.Equal(t, "already_processed", result.Status)
		payments.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		webhookRepo.AssertNotCalled(t, "CreateIncoming", mock.Anything, mock.Anything)
	})

	t.Run("invalid signature is rejected", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		_, err := svc.ProcessInbound(context.Background(), "mock", payload, "t=1,v1=deadbeef")

		var verification *apperrors.VerificationError
		assert.ErrorAs(t, err, &verification)
		webhookRepo.AssertNotCalled(t, "CreateIncoming", mock.Anything, mock.Anything)
	})

	t.Run("unknown provider", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, mockProv := newWebhookTestService(webhookRepo, partnerRepo, payments)

		_, err := svc.ProcessInbound(context.Background(), "xendit", payload, mockProv.GenerateSignature(payload))

		var providerErr *apperrors.ProviderError
		assert.ErrorAs(t, err, &providerErr)
	})

	t.Run("unmatched payment is still recorded", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, mockProv := newWebhookTestService(webhookRepo, partnerRepo, payments)

		orphan := []byte(`{"id": "evt_orphan", "type": "payment.succeeded", "data": {"object": {"id": "cs_orphan"}}}`)

		webhookRepo.On("FindByProviderEventID", mock.Anything, "evt_orphan").Return(nil, gorm.ErrRecordNotFound)
		payments.On("GetByProviderPaymentID", mock.Anything, "cs_orphan").Return(nil, apperrors.ErrPaymentNotFound)
		webhookRepo.On("CreateIncoming", mock.Anything, mock.MatchedBy(func(entry *model.WebhookLog) bool {
			return entry.PaymentID == nil
		})).Return(nil)

		result, err := svc.ProcessInbound(context.Background(), "mock", orphan, mockProv.GenerateSignature(orphan))

		assert.NoError(t, err)
		assert.Equal(t, "unmatched", result.Status)
		partnerRepo.AssertNotCalled(t, "ListByEvent", mock.Anything, mock.Anything)
		webhookRepo.AssertExpectations(t)
	})
}

func TestWebhookService_Deliver(t *testing.T) {
	partnerSecret := "whsec_partner_secret"
	payment := &model.Payment{
		ID:       uuid.New(),
		Status:   model.PaymentStatusSucceeded,
		Amount:   decimal.RequireFromString("25.00"),
		Currency: "usd",
		Provider: "mock",
	}

	t.Run("successful delivery is signed and recorded", func(t *testing.T) {
		var gotBody []byte
		var gotHeaders http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotHeaders = r.Header.Clone()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"received": true}`))
		}))
		defer server.Close()

		partner := &model.Partner{
			ID:         uuid.New(),
			Name:       "shelter-sync",
			WebhookURL: server.URL,
			Secret:     partnerSecret,
			Status:     model.PartnerStatusActive,
		}

		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		webhookRepo.On("CreateOutgoing", mock.Anything, mock.MatchedBy(func(entry *model.WebhookLog) bool {
			return entry.EventType == model.EventPaymentSucceeded && entry.PartnerID != nil && *entry.PartnerID == partner.ID
		})).Return(nil)
		webhookRepo.On("MarkDelivered", mock.Anything, mock.Anything, mock.MatchedBy(func(result repository.DeliveryResult) bool {
			return result.StatusCode != nil && *result.StatusCode == http.StatusOK
		})).Return(&model.WebhookLog{Status: model.WebhookStatusDelivered}, nil)
		partnerRepo.On("IncrementWebhooksSent", mock.Anything, partner.ID).Return(nil)

		logID, err := svc.Deliver(context.Background(), partner, model.EventPaymentSucceeded, paymentEventData(payment))

		assert.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, logID)

		// The signature header verifies against the raw delivered body.
		sigHeader := gotHeaders.Get("X-Webhook-Signature")
		assert.NoError(t, signature.VerifyHeader(gotBody, sigHeader, partnerSecret, signature.DefaultTolerance))
		assert.Equal(t, model.EventPaymentSucceeded, gotHeaders.Get("X-Event-Type"))
		assert.Equal(t, logID.String(), gotHeaders.Get("X-Webhook-Id"))
		assert.Empty(t, gotHeaders.Get("X-Retry-Count"))

		var envelope map[string]interface{}
		assert.NoError(t, json.Unmarshal(gotBody, &envelope))
		assert.Equal(t, model.EventPaymentSucceeded, envelope["event"])
		assert.Equal(t, "pawpay", envelope["source"])
		assert.Equal(t, "1.0", envelope["version"])
		data := envelope["data"].(map[string]interface{})
		assert.Equal(t, payment.ID.String(), data["payment_id"])
		assert.Equal(t, "25", data["amount"])

		webhookRepo.AssertExpectations(t)
		partnerRepo.AssertExpectations(t)
	})

	t.Run("non-2xx response schedules a retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		partner := &model.Partner{
			ID:         uuid.New(),
			Name:       "flaky-partner",
			WebhookURL: server.URL,
			Secret:     partnerSecret,
			Status:     model.PartnerStatusActive,
		}

		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		webhookRepo.On("CreateOutgoing", mock.Anything, mock.Anything).Return(nil)
		webhookRepo.On("MarkFailed", mock.Anything, mock.Anything, "endpoint returned 500", mock.Anything).
			Return(&model.WebhookLog{Status: model.WebhookStatusRetrying}, nil)

		_, err := svc.Deliver(context.Background(), partner, model.EventPaymentSucceeded, paymentEventData(payment))

		assert.NoError(t, err)
		webhookRepo.AssertExpectations(t)
		partnerRepo.AssertNotCalled(t, "IncrementWebhooksSent", mock.Anything, mock.Anything)
	})

	t.Run("unreachable endpoint is marked failed", func(t *testing.T) {
		partner := &model.Partner{
			ID:         uuid.New(),
			Name:       "dead-partner",
			WebhookURL: "http://127.0.0.1:1",
			Secret:     partnerSecret,
			Status:     model.PartnerStatusActive,
		}

		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		webhookRepo.On("CreateOutgoing", mock.Anything, mock.Anything).Return(nil)
		webhookRepo.On("MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&model.WebhookLog{Status: model.WebhookStatusRetrying}, nil)

		_, err := svc.Deliver(context.Background(), partner, model.EventPaymentSucceeded, paymentEventData(payment))

		assert.NoError(t, err)
		webhookRepo.AssertExpectations(t)
	})
}

func TestWebhookService_RetryPending(t *testing.T) {
	partnerID := uuid.New()
	entryID := uuid.New()
	pendingLog := model.WebhookLog{
		ID:        entryID,
		Direction: model.WebhookDirectionOutgoing,
		EventType: model.EventPaymentSucceeded,
		PartnerID: &partnerID,
		Status:    model.WebhookStatusRetrying,
		Attempts:  2,
		Payload: model.JSONMap{
			"id":    uuid.NewString(),
			"event": model.EventPaymentSucceeded,
			"data":  map[string]interface{}{"payment_id": uuid.NewString()},
		},
	}

	t.Run("redelivers due webhooks with the current secret", func(t *testing.T) {
		var gotHeaders http.Header
		var gotBody []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotHeaders = r.Header.Clone()
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		rotatedSecret := "whsec_rotated"
		partner := &model.Partner{
			ID:         partnerID,
			Name:       "shelter-sync",
			WebhookURL: server.URL,
			Secret:     rotatedSecret,
			Status:     model.PartnerStatusActive,
		}

		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		webhookRepo.On("PendingRetries", mock.Anything, mock.Anything).Return([]model.WebhookLog{pendingLog}, nil)
		partnerRepo.On("FindByID", mock.Anything, partnerID).Return(partner, nil)
		webhookRepo.On("MarkDelivered", mock.Anything, entryID, mock.Anything).
			Return(&model.WebhookLog{ID: entryID, Status: model.WebhookStatusDelivered}, nil)
		partnerRepo.On("IncrementWebhooksSent", mock.Anything, partnerID).Return(nil)

		attempted, err := svc.RetryPending(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, attempted)
		assert.Equal(t, "2", gotHeaders.Get("X-Retry-Count"))
		// Re-signed with the partner's current secret, not the original one.
		sigHeader := gotHeaders.Get("X-Webhook-Signature")
		assert.NoError(t, signature.VerifyHeader(gotBody, sigHeader, rotatedSecret, signature.DefaultTolerance))
		webhookRepo.AssertExpectations(t)
	})

	t.Run("missing partner is skipped without consuming an attempt", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		webhookRepo.On("PendingRetries", mock.Anything, mock.Anything).Return([]model.WebhookLog{pendingLog}, nil)
		partnerRepo.On("FindByID", mock.Anything, partnerID).Return(nil, gorm.ErrRecordNotFound)

		attempted, err := svc.RetryPending(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 0, attempted)
		webhookRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		webhookRepo.AssertExpectations(t)
	})

	t.Run("transient partner lookup error leaves the row untouched", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		webhookRepo.On("PendingRetries", mock.Anything, mock.Anything).Return([]model.WebhookLog{pendingLog}, nil)
		partnerRepo.On("FindByID", mock.Anything, partnerID).Return(nil, errors.New("connection reset"))

		attempted, err := svc.RetryPending(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 0, attempted)
		webhookRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("inactive partner is skipped without consuming an attempt", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		inactive := &model.Partner{ID: partnerID, Name: "shelter-sync", Status: model.PartnerStatusInactive}
		webhookRepo.On("PendingRetries", mock.Anything, mock.Anything).Return([]model.WebhookLog{pendingLog}, nil)
		partnerRepo.On("FindByID", mock.Anything, partnerID).Return(inactive, nil)

		attempted, err := svc.RetryPending(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 0, attempted)
		webhookRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("nothing due", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		webhookRepo.On("PendingRetries", mock.Anything, mock.Anything).Return([]model.WebhookLog{}, nil)

		attempted, err := svc.RetryPending(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 0, attempted)
	})
}

func TestWebhookService_ProcessPartnerInbound(t *testing.T) {
	partnerID := uuid.New()
	currentSecret := "whsec_current"
	previousSecret := "whsec_previous"
	graceUntil := time.Now().UTC().Add(time.Hour)
	payload := []byte(`{"event": "inventory.updated", "data": {"shelter_id": "s-1"}}`)

	activePartner := func() *model.Partner {
		return &model.Partner{
			ID:                       partnerID,
			Name:                     "shelter-sync",
			Secret:                   currentSecret,
			PreviousSecret:           &previousSecret,
			PreviousSecretValidUntil: &graceUntil,
			Status:                   model.PartnerStatusActive,
		}
	}

	t.Run("accepts the current secret", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		partnerRepo.On("FindByID", mock.Anything, partnerID).Return(activePartner(), nil)
		webhookRepo.On("CreateIncoming", mock.Anything, mock.MatchedBy(func(entry *model.WebhookLog) bool {
			return entry.EventType == "inventory.updated" && entry.PartnerID != nil && *entry.PartnerID == partnerID
		})).Return(nil)

		result, err := svc.ProcessPartnerInbound(context.Background(), partnerID, payload,
			signature.MakeHeader(payload, currentSecret, 0))

		assert.NoError(t, err)
		assert.Equal(t, "processed", result.Status)
		webhookRepo.AssertExpectations(t)
	})

	t.Run("accepts the previous secret inside its grace window", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		partnerRepo.On("FindByID", mock.Anything, partnerID).Return(activePartner(), nil)
		webhookRepo.On("CreateIncoming", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.ProcessPartnerInbound(context.Background(), partnerID, payload,
			signature.MakeHeader(payload, previousSecret, 0))

		assert.NoError(t, err)
	})

	t.Run("rejects the previous secret after the grace window", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		expired := activePartner()
		past := time.Now().UTC().Add(-time.Hour)
		expired.PreviousSecretValidUntil = &past
		partnerRepo.On("FindByID", mock.Anything, partnerID).Return(expired, nil)

		_, err := svc.ProcessPartnerInbound(context.Background(), partnerID, payload,
			signature.MakeHeader(payload, previousSecret, 0))

		var verification *apperrors.VerificationError
		assert.ErrorAs(t, err, &verification)
		webhookRepo.AssertNotCalled(t, "CreateIncoming", mock.Anything, mock.Anything)
	})

	t.Run("unknown or inactive partner", func(t *testing.T) {
		webhookRepo := new(MockWebhookLogRepository)
		partnerRepo := new(MockPartnerRepository)
		payments := new(MockPaymentService)
		svc, _ := newWebhookTestService(webhookRepo, partnerRepo, payments)

		inactive := activePartner()
		inactive.Status = model.PartnerStatusInactive
		partnerRepo.On("FindByID", mock.Anything, partnerID).Return(inactive, nil)

		_, err := svc.ProcessPartnerInbound(context.Background(), partnerID, payload,
			signature.MakeHeader(payload, currentSecret, 0))

		assert.ErrorIs(t, err, apperrors.ErrPartnerNotFound)
	})
}
