package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "pawpay/internal/errors"
	"pawpay/internal/model"
	"pawpay/internal/provider"
	"pawpay/internal/repository"
)

// CreatePaymentInput carries a payment creation request into the orchestrator.
type CreatePaymentInput struct {
	Amount      decimal.Decimal
	Currency    string
	PaymentType model.PaymentType

	UserID     *uuid.UUID
	CampaignID *uuid.UUID
	AnimalID   *uuid.UUID
	ShelterID  *uuid.UUID
	CauseID    *uuid.UUID

	PayerEmail  string
	PayerName   string
	Description string
	Metadata    map[string]string
	SuccessURL  string
	CancelURL   string
}

// PaymentIntent is what a caller needs to redirect the payer. It never
// carries stored secret material.
type PaymentIntent struct {
	PaymentID    uuid.UUID           `json:"payment_id"`
	ClientSecret string              `json:"client_secret,omitempty"`
	CheckoutURL  string              `json:"checkout_url,omitempty"`
	Status       model.PaymentStatus `json:"status"`
	Provider     string              `json:"provider"`
}

// CampaignStats aggregates succeeded payments for a campaign or cause.
type CampaignStats struct {
	ReferenceID    uuid.UUID       `json:"reference_id"`
	TotalRaised    decimal.Decimal `json:"total_raised"`
	TotalDonations int             `json:"total_donations"`
	Currency       string          `json:"currency"`
}

// PaymentService orchestrates the payment lifecycle across the ledger and
// the external provider.
type PaymentService interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput, idempotencyKey string) (*PaymentIntent, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.PaymentStatus, failureReason string, metadata model.JSONMap) (*model.Payment, error)
	CancelPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	RefundPayment(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, reason string) (*model.Payment, error)
	CampaignStats(ctx context.Context, campaignID uuid.UUID) (*CampaignStats, error)
	CauseStats(ctx context.Context, causeID uuid.UUID) (*CampaignStats, error)
}

type paymentService struct {
	repo     repository.PaymentRepository
	provider provider.Provider
}

// NewPaymentService creates a new payment service with an injected provider.
func NewPaymentService(repo repository.PaymentRepository, p provider.Provider) PaymentService {
	return &paymentService{repo: repo, provider: p}
}

// CreatePayment creates a payment and opens it with the provider.
//
// The ledger's idempotency-key lookup is the durable dedup path: if a payment
// already exists for the key, its checkout info is returned without touching
// the provider. The pending row is created before the provider call so a hard
// provider failure still leaves a failed row, never a dangling pending one.
func (s *paymentService) CreatePayment(ctx context.Context, input CreatePaymentInput, idempotencyKey string) (*PaymentIntent, error) {
	if idempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			log.Printf("returning existing payment %s for idempotency key", existing.ID)
			return &PaymentIntent{
				PaymentID:   existing.ID,
				CheckoutURL: existing.CheckoutURL,
				Status:      existing.Status,
				Provider:    existing.Provider,
			}, nil
		}
	}

	payment := &model.Payment{
		Amount:      input.Amount,
		Currency:    input.Currency,
		Status:      model.PaymentStatusPending,
		PaymentType: input.PaymentType,
		UserID:      input.UserID,
		CampaignID:  input.CampaignID,
		AnimalID:    input.AnimalID,
		ShelterID:   input.ShelterID,
		CauseID:     input.CauseID,
		PayerEmail:  input.PayerEmail,
		PayerName:   input.PayerName,
		Provider:    s.provider.Name(),
		Description: input.Description,
		Metadata:    toJSONMap(input.Metadata),
		SuccessURL:  input.SuccessURL,
		CancelURL:   input.CancelURL,
	}
	if idempotencyKey != "" {
		payment.IdempotencyKey = &idempotencyKey
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	description := input.Description
	if description == "" {
		description = fmt.Sprintf("Donation - %s", input.PaymentType)
	}
	metadata := map[string]string{
		"payment_id":   payment.ID.String(),
		"payment_type": string(input.PaymentType),
	}
	for k, v := range input.Metadata {
		metadata[k] = v
	}

	result, err := s.provider.CreatePayment(ctx, provider.CreatePaymentParams{
		Amount:        input.Amount,
		Currency:      input.Currency,
		PaymentID:     payment.ID,
		Description:   description,
		Metadata:      metadata,
		CustomerEmail: input.PayerEmail,
		SuccessURL:    input.SuccessURL,
		CancelURL:     input.CancelURL,
	})
	if err != nil {
		reason := err.Error()
		if _, markErr := s.repo.UpdateStatus(ctx, payment.ID, model.PaymentStatusPending, model.PaymentStatusFailed, repository.StatusUpdate{
			FailureReason: &reason,
		}); markErr != nil {
			log.Printf("mark payment %s failed after provider error: %v", payment.ID, markErr)
		}
		return nil, apperrors.NewProviderError(s.provider.Name(), reason)
	}

	status := model.PaymentStatusPending
	switch result.Status {
	case provider.ResultSuccess:
		status = model.PaymentStatusSucceeded
	case provider.ResultFailed:
		status = model.PaymentStatusFailed
	}

	update := repository.StatusUpdate{}
	if result.ProviderPaymentID != "" {
		update.ProviderPaymentID = &result.ProviderPaymentID
	}
	if result.CheckoutURL != "" {
		update.CheckoutURL = &result.CheckoutURL
	}
	if result.FailureReason != "" {
		update.FailureReason = &result.FailureReason
	}
	if status != model.PaymentStatusPending {
		if _, err := s.repo.UpdateStatus(ctx, payment.ID, model.PaymentStatusPending, status, update); err != nil {
			return nil, fmt.Errorf("update payment after provider call: %w", err)
		}
	} else if update.ProviderPaymentID != nil || update.CheckoutURL != nil {
		// Still pending: record provider identifiers without a transition.
		if _, err := s.repo.UpdateStatus(ctx, payment.ID, model.PaymentStatusPending, model.PaymentStatusPending, update); err != nil {
			return nil, fmt.Errorf("update payment after provider call: %w", err)
		}
	}

	return &PaymentIntent{
		PaymentID:    payment.ID,
		ClientSecret: result.ClientSecret,
		CheckoutURL:  result.CheckoutURL,
		Status:       status,
		Provider:     s.provider.Name(),
	}, nil
}

// GetPayment returns a payment by id.
func (s *paymentService) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// GetByProviderPaymentID returns a payment by the gateway's payment id.
func (s *paymentService) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error) {
	payment, err := s.repo.FindByProviderPaymentID(ctx, providerPaymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// UpdateStatus applies a state-machine guarded transition.
func (s *paymentService) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.PaymentStatus, failureReason string, metadata model.JSONMap) (*model.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	if !model.CanTransition(payment.Status, newStatus) {
		return nil, apperrors.NewInvalidState(id.String(), string(payment.Status), fmt.Sprintf("transition to %s", newStatus))
	}

	update := repository.StatusUpdate{Metadata: metadata}
	if failureReason != "" {
		update.FailureReason = &failureReason
	}
	updated, err := s.repo.UpdateStatus(ctx, id, payment.Status, newStatus, update)
	if err != nil {
		if err == repository.ErrStaleStatus {
			// A concurrent transition landed first; the requested one is no
			// longer legal from the row's actual state.
			return nil, apperrors.NewInvalidState(id.String(), string(payment.Status), fmt.Sprintf("transition to %s", newStatus))
		}
		return nil, err
	}
	return updated, nil
}

// CancelPayment cancels a pending payment. The provider-side cancel is best
// effort; only the ledger transition is authoritative.
func (s *paymentService) CancelPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusPending {
		return nil, apperrors.NewInvalidState(id.String(), string(payment.Status), "cancel")
	}

	if payment.ProviderPaymentID != nil {
		if _, err := s.provider.CancelPayment(ctx, *payment.ProviderPaymentID); err != nil {
			log.Printf("provider cancel failed for payment %s: %v", id, err)
		}
	}

	reason := "Canceled by user"
	updated, err := s.repo.UpdateStatus(ctx, id, model.PaymentStatusPending, model.PaymentStatusCanceled, repository.StatusUpdate{
		FailureReason: &reason,
	})
	if err != nil {
		if err == repository.ErrStaleStatus {
			return nil, apperrors.NewInvalidState(id.String(), string(payment.Status), "cancel")
		}
		return nil, err
	}
	return updated, nil
}

// RefundPayment refunds a succeeded payment, fully or partially, and merges
// refund details into the payment metadata.
func (s *paymentService) RefundPayment(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, reason string) (*model.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusSucceeded {
		return nil, apperrors.NewInvalidState(id.String(), string(payment.Status), "refund")
	}
	if payment.ProviderPaymentID == nil {
		return nil, apperrors.NewProviderError(payment.Provider, "no provider payment ID for refund")
	}

	result, err := s.provider.RefundPayment(ctx, *payment.ProviderPaymentID, amount, reason)
	if err != nil {
		return nil, apperrors.NewProviderError(payment.Provider, err.Error())
	}
	if result.Status == provider.ResultFailed {
		failure := result.FailureReason
		if failure == "" {
			failure = "refund failed"
		}
		return nil, apperrors.NewProviderError(payment.Provider, failure)
	}

	metadata := model.JSONMap{}
	for k, v := range payment.Metadata {
		metadata[k] = v
	}
	metadata["refund_id"] = result.ProviderRefundID
	metadata["refund_amount"] = result.Amount.String()
	if reason != "" {
		metadata["refund_reason"] = reason
	}

	updated, err := s.repo.UpdateStatus(ctx, id, model.PaymentStatusSucceeded, model.PaymentStatusRefunded, repository.StatusUpdate{
		Metadata: metadata,
	})
	if err != nil {
		if err == repository.ErrStaleStatus {
			return nil, apperrors.NewInvalidState(id.String(), string(payment.Status), "refund")
		}
		return nil, err
	}
	return updated, nil
}

// CampaignStats aggregates succeeded payments for a campaign.
func (s *paymentService) CampaignStats(ctx context.Context, campaignID uuid.UUID) (*CampaignStats, error) {
	total, err := s.repo.CampaignTotal(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByCampaign(ctx, campaignID, 0)
	if err != nil {
		return nil, err
	}
	return &CampaignStats{
		ReferenceID:    campaignID,
		TotalRaised:    total,
		TotalDonations: countSucceeded(payments),
		Currency:       "usd",
	}, nil
}

// CauseStats aggregates succeeded payments for an urgent cause.
func (s *paymentService) CauseStats(ctx context.Context, causeID uuid.UUID) (*CampaignStats, error) {
	total, err := s.repo.CauseTotal(ctx, causeID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByCause(ctx, causeID, 0)
	if err != nil {
		return nil, err
	}
	return &CampaignStats{
		ReferenceID:    causeID,
		TotalRaised:    total,
		TotalDonations: countSucceeded(payments),
		Currency:       "usd",
	}, nil
}

func countSucceeded(payments []model.Payment) int {
	count := 0
	for _, p := range payments {
		if p.Status == model.PaymentStatusSucceeded {
			count++
		}
	}
	return count
}

func toJSONMap(m map[string]string) model.JSONMap {
	out := model.JSONMap{}
	for k, v := range m {
		out[k] = v
	}
	return out
}
