package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pawpay/internal/model"
)

// DeliveryResult captures the outcome of one delivery attempt.
type DeliveryResult struct {
	StatusCode *int
	Response   model.JSONMap
	DurationMS *int
}

// WebhookLogRepository defines webhook log persistence and retry scheduling.
type WebhookLogRepository interface {
	// CreateIncoming records a verified inbound webhook (already delivered).
	CreateIncoming(ctx context.Context, log *model.WebhookLog) error
	// CreateOutgoing records an outbound webhook before its first send.
	CreateOutgoing(ctx context.Context, log *model.WebhookLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error)
	FindByProviderEventID(ctx context.Context, providerEventID string) (*model.WebhookLog, error)
	// MarkDelivered finalizes a log after a successful send.
	MarkDelivered(ctx context.Context, id uuid.UUID, result DeliveryResult) (*model.WebhookLog, error)
	// MarkFailed records a failed attempt and either schedules the next
	// retry or, after MaxDeliveryAttempts, fails the log terminally.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, result DeliveryResult) (*model.WebhookLog, error)
	// PendingRetries returns due retrying logs, earliest first.
	PendingRetries(ctx context.Context, limit int) ([]model.WebhookLog, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]model.WebhookLog, error)
	ListByPartner(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]model.WebhookLog, error)
}

type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository.
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

// CreateIncoming records an inbound webhook. Inbound logs are terminal on
// arrival: verification already happened and there is nothing to retry.
func (r *webhookLogRepository) CreateIncoming(ctx context.Context, log *model.WebhookLog) error {
	now := time.Now().UTC()
	log.Direction = model.WebhookDirectionIncoming
	log.Status = model.WebhookStatusDelivered
	log.Attempts = 1
	log.LastAttempt = &now
	return r.db.WithContext(ctx).Create(log).Error
}

// CreateOutgoing records an outbound webhook pending its first attempt. The
// row must exist durably before the HTTP send so a crash mid-delivery still
// leaves an auditable record.
func (r *webhookLogRepository) CreateOutgoing(ctx context.Context, log *model.WebhookLog) error {
	log.Direction = model.WebhookDirectionOutgoing
	log.Status = model.WebhookStatusPending
	log.Attempts = 0
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByID finds a webhook log by ID.
func (r *webhookLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error) {
	var log model.WebhookLog
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// FindByProviderEventID finds a webhook log by the provider's event id.
func (r *webhookLogRepository) FindByProviderEventID(ctx context.Context, providerEventID string) (*model.WebhookLog, error) {
	var log model.WebhookLog
	if err := r.db.WithContext(ctx).Where("provider_event_id = ?", providerEventID).First(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// MarkDelivered finalizes a delivered webhook and clears any scheduled retry.
func (r *webhookLogRepository) MarkDelivered(ctx context.Context, id uuid.UUID, result DeliveryResult) (*model.WebhookLog, error) {
	now := time.Now().UTC()
	values := map[string]interface{}{
		"status":          model.WebhookStatusDelivered,
		"attempts":        gorm.Expr("attempts + 1"),
		"last_attempt":    now,
		"next_retry_at":   nil,
		"error_message":   "",
		"updated_at":      now,
	}
	if result.StatusCode != nil {
		values["response_status_code"] = *result.StatusCode
	}
	if result.Response != nil {
		values["response"] = result.Response
	}
	if result.DurationMS != nil {
		values["duration_ms"] = *result.DurationMS
	}

	err := r.db.WithContext(ctx).
		Model(&model.WebhookLog{}).
		Where("id = ?", id).
		Updates(values).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// MarkFailed records a failed attempt. The attempt guard in the WHERE clause
// keeps concurrent markers from double-counting a single attempt.
func (r *webhookLogRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, result DeliveryResult) (*model.WebhookLog, error) {
	log, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	newAttempts, status, nextRetryAt := model.ScheduleAfterFailure(log.Attempts, now)

	values := map[string]interface{}{
		"attempts":      newAttempts,
		"last_attempt":  now,
		"error_message": errorMessage,
		"updated_at":    now,
		"status":        status,
	}
	if nextRetryAt != nil {
		values["next_retry_at"] = *nextRetryAt
	} else {
		values["next_retry_at"] = nil
	}
	if result.StatusCode != nil {
		values["response_status_code"] = *result.StatusCode
	}
	if result.DurationMS != nil {
		values["duration_ms"] = *result.DurationMS
	}

	err = r.db.WithContext(ctx).
		Model(&model.WebhookLog{}).
		Where("id = ? AND attempts = ?", id, log.Attempts).
		Updates(values).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// PendingRetries returns retrying logs whose next attempt is due.
func (r *webhookLogRepository) PendingRetries(ctx context.Context, limit int) ([]model.WebhookLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []model.WebhookLog
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", model.WebhookStatusRetrying, time.Now().UTC()).
		Order("next_retry_at").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// ListByPayment lists webhooks touching a payment, newest first.
func (r *webhookLogRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]model.WebhookLog, error) {
	var logs []model.WebhookLog
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// ListByPartner lists webhooks sent to a partner, newest first.
func (r *webhookLogRepository) ListByPartner(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]model.WebhookLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []model.WebhookLog
	err := r.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
