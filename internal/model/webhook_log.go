package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookDirection distinguishes provider webhooks we receive from partner
// webhooks we send.
type WebhookDirection string

const (
	WebhookDirectionIncoming WebhookDirection = "incoming"
	WebhookDirectionOutgoing WebhookDirection = "outgoing"
)

// WebhookStatus represents the delivery state of a logged webhook.
// delivered and failed are terminal.
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusDelivered WebhookStatus = "delivered"
	WebhookStatusFailed    WebhookStatus = "failed"
	WebhookStatusRetrying  WebhookStatus = "retrying"
)

// MaxDeliveryAttempts is the attempt count after which an outgoing webhook
// becomes terminally failed.
const MaxDeliveryAttempts = 5

// retryDelays is the backoff schedule indexed by attempt number (1-based).
var retryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	12 * time.Hour,
}

// RetryDelay returns the wait before the next attempt, given the number of
// attempts already made. Attempts beyond the schedule clamp to the last entry.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > len(retryDelays) {
		attempts = len(retryDelays)
	}
	return retryDelays[attempts-1]
}

// ScheduleAfterFailure decides what a failed attempt does to a log: the new
// attempt count, the resulting status, and the next retry time (nil once the
// log is terminally failed).
func ScheduleAfterFailure(attempts int, now time.Time) (int, WebhookStatus, *time.Time) {
	newAttempts := attempts + 1
	if newAttempts >= MaxDeliveryAttempts {
		return newAttempts, WebhookStatusFailed, nil
	}
	next := now.Add(RetryDelay(newAttempts))
	return newAttempts, WebhookStatusRetrying, &next
}

// WebhookLog records every inbound and outbound webhook attempt and drives
// retry scheduling for outbound deliveries.
type WebhookLog struct {
	ID        uuid.UUID        `json:"id" gorm:"type:char(36);primaryKey"`
	Direction WebhookDirection `json:"direction" gorm:"type:varchar(10);not null;index"`
	EventType string           `json:"event_type" gorm:"type:varchar(100);not null"`

	// Incoming webhooks: originating provider and its event id (dedup key).
	Provider        string  `json:"provider,omitempty" gorm:"type:varchar(50)"`
	ProviderEventID *string `json:"provider_event_id,omitempty" gorm:"type:varchar(255);uniqueIndex"`

	// Outgoing webhooks: destination partner.
	PartnerID   *uuid.UUID `json:"partner_id,omitempty" gorm:"type:char(36);index"`
	PartnerName string     `json:"partner_name,omitempty" gorm:"type:varchar(255)"`

	PaymentID *uuid.UUID `json:"payment_id,omitempty" gorm:"type:char(36);index"`

	Status      WebhookStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts    int           `json:"attempts" gorm:"not null;default:0"`
	LastAttempt *time.Time    `json:"last_attempt_at,omitempty"`
	NextRetryAt *time.Time    `json:"next_retry_at,omitempty" gorm:"index"`

	Payload            JSONMap `json:"payload" gorm:"type:json;not null"`
	Response           JSONMap `json:"response,omitempty" gorm:"type:json"`
	ErrorMessage       string  `json:"error_message,omitempty" gorm:"type:text"`
	ResponseStatusCode *int    `json:"response_status_code,omitempty"`
	DurationMS         *int    `json:"duration_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (w *WebhookLog) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// Terminal reports whether the log will never be attempted again.
func (w *WebhookLog) Terminal() bool {
	return w.Status == WebhookStatusDelivered || w.Status == WebhookStatusFailed
}
