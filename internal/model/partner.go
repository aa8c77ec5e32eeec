package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PartnerStatus represents a partner's delivery eligibility.
type PartnerStatus string

const (
	PartnerStatusActive    PartnerStatus = "active"
	PartnerStatusInactive  PartnerStatus = "inactive"
	PartnerStatusSuspended PartnerStatus = "suspended"
)

// Webhook event types partners can subscribe to.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCanceled  = "payment.canceled"
	EventPaymentRefunded  = "payment.refunded"
)

// KnownEventTypes lists every event type a partner may subscribe to.
var KnownEventTypes = []string{
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventPaymentCanceled,
	EventPaymentRefunded,
}

// IsKnownEventType reports whether partners can subscribe to the event type.
func IsKnownEventType(eventType string) bool {
	for _, known := range KnownEventTypes {
		if known == eventType {
			return true
		}
	}
	return false
}

// Partner represents a B2B subscriber receiving signed webhooks.
// The current secret signs all outbound traffic; during rotation the previous
// secret stays valid for verification until PreviousSecretValidUntil.
type Partner struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name       string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	WebhookURL string    `json:"webhook_url" gorm:"type:text;not null"`

	// Events the partner is subscribed to, stored as a JSON array.
	Events StringList `json:"events" gorm:"type:json;not null"`

	Secret                   string     `json:"-" gorm:"type:varchar(255);not null"`
	PreviousSecret           *string    `json:"-" gorm:"type:varchar(255)"`
	PreviousSecretValidUntil *time.Time `json:"-"`

	Status PartnerStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`

	Description  string `json:"description,omitempty" gorm:"type:text"`
	ContactEmail string `json:"contact_email,omitempty" gorm:"type:varchar(255)"`

	TotalWebhooksSent int64      `json:"total_webhooks_sent" gorm:"not null;default:0"`
	LastWebhookAt     *time.Time `json:"last_webhook_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Partner) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SubscribedTo reports whether the partner subscribes to the event type.
func (p *Partner) SubscribedTo(eventType string) bool {
	for _, e := range p.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
