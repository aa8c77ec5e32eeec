package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus represents the lifecycle status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// PaymentType classifies what a payment is for.
type PaymentType string

const (
	PaymentTypeDonation PaymentType = "donation"
	PaymentTypeAdoption PaymentType = "adoption"
	PaymentTypeCampaign PaymentType = "campaign"
)

// validTransitions is the legal status transition table. Terminal states
// (failed, canceled, refunded) have no outgoing edges.
var validTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled},
	PaymentStatusProcessing: {PaymentStatusSucceeded, PaymentStatusFailed},
	PaymentStatusSucceeded:  {PaymentStatusRefunded},
	PaymentStatusFailed:     {},
	PaymentStatusCanceled:   {},
	PaymentStatusRefunded:   {},
}

// CanTransition reports whether moving from one payment status to another is legal.
func CanTransition(from, to PaymentStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Payment represents a payment delegated to an external provider.
// Rows are never physically deleted; status mutations go through the
// repository's guarded UpdateStatus.
type Payment struct {
	ID          uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency    string          `json:"currency" gorm:"type:char(3);not null;default:'usd'"`
	Status      PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentType PaymentType     `json:"payment_type" gorm:"type:varchar(20);not null;default:'donation'"`

	// Opaque references to entities owned by the main system. No referential
	// integrity is enforced here.
	UserID     *uuid.UUID `json:"user_id,omitempty" gorm:"type:char(36);index"`
	CampaignID *uuid.UUID `json:"campaign_id,omitempty" gorm:"type:char(36);index"`
	AnimalID   *uuid.UUID `json:"animal_id,omitempty" gorm:"type:char(36)"`
	ShelterID  *uuid.UUID `json:"shelter_id,omitempty" gorm:"type:char(36);index"`
	CauseID    *uuid.UUID `json:"cause_id,omitempty" gorm:"type:char(36);index"`

	// Payer identity when there is no user reference.
	PayerEmail string `json:"payer_email,omitempty" gorm:"type:varchar(255)"`
	PayerName  string `json:"payer_name,omitempty" gorm:"type:varchar(255)"`

	Provider          string  `json:"provider" gorm:"type:varchar(50);not null;default:'mock'"`
	ProviderPaymentID *string `json:"provider_payment_id,omitempty" gorm:"type:varchar(255);uniqueIndex"`

	CheckoutURL string `json:"checkout_url,omitempty" gorm:"type:text"`
	SuccessURL  string `json:"success_url,omitempty" gorm:"type:text"`
	CancelURL   string `json:"cancel_url,omitempty" gorm:"type:text"`

	Description    string  `json:"description,omitempty" gorm:"type:text"`
	Metadata       JSONMap `json:"metadata" gorm:"type:json"`
	FailureReason  string  `json:"failure_reason,omitempty" gorm:"type:text"`
	IdempotencyKey *string `json:"idempotency_key,omitempty" gorm:"type:varchar(255);uniqueIndex"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
