package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pawpay/internal/model"
)

// StatusUpdate carries the optional fields written alongside a status
// transition. Nil fields are left untouched.
type StatusUpdate struct {
	ProviderPaymentID *string
	CheckoutURL       *string
	FailureReason     *string
	Metadata          model.JSONMap
}

// PaymentRepository defines payment persistence operations.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Payment, error)
	// UpdateStatus transitions a payment from expectedCurrent to newStatus
	// as a single conditional update. It returns ErrStaleStatus when the
	// row's status no longer matches expectedCurrent, meaning a concurrent
	// transition won.
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedCurrent, newStatus model.PaymentStatus, update StatusUpdate) (*model.Payment, error)
	CampaignTotal(ctx context.Context, campaignID uuid.UUID) (decimal.Decimal, error)
	CauseTotal(ctx context.Context, causeID uuid.UUID) (decimal.Decimal, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]model.Payment, error)
	ListByCause(ctx context.Context, causeID uuid.UUID, limit int) ([]model.Payment, error)
}

// ErrStaleStatus is returned when a conditional status update matched no row.
var ErrStaleStatus = errors.New("payment status changed concurrently")

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create creates a new payment record.
func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// FindByID finds a payment by ID.
func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByProviderPaymentID finds a payment by the gateway's payment id.
func (r *paymentRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Where("provider_payment_id = ?", providerPaymentID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByIdempotencyKey finds a payment by its idempotency key.
func (r *paymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus applies a guarded status transition. The WHERE clause on the
// current status makes the read-modify-write a single atomic conditional
// update, so concurrent webhook deliveries for the same payment cannot lose
// updates.
func (r *paymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expectedCurrent, newStatus model.PaymentStatus, update StatusUpdate) (*model.Payment, error) {
	values := map[string]interface{}{
		"status":     newStatus,
		"updated_at": time.Now().UTC(),
	}
	if update.ProviderPaymentID != nil {
		values["provider_payment_id"] = *update.ProviderPaymentID
	}
	if update.CheckoutURL != nil {
		values["checkout_url"] = *update.CheckoutURL
	}
	if update.FailureReason != nil {
		values["failure_reason"] = *update.FailureReason
	}
	if update.Metadata != nil {
		values["metadata"] = update.Metadata
	}

	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, expectedCurrent).
		Updates(values)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrStaleStatus
	}

	return r.FindByID(ctx, id)
}

// CampaignTotal sums succeeded payment amounts for a campaign.
func (r *paymentRepository) CampaignTotal(ctx context.Context, campaignID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByReference(ctx, "campaign_id", campaignID)
}

// CauseTotal sums succeeded payment amounts for an urgent cause.
func (r *paymentRepository) CauseTotal(ctx context.Context, causeID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByReference(ctx, "cause_id", causeID)
}

func (r *paymentRepository) sumByReference(ctx context.Context, column string, refID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where(column+" = ? AND status = ?", refID, model.PaymentStatusSucceeded).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ListByCampaign lists payments referencing a campaign, newest first.
func (r *paymentRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]model.Payment, error) {
	return r.listByReference(ctx, "campaign_id", campaignID, limit)
}

// ListByCause lists payments referencing an urgent cause, newest first.
func (r *paymentRepository) ListByCause(ctx context.Context, causeID uuid.UUID, limit int) ([]model.Payment, error) {
	return r.listByReference(ctx, "cause_id", causeID, limit)
}

func (r *paymentRepository) listByReference(ctx context.Context, column string, refID uuid.UUID, limit int) ([]model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where(column+" = ?", refID).
		Order("created_at DESC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
