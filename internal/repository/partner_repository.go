package repository

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pawpay/internal/model"
	"pawpay/internal/signature"
)

// PartnerUpdate carries optional partner fields to change. Nil fields are
// left untouched.
type PartnerUpdate struct {
	Name         *string
	WebhookURL   *string
	Events       model.StringList
	Status       *model.PartnerStatus
	Description  *string
	ContactEmail *string
}

// PartnerRepository defines partner persistence operations.
type PartnerRepository interface {
	// Create stores a new partner with a freshly generated secret and
	// returns the secret. The secret is only returned here, never again.
	Create(ctx context.Context, partner *model.Partner) (string, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Partner, error)
	FindByName(ctx context.Context, name string) (*model.Partner, error)
	ListActive(ctx context.Context) ([]model.Partner, error)
	ListByEvent(ctx context.Context, eventType string) ([]model.Partner, error)
	Update(ctx context.Context, id uuid.UUID, update PartnerUpdate) (*model.Partner, error)
	// RotateSecret moves the current secret into the grace window and
	// installs a new one, returning it.
	RotateSecret(ctx context.Context, id uuid.UUID, gracePeriod time.Duration) (*model.Partner, string, error)
	// VerifySecret compares in constant time against the current secret and,
	// within the grace window, the previous one.
	VerifySecret(ctx context.Context, id uuid.UUID, candidate string) (bool, error)
	IncrementWebhooksSent(ctx context.Context, id uuid.UUID) error
}

type partnerRepository struct {
	db *gorm.DB
}

// NewPartnerRepository creates a new partner repository.
func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &partnerRepository{db: db}
}

// GenerateSecret produces a high-entropy webhook signing secret.
func GenerateSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("partner secret entropy unavailable: " + err.Error())
	}
	return "whsec_" + base64.RawURLEncoding.EncodeToString(buf)
}

// Create stores a new partner and returns its generated secret.
func (r *partnerRepository) Create(ctx context.Context, partner *model.Partner) (string, error) {
	secret := GenerateSecret()
	partner.Secret = secret
	if partner.Status == "" {
		partner.Status = model.PartnerStatusActive
	}
	if partner.Events == nil {
		partner.Events = model.StringList{}
	}
	if err := r.db.WithContext(ctx).Create(partner).Error; err != nil {
		return "", err
	}
	return secret, nil
}

// FindByID finds a partner by ID.
func (r *partnerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Partner, error) {
	var partner model.Partner
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&partner).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

// FindByName finds a partner by its unique name.
func (r *partnerRepository) FindByName(ctx context.Context, name string) (*model.Partner, error) {
	var partner model.Partner
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&partner).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

// ListActive lists active partners ordered by name.
func (r *partnerRepository) ListActive(ctx context.Context) ([]model.Partner, error) {
	var partners []model.Partner
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PartnerStatusActive).
		Order("name").
		Find(&partners).Error
	if err != nil {
		return nil, err
	}
	return partners, nil
}

// ListByEvent lists active partners subscribed to an event type. Events are a
// JSON array column, so the filter uses JSON_CONTAINS.
func (r *partnerRepository) ListByEvent(ctx context.Context, eventType string) ([]model.Partner, error) {
	var partners []model.Partner
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PartnerStatusActive).
		Where("JSON_CONTAINS(events, JSON_QUOTE(?))", eventType).
		Find(&partners).Error
	if err != nil {
		return nil, err
	}
	return partners, nil
}

// Update applies the non-nil fields and returns the refreshed partner.
func (r *partnerRepository) Update(ctx context.Context, id uuid.UUID, update PartnerUpdate) (*model.Partner, error) {
	values := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if update.WebhookURL != nil {
		values["webhook_url"] = *update.WebhookURL
	}
	if update.Events != nil {
		values["events"] = update.Events
	}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	if update.Description != nil {
		values["description"] = *update.Description
	}
	if update.ContactEmail != nil {
		values["contact_email"] = *update.ContactEmail
	}

	err := r.db.WithContext(ctx).
		Model(&model.Partner{}).
		Where("id = ?", id).
		Updates(values).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// RotateSecret installs a new secret, keeping the previous one valid for the
// grace period.
func (r *partnerRepository) RotateSecret(ctx context.Context, id uuid.UUID, gracePeriod time.Duration) (*model.Partner, string, error) {
	partner, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	newSecret := GenerateSecret()
	validUntil := time.Now().UTC().Add(gracePeriod)

	err = r.db.WithContext(ctx).
		Model(&model.Partner{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"previous_secret":             partner.Secret,
			"previous_secret_valid_until": validUntil,
			"secret":                      newSecret,
			"updated_at":                  time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, "", err
	}

	refreshed, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return refreshed, newSecret, nil
}

// VerifySecret checks a candidate against the current secret, falling back to
// the previous secret while its grace window is open.
func (r *partnerRepository) VerifySecret(ctx context.Context, id uuid.UUID, candidate string) (bool, error) {
	partner, err := r.FindByID(ctx, id)
	if err != nil {
		return false, err
	}

	if signature.SecretEqual(partner.Secret, candidate) {
		return true, nil
	}
	if partner.PreviousSecret != nil &&
		partner.PreviousSecretValidUntil != nil &&
		partner.PreviousSecretValidUntil.After(time.Now()) &&
		signature.SecretEqual(*partner.PreviousSecret, candidate) {
		return true, nil
	}
	return false, nil
}

// IncrementWebhooksSent bumps the delivery counter. Best effort: not tied to
// the delivery transaction.
func (r *partnerRepository) IncrementWebhooksSent(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Partner{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_webhooks_sent": gorm.Expr("total_webhooks_sent + 1"),
			"last_webhook_at":     time.Now().UTC(),
		}).Error
}
