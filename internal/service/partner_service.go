package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "pawpay/internal/errors"
	"pawpay/internal/model"
	"pawpay/internal/repository"
)

// DefaultSecretGrace is how long a rotated-out secret keeps verifying
// inbound partner calls.
const DefaultSecretGrace = 24 * time.Hour

// RegisterPartnerInput carries a partner registration request.
type RegisterPartnerInput struct {
	Name         string
	WebhookURL   string
	Events       []string
	Description  string
	ContactEmail string
}

// RegisteredPartner is the one response that carries the plaintext webhook
// secret. It is shown exactly once, at registration or rotation.
type RegisteredPartner struct {
	Partner *model.Partner `json:"partner"`
	Secret  string         `json:"secret"`
}

// PartnerService manages webhook partner registrations and their secrets.
type PartnerService interface {
	Register(ctx context.Context, input RegisterPartnerInput) (*RegisteredPartner, error)
	GetPartner(ctx context.Context, id uuid.UUID) (*model.Partner, error)
	ListPartners(ctx context.Context) ([]model.Partner, error)
	UpdatePartner(ctx context.Context, id uuid.UUID, update repository.PartnerUpdate) (*model.Partner, error)
	RotateSecret(ctx context.Context, id uuid.UUID) (*RegisteredPartner, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	VerifySecret(ctx context.Context, id uuid.UUID, secret string) (bool, error)
}

type partnerService struct {
	repo repository.PartnerRepository
}

// NewPartnerService creates a new partner service.
func NewPartnerService(repo repository.PartnerRepository) PartnerService {
	return &partnerService{repo: repo}
}

// Register creates a partner and returns its generated secret.
func (s *partnerService) Register(ctx context.Context, input RegisterPartnerInput) (*RegisteredPartner, error) {
	existing, err := s.repo.FindByName(ctx, input.Name)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrPartnerAlreadyExists
	}

	partner := &model.Partner{
		Name:         input.Name,
		WebhookURL:   input.WebhookURL,
		Events:       model.StringList(input.Events),
		Status:       model.PartnerStatusActive,
		Description:  input.Description,
		ContactEmail: input.ContactEmail,
	}
	secret, err := s.repo.Create(ctx, partner)
	if err != nil {
		return nil, err
	}
	return &RegisteredPartner{Partner: partner, Secret: secret}, nil
}

// GetPartner returns a partner by id.
func (s *partnerService) GetPartner(ctx context.Context, id uuid.UUID) (*model.Partner, error) {
	partner, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrPartnerNotFound
		}
		return nil, err
	}
	return partner, nil
}

// ListPartners lists active partners.
func (s *partnerService) ListPartners(ctx context.Context) ([]model.Partner, error) {
	return s.repo.ListActive(ctx)
}

// UpdatePartner applies a partial update to a partner. A rename is checked
// against existing names so the conflict surfaces as ErrPartnerAlreadyExists
// rather than a raw unique-index violation.
func (s *partnerService) UpdatePartner(ctx context.Context, id uuid.UUID, update repository.PartnerUpdate) (*model.Partner, error) {
	partner, err := s.GetPartner(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Name != nil && *update.Name != partner.Name {
		existing, err := s.repo.FindByName(ctx, *update.Name)
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, err
		}
		if existing != nil {
			return nil, apperrors.ErrPartnerAlreadyExists
		}
	}
	return s.repo.Update(ctx, id, update)
}

// RotateSecret issues a new secret. The old one stays valid for
// DefaultSecretGrace so in-flight partner integrations do not break.
func (s *partnerService) RotateSecret(ctx context.Context, id uuid.UUID) (*RegisteredPartner, error) {
	if _, err := s.GetPartner(ctx, id); err != nil {
		return nil, err
	}
	partner, secret, err := s.repo.RotateSecret(ctx, id, DefaultSecretGrace)
	if err != nil {
		return nil, err
	}
	return &RegisteredPartner{Partner: partner, Secret: secret}, nil
}

// Deactivate marks a partner inactive. Inactive partners receive no
// deliveries and their inbound calls are rejected.
func (s *partnerService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetPartner(ctx, id); err != nil {
		return err
	}
	status := model.PartnerStatusInactive
	_, err := s.repo.Update(ctx, id, repository.PartnerUpdate{Status: &status})
	return err
}

// VerifySecret checks a presented secret against the current secret, or the
// previous one if still inside its grace window.
func (s *partnerService) VerifySecret(ctx context.Context, id uuid.UUID, secret string) (bool, error) {
	partner, err := s.GetPartner(ctx, id)
	if err != nil {
		return false, err
	}
	if partner.Status != model.PartnerStatusActive {
		return false, nil
	}
	return s.repo.VerifySecret(ctx, id, secret)
}
