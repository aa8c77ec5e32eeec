package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	apperrors "pawpay/internal/errors"
	"pawpay/internal/model"
	"pawpay/internal/repository"
)

// MockPartnerRepository is a mock implementation of PartnerRepository.
type MockPartnerRepository struct {
	mock.Mock
}

func (m *MockPartnerRepository) Create(ctx context.Context, partner *model.Partner) (string, error) {
	args := m.Called(ctx, partner)
	if partner.ID == uuid.Nil {
		partner.ID = uuid.New()
	}
	return args.String(0), args.Error(1)
}

func (m *MockPartnerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Partner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Partner), args.Error(1)
}

func (m *MockPartnerRepository) FindByName(ctx context.Context, name string) (*model.Partner, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Partner), args.Error(1)
}

func (m *MockPartnerRepository) ListActive(ctx context.Context) ([]model.Partner, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Partner), args.Error(1)
}

func (m *MockPartnerRepository) ListByEvent(ctx context.Context, eventType string) ([]model.Partner, error) {
	args := m.Called(ctx, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Partner), args.Error(1)
}

func (m *MockPartnerRepository) Update(ctx context.Context, id uuid.UUID, update repository.PartnerUpdate) (*model.Partner, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Partner), args.Error(1)
}

func (m *MockPartnerRepository) RotateSecret(ctx context.Context, id uuid.UUID, gracePeriod time.Duration) (*model.Partner, string, error) {
	args := m.Called(ctx, id, gracePeriod)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.Partner), args.String(1), args.Error(2)
}

func (m *MockPartnerRepository) VerifySecret(ctx context.Context, id uuid.UUID, candidate string) (bool, error) {
	args := m.Called(ctx, id, candidate)
	return args.Bool(0), args.Error(1)
}

func (m *MockPartnerRepository) IncrementWebhooksSent(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestPartnerService_Register(t *testing.T) {
	input := RegisterPartnerInput{
		Name:       "shelter-sync",
		WebhookURL: "https://partner.example.com/hooks",
		Events:     []string{model.EventPaymentSucceeded},
	}

	t.Run("registers a partner and returns the secret once", func(t *testing.T) {
		mockRepo := new(MockPartnerRepository)

		mockRepo.On("FindByName", mock.Anything, "shelter-sync").Return(nil, gorm.ErrRecordNotFound)
		mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Partner")).Return("whsec_generated", nil)

		svc := NewPartnerService(mockRepo)
		registered, err := svc.Register(context.Background(), input)

		assert.NoError(t, err)
		assert.Equal(t, "whsec_generated", registered.Secret)
		assert.Equal(t, "shelter-sync", registered.Partner.Name)
		assert.Equal(t, model.PartnerStatusActive, registered.Partner.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		mockRepo := new(MockPartnerRepository)

		mockRepo.On("FindByName", mock.Anything, "shelter-sync").Return(&model.Partner{Name: "shelter-sync"}, nil)

		svc := NewPartnerService(mockRepo)
		_, err := svc.Register(context.Background(), input)

		assert.ErrorIs(t, err, apperrors.ErrPartnerAlreadyExists)
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestPartnerService_UpdatePartner(t *testing.T) {
	partnerID := uuid.New()
	current := &model.Partner{ID: partnerID, Name: "shelter-sync", Status: model.PartnerStatusActive}

	t.Run("rename to a taken name conflicts", func(t *testing.T) {
		mockRepo := new(MockPartnerRepository)

		mockRepo.On("FindByID", mock.Anything, partnerID).Return(current, nil)
		mockRepo.On("FindByName", mock.Anything, "vet-network").Return(&model.Partner{Name: "vet-network"}, nil)

		svc := NewPartnerService(mockRepo)
		name := "vet-network"
		_, err := svc.UpdatePartner(context.Background(), partnerID, repository.PartnerUpdate{Name: &name})

		assert.ErrorIs(t, err, apperrors.ErrPartnerAlreadyExists)
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rename to a free name goes through", func(t *testing.T) {
		mockRepo := new(MockPartnerRepository)

		mockRepo.On("FindByID", mock.Anything, partnerID).Return(current, nil)
		mockRepo.On("FindByName", mock.Anything, "vet-network").Return(nil, gorm.ErrRecordNotFound)
		mockRepo.On("Update", mock.Anything, partnerID, mock.Anything).
			Return(&model.Partner{ID: partnerID, Name: "vet-network"}, nil)

		svc := NewPartnerService(mockRepo)
		name := "vet-network"
		updated, err := svc.UpdatePartner(context.Background(), partnerID, repository.PartnerUpdate{Name: &name})

		assert.NoError(t, err)
		assert.Equal(t, "vet-network", updated.Name)
		mockRepo.AssertExpectations(t)
	})

	t.Run("keeping the current name skips the uniqueness check", func(t *testing.T) {
		mockRepo := new(MockPartnerRepository)

		url := "https://partner.example.com/v2/hooks"
		mockRepo.On("FindByID", mock.Anything, partnerID).Return(current, nil)
		mockRepo.On("Update", mock.Anything, partnerID, mock.Anything).
			Return(&model.Partner{ID: partnerID, Name: "shelter-sync", WebhookURL: url}, nil)

		svc := NewPartnerService(mockRepo)
		name := "shelter-sync"
		_, err := svc.UpdatePartner(context.Background(), partnerID, repository.PartnerUpdate{Name: &name, WebhookURL: &url})

		assert.NoError(t, err)
		mockRepo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
	})
}

func TestPartnerService_RotateSecret(t *testing.T) {
	partnerID := uuid.New()

	t.Run("rotates with the default grace period", func(t *testing.T) {
		mockRepo := new(MockPartnerRepository)

		mockRepo.On("FindByID", mock.Anything, partnerID).Return(&model.Partner{ID: partnerID}, nil)
		mockRepo.On("RotateSecret", mock.Anything, partnerID, DefaultSecretGrace).
			Return(&model.Partner{ID: partnerID}, "whsec_rotated", nil)

		svc := NewPartnerService(mockRepo)
		registered, err := svc.RotateSecret(context.Background(), partnerID)

		assert.NoError(t, err)
		assert.Equal(t, "whsec_rotated", registered.Secret)
		mockRepo.AssertExpectations(t)
	})

	t.Run("unknown partner", func(t *testing.T) {
		mockRepo := new(MockPartnerRepository)

		mockRepo.On("FindByID", mock.Anything, partnerID).Return(nil, gorm.ErrRecordNotFound)

		svc := NewPartnerService(mockRepo)
		_, err := svc.RotateSecret(context.Background(), partnerID)

		assert.ErrorIs(t, err, apperrors.ErrPartnerNotFound)
	})
}

func TestPartnerService_Deactivate(t *testing.T) {
	partnerID := uuid.New()
	mockRepo := new(MockPartnerRepository)

	mockRepo.On("FindByID", mock.Anything, partnerID).Return(&model.Partner{
		ID: partnerID, Status: model.PartnerStatusActive,
	}, nil)
	mockRepo.On("Update", mock.Anything, partnerID, mock.MatchedBy(func(update repository.PartnerUpdate) bool {
		return update.Status != nil && *update.Status == model.PartnerStatusInactive
	})).Return(&model.Partner{ID: partnerID, Status: model.PartnerStatusInactive}, nil)

	svc := NewPartnerService(mockRepo)
	err := svc.Deactivate(context.Background(), partnerID)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestPartnerService_VerifySecret(t *testing.T) {
	partnerID := uuid.New()

	t.Run("active partner delegates to the repository", func(t *testing.T) {
		mockRepo := new(MockPartnerRepository)

		mockRepo.On("FindByID", mock.Anything, partnerID).Return(&model.Partner{
			ID: partnerID, Status: model.PartnerStatusActive,
		}, nil)
		mockRepo.On("VerifySecret", mock.Anything, partnerID, "whsec_candidate").Return(true, nil)

		svc := NewPartnerService(mockRepo)
		ok, err := svc.VerifySecret(context.Background(), partnerID, "whsec_candidate")

		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("inactive partner never verifies", func(t *testing.T) {
		mockRepo := new(MockPartnerRepository)

		mockRepo.On("FindByID", mock.Anything, partnerID).Return(&model.Partner{
			ID: partnerID, Status: model.PartnerStatusInactive,
		}, nil)

		svc := NewPartnerService(mockRepo)
		ok, err := svc.VerifySecret(context.Background(), partnerID, "whsec_candidate")

		assert.NoError(t, err)
		assert.False(t, ok)
		mockRepo.AssertNotCalled(t, "VerifySecret", mock.Anything, mock.Anything, mock.Anything)
	})
}
