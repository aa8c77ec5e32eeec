package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJWTService_ExchangeAPIKey(t *testing.T) {
	svc := NewJWTService("test-signing-secret", "admin-key")

	t.Run("valid key yields a verifiable token", func(t *testing.T) {
		token, err := svc.ExchangeAPIKey("admin-key", "ops")
		assert.NoError(t, err)
		assert.NotEmpty(t, token)

		claims, err := svc.ValidateToken(token)
		assert.NoError(t, err)
		assert.Equal(t, "ops", claims.Subject)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		_, err := svc.ExchangeAPIKey("not-the-key", "ops")
		assert.ErrorIs(t, err, ErrInvalidAPIKey)
	})
}

func TestJWTService_ValidateToken(t *testing.T) {
	svc := NewJWTService("test-signing-secret", "admin-key")

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := NewJWTService("different-secret", "admin-key")
		token, err := other.GenerateServiceToken("ops")
		assert.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})
}
