package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ServiceTokenExpiry is the duration for which service tokens are valid.
const ServiceTokenExpiry = 1 * time.Hour

// ErrInvalidAPIKey is returned when the presented admin API key is wrong.
var ErrInvalidAPIKey = errors.New("invalid API key")

// Claims represents JWT claims for service tokens.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService issues and validates admin service tokens. Callers exchange the
// configured admin API key for a short-lived token, then use that token on
// the partner and payment administration endpoints.
type JWTService struct {
	secret      []byte
	adminAPIKey string
}

// NewJWTService creates a new JWT service with the given signing secret and
// admin API key.
func NewJWTService(secret, adminAPIKey string) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		adminAPIKey: adminAPIKey,
	}
}

// ExchangeAPIKey validates an admin API key and issues a service token.
func (s *JWTService) ExchangeAPIKey(apiKey, subject string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.adminAPIKey)) != 1 {
		return "", ErrInvalidAPIKey
	}
	return s.GenerateServiceToken(subject)
}

// GenerateServiceToken generates a new admin service token.
func (s *JWTService) GenerateServiceToken(subject string) (string, error) {
	claims := &Claims{
		Subject: subject,
		Role:    "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ServiceTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
