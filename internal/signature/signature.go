// Package signature implements the HMAC-SHA256 scheme used to sign outbound
// partner webhooks and verify inbound ones. Headers use the form
// "t=<unix>,v1=<hex>" with the digest computed over "<ts>.<payload>" so a
// signature cannot be replayed against a different payload or time.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the permitted clock skew when verifying headers.
const DefaultTolerance = 300 * time.Second

var (
	// ErrInvalidFormat is returned when a signature header is missing the
	// t or v1 component.
	ErrInvalidFormat = errors.New("invalid signature header format")
	// ErrTimestampOutOfTolerance is returned when the signed timestamp is
	// too far from the current time.
	ErrTimestampOutOfTolerance = errors.New("timestamp out of tolerance")
	// ErrSignatureMismatch is returned when the digest does not match.
	ErrSignatureMismatch = errors.New("invalid signature")
)

// Sign computes the lowercase hex HMAC-SHA256 digest of payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// MakeHeader builds a "t=<unix>,v1=<hex>" header for payload. A zero
// timestamp means now.
func MakeHeader(payload []byte, secret string, timestamp int64) string {
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}
	signed := signedPayload(timestamp, payload)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, Sign(signed, secret))
}

// VerifyHeader checks a signature header against payload and secret.
// A non-positive tolerance falls back to DefaultTolerance.
func VerifyHeader(payload []byte, header, secret string, tolerance time.Duration) error {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	parts := parseHeader(header)
	timestampStr, hasTS := parts["t"]
	received, hasSig := parts["v1"]
	if !hasTS || !hasSig || timestampStr == "" || received == "" {
		return ErrInvalidFormat
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	diff := time.Now().Unix() - timestamp
	if diff < 0 {
		diff = -diff
	}
	if time.Duration(diff)*time.Second > tolerance {
		return ErrTimestampOutOfTolerance
	}

	expected := Sign(signedPayload(timestamp, payload), secret)
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyWithRotation verifies against the current secret and, on mismatch,
// the previous secret. This keeps a partner's in-flight webhooks valid during
// the rotation grace window. Format and timestamp errors are not retried with
// the previous secret since they do not depend on the key.
func VerifyWithRotation(payload []byte, header, currentSecret string, previousSecret *string, tolerance time.Duration) error {
	err := VerifyHeader(payload, header, currentSecret, tolerance)
	if err == nil {
		return nil
	}
	if previousSecret != nil && *previousSecret != "" && errors.Is(err, ErrSignatureMismatch) {
		if prevErr := VerifyHeader(payload, header, *previousSecret, tolerance); prevErr == nil {
			return nil
		}
	}
	return err
}

// SecretEqual compares two secrets in constant time.
func SecretEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

func signedPayload(timestamp int64, payload []byte) []byte {
	prefix := []byte(strconv.FormatInt(timestamp, 10) + ".")
	return append(prefix, payload...)
}

func parseHeader(header string) map[string]string {
	parts := make(map[string]string)
	for _, item := range strings.Split(header, ",") {
		key, value, found := strings.Cut(item, "=")
		if !found {
			continue
		}
		parts[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return parts
}
