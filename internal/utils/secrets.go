package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const referenceTimeLayout = "20060102150405"

// GenerateSecret generates a cryptographically secure random secret
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateJWTSecret generates a 256-bit signing secret
func GenerateJWTSecret() (string, error) {
	secret, err := GenerateSecret(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	return secret, nil
}

// GenerateTicketNumber returns TKT-<yyyymmddHHMMSS>-<12 hex chars>
func GenerateTicketNumber(now time.Time) (string, error) {
	suffix, err := GenerateSecret(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TKT-%s-%s", now.Format(referenceTimeLayout), suffix), nil
}

// GenerateQRCode returns QR-<yyyymmddHHMMSS>-<16 hex chars>
func GenerateQRCode(now time.Time) (string, error) {
	suffix, err := GenerateSecret(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("QR-%s-%s", now.Format(referenceTimeLayout), suffix), nil
}
