package certificates

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"vmxio.com/skillforge/internal/models"
)

// NewCredentialID returns SF-<unix millis>-<8 uppercase hex chars>.
func NewCredentialID(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("credential entropy: %w", err)
	}
	return fmt.Sprintf("SF-%d-%s", now.UnixMilli(), strings.ToUpper(hex.EncodeToString(b))), nil
}

// IsValid reports whether a certificate still proves anything at now.
func IsValid(status string, expiry, now time.Time) bool {
	return status == models.CertificateActive && now.Before(expiry)
}
