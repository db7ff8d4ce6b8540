package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials carries a single password-grant login attempt. DeviceID is
// optional; when set it overrides the device identity stored on the client
// so the account service can recognize a previously trusted device and skip
// future two-factor challenges.
type Credentials struct {
	Email    string
	Password string
	DeviceID string
}

type TokenSet struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	AccountID        string
	InAppID          string
	ClientID         string
	DisplayName      string
}

func (t TokenSet) Clone() TokenSet {
	return TokenSet{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		TokenType:        t.TokenType,
		ExpiresAt:        t.ExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
		AccountID:        t.AccountID,
		InAppID:          t.InAppID,
		ClientID:         t.ClientID,
		DisplayName:      t.DisplayName,
	}
}

// Expired reports whether the access token is unusable at the given instant,
// allowing for clock skew between client and service.
func (t TokenSet) Expired(now time.Time, skew time.Duration) bool {
	if t.AccessToken == "" {
		return true
	}

	if t.ExpiresAt.IsZero() {
		return false
	}

	return !now.Before(t.ExpiresAt.Add(-skew))
}

// AccountInfo is the public-account-info payload for a single account.
type AccountInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	LastName    string `json:"lastName"`
	Country     string `json:"country"`
}

// NewDeviceID returns a fresh 32-character lowercase hex device fingerprint.
func NewDeviceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
