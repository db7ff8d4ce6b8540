package auth

import (
	"errors"
	"fmt"
	"strings"
)

// CodeTwoFactorRequired is the service error code signalling that the login
// must be completed with a one-time code.
const CodeTwoFactorRequired = "errors.com.epicgames.common.two_factor_authentication.required"

var (
	// ErrNoPendingChallenge is returned by TwoFactor when no login has left a
	// challenge behind. Local precondition failure; no request is sent.
	ErrNoPendingChallenge = errors.New("auth: no pending two-factor challenge")

	// ErrNotAuthenticated is returned when a call requiring a session is made
	// before login completes.
	ErrNotAuthenticated = errors.New("auth: not authenticated")

	ErrNoToken = errors.New("auth: no token in store")
)

// ServiceError is a structured rejection from the account service.
type ServiceError struct {
	StatusCode  int
	Code        string
	Message     string
	NumericCode int
	Raw         []byte
}

func (e *ServiceError) Error() string {
	parts := make([]string, 0, 2)
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if len(parts) == 0 {
		return fmt.Sprintf("auth: service error (status=%d)", e.StatusCode)
	}

	return fmt.Sprintf("auth: service error (status=%d): %s", e.StatusCode, strings.Join(parts, " | "))
}

// Fatal reports whether the error means the underlying grant is dead and
// retrying with the same inputs can never succeed.
func (e *ServiceError) Fatal() bool {
	if e == nil {
		return false
	}

	return strings.Contains(strings.ToLower(e.Code), "invalid_grant")
}

// TwoFactorError is the two-factor-required rejection. Challenge is the
// opaque continuation token that must be replayed on the otp grant.
type TwoFactorError struct {
	ServiceError
	Challenge string
}

func (e *TwoFactorError) Error() string {
	return fmt.Sprintf("auth: two-factor authentication required (status=%d)", e.StatusCode)
}

// TwoFactorChallenge extracts the challenge token if err is a
// two-factor-required rejection.
func TwoFactorChallenge(err error) (string, bool) {
	var tfe *TwoFactorError
	if !errors.As(err, &tfe) {
		return "", false
	}

	return tfe.Challenge, true
}

type fatalMarker interface {
	Fatal() bool
}

func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var marker fatalMarker
	if !errors.As(err, &marker) {
		return false
	}

	return marker.Fatal()
}
