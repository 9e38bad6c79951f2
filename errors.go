package marketAuth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	// The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingCredentials is returned when email or password is empty.
	ErrMissingCredentials = errors.New("email and password required")
	// ErrLoginLocked is matched by every *LockedError.
	ErrLoginLocked = errors.New("too many attempts")
	// ErrThrottleUnavailable is returned when the attempt store fails and the
	// engine is configured to fail closed.
	ErrThrottleUnavailable = errors.New("login throttle backend unavailable")
	// ErrUserNotFound is returned by a UserProvider for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned by Signup for an email that is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrSignupInvalid is returned by Signup for missing or malformed fields.
	ErrSignupInvalid = errors.New("invalid signup request")
	// ErrSignupInvalidEmail is returned by Signup for an unparseable email.
	ErrSignupInvalidEmail = errors.New("invalid email")
	// ErrSignupRateLimited is returned when signup throttling denies the request.
	ErrSignupRateLimited = errors.New("signup rate limited")
	// ErrSignupUnavailable is returned when the signup throttle backend fails.
	ErrSignupUnavailable = errors.New("signup backend unavailable")
	// ErrSignupDisabled is returned when Signup is disabled in Config.
	ErrSignupDisabled = errors.New("signup disabled")
	// ErrPasswordPolicy is returned for passwords shorter than the configured minimum.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrTokenInvalid is returned for missing, malformed, expired, or forged tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrInvalidIdentity is returned for identities that cannot be normalized.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrEngineNotReady is returned when an Engine was not built through Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrProviderDuplicateIdentifier is returned by a UserProvider when CreateUser
	// hits an existing email.
	ErrProviderDuplicateIdentifier = errors.New("provider duplicate identifier")
)

// LockedError reports a login refused because the identity is locked out.
type LockedError struct {
	RetryAfterSeconds int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many attempts, try again in %d seconds", e.RetryAfterSeconds)
}

// Unwrap lets errors.Is(err, ErrLoginLocked) match.
func (e *LockedError) Unwrap() error {
	return ErrLoginLocked
}

// RetryAfter returns the remaining lockout as a duration.
func (e *LockedError) RetryAfter() time.Duration {
	return time.Duration(e.RetryAfterSeconds) * time.Second
}

// SignupLimitedError reports a signup refused by the signup limiter.
type SignupLimitedError struct {
	RetryAfter time.Duration
}

func (e *SignupLimitedError) Error() string {
	return fmt.Sprintf("too many signup attempts, try again in %d seconds", e.RetryAfterSeconds())
}

// Unwrap lets errors.Is(err, ErrSignupRateLimited) match.
func (e *SignupLimitedError) Unwrap() error {
	return ErrSignupRateLimited
}

// RetryAfterSeconds rounds the remaining window up to whole seconds.
func (e *SignupLimitedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
