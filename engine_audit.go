package marketAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/marketAuth/internal/logger"
)

const (
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventLoginLocked       = "login_locked"
	auditEventLockoutTriggered  = "lockout_triggered"
	auditEventIdentityUnlocked  = "identity_unlocked"
	auditEventSignupSuccess     = "signup_success"
	auditEventSignupFailure     = "signup_failure"
	auditEventSignupDuplicate   = "signup_duplicate"
	auditEventSignupRateLimited = "signup_rate_limited"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrLoginLocked        AuditErrorCode = "login_locked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// emitAudit matches the flows' EmitAudit signature. identity is masked here
// so raw emails never reach a sink.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	identity string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Identity:  logger.MaskEmail(identity),
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginLocked):
		return auditErrLoginLocked
	case errors.Is(err, ErrSignupRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrSignupInvalid),
		errors.Is(err, ErrSignupInvalidEmail),
		errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrInvalidIdentity):
		return auditErrInvalidInput
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrThrottleUnavailable),
		errors.Is(err, ErrSignupUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
