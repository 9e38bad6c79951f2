package flows

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/marketAuth/internal/logger"
	"github.com/MrEthical07/marketAuth/throttle"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        LoginUserRecord
}

// LoginUserRecord is a flow-local user model.
type LoginUserRecord struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess            int
	LoginFailure            int
	LoginLocked             int
	LockoutTriggered        int
	LoginMissingCredentials int
	ThrottleStoreError      int
	ThrottleFailOpen        int
	PasswordUpgraded        int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginLocked      string
	LockoutTriggered string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady      error
	MissingCredentials  error
	InvalidCredentials  error
	InvalidIdentity     error
	ThrottleUnavailable error
	UserNotFound        error
	// Locked builds the host's lockout error.
	Locked func(retryAfterSeconds int) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	FailOpen               bool
	PasswordUpgradeOnLogin bool

	ClientIPFromContext  func(context.Context) string
	RequestIDFromContext func(context.Context) string

	CheckAllowed   func(context.Context, string) (throttle.Decision, error)
	RecordFailure  func(context.Context, string) (throttle.FailureResult, error)
	ResetOnSuccess func(context.Context, string) error

	GetUserByIdentifier func(context.Context, string) (LoginUserRecord, error)
	UpdatePasswordHash  func(context.Context, string, string) error

	VerifyPassword       func(string, string) (bool, error)
	VerifyDummy          func(string)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	IssueAccessToken     func(LoginUserRecord) (string, time.Time, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, identity string, err error, metadata func() map[string]string)
	Logger    *zap.Logger

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.RequestIDFromContext == nil {
		deps.RequestIDFromContext = func(context.Context) string { return "" }
	}
	if deps.VerifyDummy == nil {
		deps.VerifyDummy = func(string) {}
	}
}

// RunLogin checks the throttle, verifies the password, and records exactly
// one outcome against the identity. identity must already be normalized.
func RunLogin(ctx context.Context, identity, password string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)

	if deps.CheckAllowed == nil ||
		deps.RecordFailure == nil ||
		deps.ResetOnSuccess == nil ||
		deps.GetUserByIdentifier == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueAccessToken == nil ||
		deps.Errors.Locked == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if identity == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginMissingCredentials)
		return nil, deps.Errors.MissingCredentials
	}

	log := deps.Logger.With(
		zap.String("identity", logger.MaskEmail(identity)),
		zap.String("request_id", deps.RequestIDFromContext(ctx)),
	)

	decision, err := deps.CheckAllowed(ctx, identity)
	if err != nil {
		if errors.Is(err, throttle.ErrInvalidIdentity) {
			return nil, deps.Errors.InvalidIdentity
		}
		if failErr := throttleFailure(deps, log, "check", err); failErr != nil {
			return nil, failErr
		}
		decision = throttle.Decision{Allowed: true}
	}

	if !decision.Allowed {
		deps.MetricInc(deps.Metrics.LoginLocked)
		lockedErr := deps.Errors.Locked(decision.RetryAfterSeconds)
		deps.EmitAudit(ctx, deps.Events.LoginLocked, false, "", identity, lockedErr, func() map[string]string {
			return map[string]string{
				"retry_after_seconds": itoa(decision.RetryAfterSeconds),
			}
		})
		return nil, lockedErr
	}

	user, err := deps.GetUserByIdentifier(ctx, identity)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			log.Error("user lookup failed", zap.Error(err))
			return nil, err
		}
		// Same work and same throttle path as a wrong password.
		deps.VerifyDummy(password)
		return nil, loginFailure(ctx, identity, "", "unknown_identity", deps, log)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		log.Warn("password verification error", zap.String("user_id", user.UserID), zap.Error(err))
	}
	if err != nil || !ok {
		return nil, loginFailure(ctx, identity, user.UserID, "password_mismatch", deps, log)
	}

	if err := deps.ResetOnSuccess(ctx, identity); err != nil {
		if failErr := throttleFailure(deps, log, "reset", err); failErr != nil {
			return nil, failErr
		}
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		upgradePassword(ctx, user, password, deps, log)
	}

	token, expiresAt, err := deps.IssueAccessToken(user)
	if err != nil {
		log.Error("access token issue failed", zap.String("user_id", user.UserID), zap.Error(err))
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, identity, nil, nil)

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// loginFailure records the failure and always returns the generic
// invalid-credentials error unless the store is down and the flow fails
// closed.
func loginFailure(ctx context.Context, identity, userID, reason string, deps LoginDeps, log *zap.Logger) error {
	res, err := deps.RecordFailure(ctx, identity)
	if err != nil {
		if failErr := throttleFailure(deps, log, "record", err); failErr != nil {
			return failErr
		}
	} else if res.LockedNow {
		deps.MetricInc(deps.Metrics.LockoutTriggered)
		deps.EmitAudit(ctx, deps.Events.LockoutTriggered, false, userID, identity, nil, func() map[string]string {
			return map[string]string{
				"failure_count": itoa(res.Record.FailureCount),
				"locked_until":  res.Record.LockedUntil.UTC().Format(time.RFC3339),
			}
		})
		log.Info("identity locked", zap.Int("failure_count", res.Record.FailureCount), zap.Time("locked_until", res.Record.LockedUntil))
	}

	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, identity, deps.Errors.InvalidCredentials, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return deps.Errors.InvalidCredentials
}

// throttleFailure applies the fail-open policy to a store error. A nil
// return means the login continues.
func throttleFailure(deps LoginDeps, log *zap.Logger, op string, err error) error {
	deps.MetricInc(deps.Metrics.ThrottleStoreError)
	if !deps.FailOpen {
		log.Error("login throttle unavailable, refusing login", zap.String("op", op), zap.Error(err))
		return deps.Errors.ThrottleUnavailable
	}
	deps.MetricInc(deps.Metrics.ThrottleFailOpen)
	log.Warn("login throttle unavailable, failing open", zap.String("op", op), zap.Error(err))
	return nil
}

func upgradePassword(ctx context.Context, user LoginUserRecord, password string, deps LoginDeps, log *zap.Logger) {
	needs, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := deps.HashPassword(password)
	if err != nil {
		// Legacy passwords may be shorter than the current minimum.
		log.Warn("password hash upgrade generation failed", zap.String("user_id", user.UserID), zap.Error(err))
		return
	}
	if err := deps.UpdatePasswordHash(ctx, user.UserID, newHash); err != nil {
		log.Warn("password hash upgrade update failed", zap.String("user_id", user.UserID), zap.Error(err))
		return
	}
	deps.MetricInc(deps.Metrics.PasswordUpgraded)
}
