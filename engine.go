package marketAuth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/internal/flows"
	"github.com/MrEthical07/marketAuth/internal/limiters"
	"github.com/MrEthical07/marketAuth/internal/logger"
	internalmetrics "github.com/MrEthical07/marketAuth/internal/metrics"
	"github.com/MrEthical07/marketAuth/jwt"
	"github.com/MrEthical07/marketAuth/password"
	"github.com/MrEthical07/marketAuth/throttle"
)

// Engine runs signup, login and token validation for the marketplace. Build
// one with New().…Build(); it is safe for concurrent use.
type Engine struct {
	config        Config
	throttle      *throttle.Throttle
	signupLimiter *limiters.SignupLimiter
	audit         *internalaudit.Dispatcher
	metrics       *internalmetrics.Metrics
	passwordHash  *password.Argon2
	jwtManager    *jwt.Manager
	userProvider  UserProvider
	logger        *zap.Logger
	now           func() time.Time
	flows         flows.Deps
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports events discarded because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ThrottlePolicy returns the lockout policy in force.
func (e *Engine) ThrottlePolicy() throttle.Policy {
	return e.throttle.Policy()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login authenticates email and password.
//
// A locked identity yields *LockedError (errors.Is ErrLoginLocked). Unknown
// email and wrong password both yield ErrInvalidCredentials and both count as
// a failure. When the attempt store fails the result is
// ErrThrottleUnavailable unless Throttle.FailOpen is set.
func (e *Engine) Login(ctx context.Context, email, pass string) (*AuthResult, error) {
	if e == nil || e.throttle == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricLoginLatency, time.Since(start))
		}
	}()

	res, err := flows.RunLogin(ctx, throttle.NormalizeIdentity(email), pass, e.flows.Login)
	if err != nil {
		return nil, err
	}
	return authResult(res), nil
}

// Signup creates an account and logs it in.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	if e == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	res, err := flows.RunSignup(ctx, flows.SignupRequest{
		Username: strings.TrimSpace(req.Username),
		Email:    throttle.NormalizeIdentity(req.Email),
		Password: req.Password,
	}, e.flows.Signup)
	if err != nil {
		return nil, err
	}
	return authResult(res), nil
}

// ValidateToken verifies a bearer token and returns its claims.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		e.metricInc(MetricTokenInvalid)
		e.logger.Debug("token rejected", zap.String("request_id", requestIDFromContext(ctx)), zap.Error(err))
		return nil, ErrTokenInvalid
	}

	out := &Claims{
		UserID:   claims.UID,
		Email:    claims.Email,
		Username: claims.Name,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// CurrentUser loads the public profile for userID.
func (e *Engine) CurrentUser(ctx context.Context, userID string) (PublicUser, error) {
	if e == nil || e.userProvider == nil {
		return PublicUser{}, ErrEngineNotReady
	}
	rec, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return PublicUser{}, err
	}
	return publicUser(rec), nil
}

// LoginStatus reports whether email may attempt a login right now. It does
// not record anything.
func (e *Engine) LoginStatus(ctx context.Context, email string) (throttle.Decision, error) {
	if e == nil || e.throttle == nil {
		return throttle.Decision{}, ErrEngineNotReady
	}
	decision, err := e.throttle.CheckAllowed(ctx, throttle.NormalizeIdentity(email))
	return decision, e.mapThrottleError(err)
}

// UnlockIdentity clears the attempt record for email, ending any lockout.
func (e *Engine) UnlockIdentity(ctx context.Context, email string) error {
	if e == nil || e.throttle == nil {
		return ErrEngineNotReady
	}
	identity := throttle.NormalizeIdentity(email)
	if err := e.throttle.ResetOnSuccess(ctx, identity); err != nil {
		return e.mapThrottleError(err)
	}
	e.metricInc(MetricIdentityUnlocked)
	e.emitAudit(ctx, auditEventIdentityUnlocked, true, "", identity, nil, nil)
	e.logger.Info("identity unlocked", zap.String("identity", logger.MaskEmail(identity)))
	return nil
}

func (e *Engine) mapThrottleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, throttle.ErrInvalidIdentity):
		return ErrInvalidIdentity
	case errors.Is(err, throttle.ErrStorage):
		e.metricInc(MetricThrottleStoreError)
		e.logger.Error("login throttle unavailable", zap.Error(err))
		return ErrThrottleUnavailable
	default:
		return err
	}
}

func authResult(res *flows.LoginResult) *AuthResult {
	return &AuthResult{
		Token:     res.AccessToken,
		ExpiresAt: res.ExpiresAt,
		User: PublicUser{
			ID:       res.User.UserID,
			Username: res.User.Username,
			Email:    res.User.Email,
		},
	}
}

func (e *Engine) issueAccessToken(u flows.LoginUserRecord) (string, time.Time, error) {
	return e.jwtManager.CreateAccess(u.UserID, u.Email, u.Username)
}

func toLoginUser(rec UserRecord) flows.LoginUserRecord {
	return flows.LoginUserRecord{
		UserID:       rec.UserID,
		Username:     rec.Username,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
	}
}

func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Login: flows.LoginDeps{
			FailOpen:               e.config.Throttle.FailOpen,
			PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
			ClientIPFromContext:    clientIPFromContext,
			RequestIDFromContext:   requestIDFromContext,
			CheckAllowed:           e.throttle.CheckAllowed,
			RecordFailure:          e.throttle.RecordFailure,
			ResetOnSuccess:         e.throttle.ResetOnSuccess,
			GetUserByIdentifier: func(ctx context.Context, identity string) (flows.LoginUserRecord, error) {
				rec, err := e.userProvider.GetUserByIdentifier(ctx, identity)
				if err != nil {
					return flows.LoginUserRecord{}, err
				}
				return toLoginUser(rec), nil
			},
			UpdatePasswordHash:   e.userProvider.UpdatePasswordHash,
			VerifyPassword:       e.passwordHash.Verify,
			VerifyDummy:          e.passwordHash.VerifyDummy,
			PasswordNeedsUpgrade: e.passwordHash.NeedsUpgrade,
			HashPassword:         e.passwordHash.Hash,
			IssueAccessToken:     e.issueAccessToken,
			MetricInc:            func(id int) { e.metricInc(MetricID(id)) },
			EmitAudit:            e.emitAudit,
			Logger:               e.logger.Named("login"),
			Metrics: flows.LoginMetrics{
				LoginSuccess:            int(MetricLoginSuccess),
				LoginFailure:            int(MetricLoginFailure),
				LoginLocked:             int(MetricLoginLocked),
				LockoutTriggered:        int(MetricLockoutTriggered),
				LoginMissingCredentials: int(MetricLoginMissingCredentials),
				ThrottleStoreError:      int(MetricThrottleStoreError),
				ThrottleFailOpen:        int(MetricThrottleFailOpen),
				PasswordUpgraded:        int(MetricPasswordUpgraded),
			},
			Events: flows.LoginEvents{
				LoginSuccess:     auditEventLoginSuccess,
				LoginFailure:     auditEventLoginFailure,
				LoginLocked:      auditEventLoginLocked,
				LockoutTriggered: auditEventLockoutTriggered,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:      ErrEngineNotReady,
				MissingCredentials:  ErrMissingCredentials,
				InvalidCredentials:  ErrInvalidCredentials,
				InvalidIdentity:     ErrInvalidIdentity,
				ThrottleUnavailable: ErrThrottleUnavailable,
				UserNotFound:        ErrUserNotFound,
				Locked: func(retryAfterSeconds int) error {
					return &LockedError{RetryAfterSeconds: retryAfterSeconds}
				},
			},
		},
		Signup: flows.SignupDeps{
			Enabled:             e.config.Signup.Enabled,
			MinUsernameLength:   e.config.Signup.MinUsernameLength,
			MaxUsernameLength:   e.config.Signup.MaxUsernameLength,
			ClientIPFromContext: clientIPFromContext,
			EnforceLimiter:      e.enforceSignupLimiter,
			IsRateLimited:       func(err error) bool { return errors.Is(err, ErrSignupRateLimited) },
			HashPassword:        e.passwordHash.Hash,
			CreateUser: func(ctx context.Context, in flows.SignupCreateUserInput) (flows.LoginUserRecord, error) {
				rec, err := e.userProvider.CreateUser(ctx, CreateUserInput{
					Username:     in.Username,
					Email:        in.Email,
					PasswordHash: in.PasswordHash,
				})
				if err != nil {
					return flows.LoginUserRecord{}, err
				}
				return toLoginUser(rec), nil
			},
			IssueAccessToken: e.issueAccessToken,
			MetricInc:        func(id int) { e.metricInc(MetricID(id)) },
			EmitAudit:        e.emitAudit,
			Logger:           e.logger.Named("signup"),
			Metrics: flows.SignupMetrics{
				SignupSuccess:     int(MetricSignupSuccess),
				SignupDuplicate:   int(MetricSignupDuplicate),
				SignupRateLimited: int(MetricSignupRateLimited),
				SignupRejected:    int(MetricSignupRejected),
			},
			Events: flows.SignupEvents{
				SignupSuccess:     auditEventSignupSuccess,
				SignupFailure:     auditEventSignupFailure,
				SignupDuplicate:   auditEventSignupDuplicate,
				SignupRateLimited: auditEventSignupRateLimited,
			},
			Errors: flows.SignupErrors{
				EngineNotReady:              ErrEngineNotReady,
				Disabled:                    ErrSignupDisabled,
				Invalid:                     ErrSignupInvalid,
				InvalidEmail:                ErrSignupInvalidEmail,
				PasswordPolicy:              ErrPasswordPolicy,
				AccountExists:               ErrAccountExists,
				ProviderDuplicateIdentifier: ErrProviderDuplicateIdentifier,
			},
		},
	}
}

func (e *Engine) enforceSignupLimiter(ctx context.Context, identifier, ip string) error {
	if e.signupLimiter == nil {
		return nil
	}
	err := e.signupLimiter.Enforce(ctx, identifier, ip)
	if err == nil {
		return nil
	}
	var limitErr *limiters.SignupLimitError
	if errors.As(err, &limitErr) {
		return &SignupLimitedError{RetryAfter: limitErr.RetryAfter}
	}
	if errors.Is(err, limiters.ErrSignupRedisUnavailable) {
		e.logger.Error("signup limiter unavailable", zap.Error(err))
		return ErrSignupUnavailable
	}
	return err
}
