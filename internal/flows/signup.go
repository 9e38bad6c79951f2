package flows

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/MrEthical07/marketAuth/internal/logger"
)

// SignupRequest is already trimmed; Email is normalized.
type SignupRequest struct {
	Username string
	Email    string
	Password string
}

// SignupCreateUserInput mirrors the host's CreateUserInput.
type SignupCreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
}

type SignupMetrics struct {
	SignupSuccess     int
	SignupDuplicate   int
	SignupRateLimited int
	SignupRejected    int
}

type SignupEvents struct {
	SignupSuccess     string
	SignupFailure     string
	SignupDuplicate   string
	SignupRateLimited string
}

type SignupErrors struct {
	EngineNotReady              error
	Disabled                    error
	Invalid                     error
	InvalidEmail                error
	PasswordPolicy              error
	AccountExists               error
	ProviderDuplicateIdentifier error
}

// SignupDeps captures signup dependencies.
type SignupDeps struct {
	Enabled           bool
	MinUsernameLength int
	MaxUsernameLength int

	ClientIPFromContext func(context.Context) string

	// EnforceLimiter returns a host error (already mapped) when the request
	// must be refused.
	EnforceLimiter func(context.Context, string, string) error

	HashPassword     func(string) (string, error)
	CreateUser       func(context.Context, SignupCreateUserInput) (LoginUserRecord, error)
	IssueAccessToken func(LoginUserRecord) (string, time.Time, error)

	// IsRateLimited classifies EnforceLimiter errors for metrics.
	IsRateLimited func(error) bool

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, identity string, err error, metadata func() map[string]string)
	Logger    *zap.Logger

	Metrics SignupMetrics
	Events  SignupEvents
	Errors  SignupErrors
}

func normalizeSignupDeps(deps *SignupDeps) {
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
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
}

// RunSignup validates the request, enforces the signup limiter, stores the
// account and issues a token so the new user is logged in.
func RunSignup(ctx context.Context, req SignupRequest, deps SignupDeps) (*LoginResult, error) {
	normalizeSignupDeps(&deps)

	if !deps.Enabled {
		return nil, deps.Errors.Disabled
	}
	if deps.HashPassword == nil || deps.CreateUser == nil || deps.IssueAccessToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	reject := func(err error, reason string) error {
		deps.MetricInc(deps.Metrics.SignupRejected)
		deps.EmitAudit(ctx, deps.Events.SignupFailure, false, "", req.Email, err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return err
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, reject(deps.Errors.Invalid, "missing_fields")
	}
	if n := utf8.RuneCountInString(req.Username); n < deps.MinUsernameLength || n > deps.MaxUsernameLength {
		return nil, reject(deps.Errors.Invalid, "username_length")
	}
	if !validEmail(req.Email) {
		return nil, reject(deps.Errors.InvalidEmail, "invalid_email")
	}

	if deps.EnforceLimiter != nil {
		if err := deps.EnforceLimiter(ctx, req.Email, deps.ClientIPFromContext(ctx)); err != nil {
			if deps.IsRateLimited(err) {
				deps.MetricInc(deps.Metrics.SignupRateLimited)
				deps.EmitAudit(ctx, deps.Events.SignupRateLimited, false, "", req.Email, err, nil)
			}
			return nil, err
		}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, reject(deps.Errors.PasswordPolicy, "password_policy")
	}

	created, err := deps.CreateUser(ctx, SignupCreateUserInput{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if deps.Errors.ProviderDuplicateIdentifier != nil && errors.Is(err, deps.Errors.ProviderDuplicateIdentifier) {
			deps.MetricInc(deps.Metrics.SignupDuplicate)
			deps.EmitAudit(ctx, deps.Events.SignupDuplicate, false, "", req.Email, deps.Errors.AccountExists, nil)
			return nil, deps.Errors.AccountExists
		}
		deps.Logger.Error("create user failed", zap.String("identity", logger.MaskEmail(req.Email)), zap.Error(err))
		return nil, err
	}
	if created.UserID == "" {
		return nil, deps.Errors.EngineNotReady
	}

	token, expiresAt, err := deps.IssueAccessToken(created)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SignupSuccess)
	deps.EmitAudit(ctx, deps.Events.SignupSuccess, true, created.UserID, req.Email, nil, nil)

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        created,
	}, nil
}

// validEmail accepts a bare address with a dotted domain.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}
