package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSignupRateLimited      = errors.New("signup rate limited")
	ErrSignupRedisUnavailable = errors.New("signup redis unavailable")
)

type SignupConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// SignupLimiter counts signup attempts per email and per client IP in
// fixed windows of Cooldown.
type SignupLimiter struct {
	redis  redis.UniversalClient
	config SignupConfig
}

// SignupLimitError is returned when a window is exhausted.
type SignupLimitError struct {
	RetryAfter time.Duration
}

func (e *SignupLimitError) Error() string {
	return fmt.Sprintf("signup rate limited, retry after %s", e.RetryAfter)
}

func (e *SignupLimitError) Unwrap() error {
	return ErrSignupRateLimited
}

func NewSignupLimiter(redisClient redis.UniversalClient, cfg SignupConfig) *SignupLimiter {
	return &SignupLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enforce counts one attempt against each enabled window.
func (l *SignupLimiter) Enforce(ctx context.Context, identifier, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle && identifier != "" {
		if err := l.enforceKey(ctx, signupIdentifierKey(identifier)); err != nil {
			return err
		}
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceKey(ctx, signupIPKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

func (l *SignupLimiter) enforceKey(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignupRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrSignupRedisUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		ttl, err := l.redis.TTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			ttl = l.config.Cooldown
		}
		return &SignupLimitError{RetryAfter: ttl}
	}

	return nil
}

func signupIdentifierKey(identifier string) string {
	return "sul:" + identifier
}

func signupIPKey(ip string) string {
	return "sulip:" + ip
}
