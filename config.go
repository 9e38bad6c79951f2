package marketAuth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"

	"github.com/MrEthical07/marketAuth/throttle"
)

// Config is the full engine configuration. Build it from DefaultConfig or
// QuickLockoutConfig and override fields before passing it to
// Builder.WithConfig; the engine keeps its own copy.
type Config struct {
	Throttle ThrottleConfig
	JWT      JWTConfig
	Password PasswordConfig
	Signup   SignupConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig controls the login lockout policy.
type ThrottleConfig struct {
	Threshold       int
	LockoutDuration time.Duration
	// FailOpen lets logins proceed when the attempt store is unreachable.
	// The default (false) refuses them.
	FailOpen bool
	// RedisPrefix namespaces attempt records when the Redis store is used.
	RedisPrefix string
	// AllowInMemory permits a process-local store when neither an attempt
	// store nor Redis is supplied.
	AllowInMemory bool
}

// Policy converts the config into a throttle.Policy.
func (c ThrottleConfig) Policy() throttle.Policy {
	return throttle.Policy{Threshold: c.Threshold, LockoutDuration: c.LockoutDuration}
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access token issuance.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls argon2id parameters and the signup length policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
SIGNUP CONFIG
====================================
*/

// SignupConfig controls account creation.
type SignupConfig struct {
	Enabled                  bool
	MinUsernameLength        int
	MaxUsernameLength        int
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
PRESETS
====================================
*/

// DefaultConfig locks an identity for five minutes after five failures.
// The caller must set JWT.PrivateKey (the HS256 secret).
func DefaultConfig() Config {
	return Config{
		Throttle: ThrottleConfig{
			Threshold:       throttle.PolicyStandard.Threshold,
			LockoutDuration: throttle.PolicyStandard.LockoutDuration,
			FailOpen:        false,
			RedisPrefix:     "lat:",
			AllowInMemory:   false,
		},
		JWT: JWTConfig{
			AccessTTL:     24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "marketauth",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      6,
			UpgradeOnLogin: true,
		},
		Signup: SignupConfig{
			Enabled:                  true,
			MinUsernameLength:        2,
			MaxUsernameLength:        64,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			MaxAttempts:              5,
			Cooldown:                 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// QuickLockoutConfig locks an identity for one minute after three failures.
func QuickLockoutConfig() Config {
	cfg := DefaultConfig()
	cfg.Throttle.Threshold = throttle.PolicyQuick.Threshold
	cfg.Throttle.LockoutDuration = throttle.PolicyQuick.LockoutDuration
	return cfg
}

// GenerateEd25519Keys returns a fresh key pair for JWTConfig.
func GenerateEd25519Keys() (privateKey, publicKey []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Throttle
	if err := c.Throttle.Policy().Validate(); err != nil {
		return err
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Signup
	if c.Signup.Enabled {
		if c.Signup.MinUsernameLength < 1 || c.Signup.MaxUsernameLength < c.Signup.MinUsernameLength {
			return errors.New("Signup username length bounds are invalid")
		}
		if c.Signup.EnableIPThrottle || c.Signup.EnableIdentifierThrottle {
			if c.Signup.MaxAttempts <= 0 {
				return errors.New("Signup MaxAttempts must be > 0 when throttling is enabled")
			}
			if c.Signup.Cooldown <= 0 {
				return errors.New("Signup Cooldown must be > 0 when throttling is enabled")
			}
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
