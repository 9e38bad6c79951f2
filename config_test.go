package marketAuth

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigPresets(t *testing.T) {
	std := DefaultConfig()
	if std.Throttle.Threshold != 5 || std.Throttle.LockoutDuration != 5*time.Minute {
		t.Fatalf("unexpected standard preset %+v", std.Throttle)
	}
	if std.Throttle.FailOpen {
		t.Fatal("default must fail closed")
	}
	if std.JWT.AccessTTL != 24*time.Hour {
		t.Fatalf("expected 24h tokens, got %v", std.JWT.AccessTTL)
	}

	quick := QuickLockoutConfig()
	if quick.Throttle.Threshold != 3 || quick.Throttle.LockoutDuration != time.Minute {
		t.Fatalf("unexpected quick preset %+v", quick.Throttle)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero threshold":  func(c *Config) { c.Throttle.Threshold = 0 },
		"short lockout":   func(c *Config) { c.Throttle.LockoutDuration = 500 * time.Millisecond },
		"zero ttl":        func(c *Config) { c.JWT.AccessTTL = 0 },
		"big leeway":      func(c *Config) { c.JWT.Leeway = time.Hour },
		"short secret":    func(c *Config) { c.JWT.PrivateKey = []byte("x") },
		"ed25519 no keys": func(c *Config) { c.JWT.SigningMethod = "ed25519" },
		"unknown method":  func(c *Config) { c.JWT.SigningMethod = "rs256" },
		"weak memory":     func(c *Config) { c.Password.Memory = 1024 },
		"zero min length": func(c *Config) { c.Password.MinLength = 0 },
		"username bounds": func(c *Config) { c.Signup.MaxUsernameLength = 1 },
		"signup attempts": func(c *Config) { c.Signup.MaxAttempts = 0 },
		"audit buffer":    func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config must validate: %v", err)
	}
}

func TestEd25519Config(t *testing.T) {
	priv, pub, err := GenerateEd25519Keys()
	if err != nil {
		t.Fatalf("GenerateEd25519Keys: %v", err)
	}
	cfg := testConfig()
	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLockedErrorMessage(t *testing.T) {
	err := error(&LockedError{RetryAfterSeconds: 42})
	if !errors.Is(err, ErrLoginLocked) {
		t.Fatal("LockedError must match ErrLoginLocked")
	}
	if err.Error() != "too many attempts, try again in 42 seconds" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestSignupLimitedErrorRoundsUp(t *testing.T) {
	err := &SignupLimitedError{RetryAfter: 1500 * time.Millisecond}
	if err.RetryAfterSeconds() != 2 {
		t.Fatalf("expected 2, got %d", err.RetryAfterSeconds())
	}
	if !errors.Is(err, ErrSignupRateLimited) {
		t.Fatal("expected ErrSignupRateLimited match")
	}
}
