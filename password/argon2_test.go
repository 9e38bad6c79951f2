package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	hasher, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return hasher
}

func TestHashAndVerify(t *testing.T) {
	hasher := newTestHasher(t, testConfig())

	hash, err := hasher.Hash("textbook-swap-42")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("textbook-swap-42", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("textbook-swap-43", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail")
	}
}

func TestMinimumLengthDefaultsToSix(t *testing.T) {
	hasher := newTestHasher(t, testConfig())

	if got := hasher.MinPasswordBytes(); got != DefaultMinPasswordBytes {
		t.Fatalf("expected default minimum %d, got %d", DefaultMinPasswordBytes, got)
	}
	if _, err := hasher.Hash("12345"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := hasher.Hash(""); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort for empty password, got %v", err)
	}
	if _, err := hasher.Hash("123456"); err != nil {
		t.Fatalf("expected six bytes to be accepted: %v", err)
	}
}

func TestCustomMinimumLength(t *testing.T) {
	cfg := testConfig()
	cfg.MinPasswordBytes = 10
	hasher := newTestHasher(t, cfg)

	if _, err := hasher.Hash("123456789"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestMaximumLength(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPasswordBytes = 64
	hasher := newTestHasher(t, cfg)

	exact := strings.Repeat("b", 64)
	hash, err := hasher.Hash(exact)
	if err != nil {
		t.Fatalf("expected exactly-max password to be accepted: %v", err)
	}
	if _, err := hasher.Hash(exact + "b"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong from Hash, got %v", err)
	}
	if _, err := hasher.Verify(exact+"b", hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong from Verify, got %v", err)
	}
}

func TestDefaultMaximumApplied(t *testing.T) {
	hasher := newTestHasher(t, testConfig())

	if _, err := hasher.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); err == nil {
		t.Fatalf("expected password > %d bytes to be rejected", DefaultMaxPasswordBytes)
	}
	if _, err := hasher.Hash(strings.Repeat("e", DefaultMaxPasswordBytes)); err != nil {
		t.Fatalf("expected password of exactly %d bytes to be accepted: %v", DefaultMaxPasswordBytes, err)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"bounds":      func(c *Config) { c.MinPasswordBytes = 20; c.MaxPasswordBytes = 10 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			if _, err := NewArgon2(cfg); err == nil {
				t.Fatal("expected config to be rejected")
			}
		})
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher := newTestHasher(t, testConfig())
	hash, err := oldHasher.Hash("old-params-pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := testConfig()
	stronger.Memory = 16 * 1024
	stronger.Time = 2
	newHasher := newTestHasher(t, stronger)

	needs, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needs {
		t.Fatal("expected NeedsUpgrade for weaker parameters")
	}

	needs, err = oldHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needs {
		t.Fatal("expected no upgrade for current parameters")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := newTestHasher(t, testConfig())

	if _, err := hasher.Verify("password", "not-a-phc-hash"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}

	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	wrongVersion := strings.Replace(hash, "$v=19$", "$v=18$", 1)
	if _, err := hasher.Verify("version-test", wrongVersion); err == nil {
		t.Fatal("expected unsupported version verification to fail")
	}
}

func TestLegacyBcryptHash(t *testing.T) {
	hasher := newTestHasher(t, testConfig())

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	ok, err := hasher.Verify("legacy-pass", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected bcrypt hash to verify: ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("wrong-pass", string(legacy))
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password against bcrypt hash to fail")
	}

	needs, err := hasher.NeedsUpgrade(string(legacy))
	if err != nil || !needs {
		t.Fatalf("expected bcrypt hash to need upgrade: needs=%v err=%v", needs, err)
	}
}

func TestBcryptPrefixes(t *testing.T) {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if !isBcrypt(prefix + "10$abcdefghijklmnopqrstuv") {
			t.Fatalf("expected %s to be recognised as bcrypt", prefix)
		}
	}
	if isBcrypt("$argon2id$v=19$") {
		t.Fatal("argon2 hash misdetected as bcrypt")
	}
}

func TestVerifyDummyDoesNotPanic(t *testing.T) {
	hasher := newTestHasher(t, testConfig())
	hasher.VerifyDummy("anything")
	hasher.VerifyDummy(strings.Repeat("x", DefaultMaxPasswordBytes+10))
}
