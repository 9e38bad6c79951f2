package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errDisabled    = errors.New("disabled")
	errSignupBad   = errors.New("invalid signup")
	errBadEmail    = errors.New("invalid email")
	errPolicy      = errors.New("password policy")
	errExists      = errors.New("account exists")
	errDuplicate   = errors.New("duplicate")
	errSignupLimit = errors.New("signup limited")
)

type signupHarness struct {
	users  map[string]LoginUserRecord
	counts map[int]int
	limit  error
}

func (h *signupHarness) deps() SignupDeps {
	return SignupDeps{
		Enabled:           true,
		MinUsernameLength: 2,
		MaxUsernameLength: 16,
		EnforceLimiter: func(context.Context, string, string) error {
			return h.limit
		},
		IsRateLimited: func(err error) bool { return errors.Is(err, errSignupLimit) },
		HashPassword: func(pw string) (string, error) {
			if len(pw) < 6 {
				return "", errors.New("too short")
			}
			return "hash:" + pw, nil
		},
		CreateUser: func(_ context.Context, in SignupCreateUserInput) (LoginUserRecord, error) {
			if _, ok := h.users[in.Email]; ok {
				return LoginUserRecord{}, errDuplicate
			}
			rec := LoginUserRecord{UserID: "id-" + in.Username, Username: in.Username, Email: in.Email, PasswordHash: in.PasswordHash}
			h.users[in.Email] = rec
			return rec, nil
		},
		IssueAccessToken: func(u LoginUserRecord) (string, time.Time, error) {
			return "token-" + u.UserID, time.Unix(0, 0), nil
		},
		MetricInc: func(id int) { h.counts[id]++ },
		Metrics:   SignupMetrics{SignupSuccess: 1, SignupDuplicate: 2, SignupRateLimited: 3, SignupRejected: 4},
		Errors: SignupErrors{
			EngineNotReady:              errNotReady,
			Disabled:                    errDisabled,
			Invalid:                     errSignupBad,
			InvalidEmail:                errBadEmail,
			PasswordPolicy:              errPolicy,
			AccountExists:               errExists,
			ProviderDuplicateIdentifier: errDuplicate,
		},
	}
}

func newSignupHarness() *signupHarness {
	return &signupHarness{users: map[string]LoginUserRecord{}, counts: map[int]int{}}
}

func TestSignupCreatesAndLogsIn(t *testing.T) {
	h := newSignupHarness()
	res, err := RunSignup(context.Background(), SignupRequest{Username: "sam", Email: "sam@uni.edu", Password: "secret1"}, h.deps())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.AccessToken != "token-id-sam" || res.User.PasswordHash != "hash:secret1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.counts[1] != 1 {
		t.Fatalf("expected success metric, got %v", h.counts)
	}
}

func TestSignupValidation(t *testing.T) {
	cases := []struct {
		name string
		req  SignupRequest
		want error
	}{
		{"missing username", SignupRequest{Email: "a@uni.edu", Password: "secret1"}, errSignupBad},
		{"missing password", SignupRequest{Username: "ab", Email: "a@uni.edu"}, errSignupBad},
		{"short username", SignupRequest{Username: "a", Email: "a@uni.edu", Password: "secret1"}, errSignupBad},
		{"bad email", SignupRequest{Username: "ab", Email: "not-an-email", Password: "secret1"}, errBadEmail},
		{"no tld", SignupRequest{Username: "ab", Email: "a@localhost", Password: "secret1"}, errBadEmail},
		{"display name", SignupRequest{Username: "ab", Email: "Al <a@uni.edu>", Password: "secret1"}, errBadEmail},
		{"short password", SignupRequest{Username: "ab", Email: "a@uni.edu", Password: "12345"}, errPolicy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newSignupHarness()
			if _, err := RunSignup(context.Background(), tc.req, h.deps()); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSignupDuplicate(t *testing.T) {
	h := newSignupHarness()
	req := SignupRequest{Username: "sam", Email: "sam@uni.edu", Password: "secret1"}
	if _, err := RunSignup(context.Background(), req, h.deps()); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, err := RunSignup(context.Background(), req, h.deps()); !errors.Is(err, errExists) {
		t.Fatalf("expected account exists, got %v", err)
	}
	if h.counts[2] != 1 {
		t.Fatalf("expected duplicate metric, got %v", h.counts)
	}
}

func TestSignupRateLimited(t *testing.T) {
	h := newSignupHarness()
	h.limit = errSignupLimit
	_, err := RunSignup(context.Background(), SignupRequest{Username: "sam", Email: "sam@uni.edu", Password: "secret1"}, h.deps())
	if !errors.Is(err, errSignupLimit) {
		t.Fatalf("expected limiter error, got %v", err)
	}
	if h.counts[3] != 1 || len(h.users) != 0 {
		t.Fatalf("expected rate-limit metric and no user, got %v %v", h.counts, h.users)
	}
}

func TestSignupDisabled(t *testing.T) {
	h := newSignupHarness()
	deps := h.deps()
	deps.Enabled = false
	if _, err := RunSignup(context.Background(), SignupRequest{}, deps); !errors.Is(err, errDisabled) {
		t.Fatalf("expected disabled, got %v", err)
	}
}
