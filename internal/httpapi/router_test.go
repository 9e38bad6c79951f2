package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/metrics/export/prometheus"
	"github.com/MrEthical07/marketAuth/sqlstore"
)

func newTestServer(t *testing.T) (http.Handler, *marketAuth.Engine) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: sqlstore.DialectSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	cfg := marketAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := marketAuth.New().
		WithConfig(cfg).
		WithUserProvider(sqlstore.NewUserStore(db)).
		WithAttemptStore(sqlstore.NewAttemptStore(db)).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	router := NewRouter(RouterConfig{
		Auth:        engine,
		CORSOrigins: []string{"http://localhost:3000"},
		Health:      db.Ping,
		Metrics:     prometheus.New(engine).Handler(),
	})
	return router, engine
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body["message"]
}

const signupBody = `{"username":"sam","email":"Sam@Uni.edu","password":"hunter22"}`

func TestSignupLoginMe(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/auth/signup", signupBody, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var signup authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &signup); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	if signup.Token == "" || signup.User.Email != "sam@uni.edu" || signup.User.FullName != "sam" {
		t.Fatalf("unexpected signup response %+v", signup)
	}

	rec = do(t, h, http.MethodPost, "/api/auth/login", `{"email":"sam@uni.edu","password":"hunter22"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var login authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	rec = do(t, h, http.MethodGet, "/api/auth/me", "", map[string]string{"Authorization": "Bearer " + login.Token})
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var me userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != signup.User.ID {
		t.Fatalf("me returned %q, expected %q", me.ID, signup.User.ID)
	}

	rec = do(t, h, http.MethodGet, "/api/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", rec.Code)
	}
}

func TestSignupErrors(t *testing.T) {
	h, _ := newTestServer(t)
	if rec := do(t, h, http.MethodPost, "/api/auth/signup", signupBody, nil); rec.Code != http.StatusCreated {
		t.Fatalf("seed signup: %d", rec.Code)
	}

	cases := []struct {
		name string
		body string
		want int
	}{
		{"duplicate", `{"username":"sam2","email":"sam@uni.edu","password":"hunter22"}`, http.StatusConflict},
		{"missing fields", `{"email":"x@uni.edu"}`, http.StatusBadRequest},
		{"bad email", `{"username":"kim","email":"not-an-email","password":"hunter22"}`, http.StatusBadRequest},
		{"short password", `{"username":"kim","email":"kim@uni.edu","password":"abc"}`, http.StatusBadRequest},
		{"bad json", `{"username":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/auth/signup", tc.body, nil)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body)
			}
			if message(t, rec) == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestLoginLockout(t *testing.T) {
	h, _ := newTestServer(t)
	if rec := do(t, h, http.MethodPost, "/api/auth/signup", signupBody, nil); rec.Code != http.StatusCreated {
		t.Fatalf("seed signup: %d", rec.Code)
	}

	wrong := `{"email":"sam@uni.edu","password":"wrong-pass"}`
	for i := 1; i <= 5; i++ {
		rec := do(t, h, http.MethodPost, "/api/auth/login", wrong, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
		if got := message(t, rec); got != "Invalid credentials" {
			t.Fatalf("attempt %d: unexpected message %q", i, got)
		}
	}

	// The correct password is refused while locked.
	rec := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"sam@uni.edu","password":"hunter22"}`, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body)
	}
	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || secs < 1 || secs > 300 {
		t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
	}
	if !strings.Contains(message(t, rec), "seconds") {
		t.Fatalf("lockout message must state the delay: %q", message(t, rec))
	}

	// Unknown emails are throttled the same way and never reveal absence.
	rec = do(t, h, http.MethodPost, "/api/auth/login", `{"email":"ghost@uni.edu","password":"whatever"}`, nil)
	if rec.Code != http.StatusUnauthorized || message(t, rec) != "Invalid credentials" {
		t.Fatalf("unknown email: got %d %q", rec.Code, rec.Body)
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"sam@uni.edu"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthMetricsAndCORS(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health: %d %s", rec.Code, rec.Body)
	}

	do(t, h, http.MethodPost, "/api/auth/login", `{"email":"nobody@uni.edu","password":"x"}`, nil)
	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), "marketauth_login_failure_total 1") {
		t.Fatalf("metrics missing login failure:\n%s", rec.Body)
	}

	rec = do(t, h, http.MethodOptions, "/api/auth/login", "", map[string]string{"Origin": "http://localhost:3000"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatal("allowed origin not echoed")
	}

	rec = do(t, h, http.MethodOptions, "/api/auth/login", "", map[string]string{"Origin": "https://evil.example"})
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin must not be allowed")
	}
}

type failingAuth struct{ err error }

func (f failingAuth) Signup(context.Context, marketAuth.SignupRequest) (*marketAuth.AuthResult, error) {
	return nil, f.err
}

func (f failingAuth) Login(context.Context, string, string) (*marketAuth.AuthResult, error) {
	return nil, f.err
}

func (f failingAuth) ValidateToken(context.Context, string) (*marketAuth.Claims, error) {
	return nil, f.err
}

func (f failingAuth) CurrentUser(context.Context, string) (marketAuth.PublicUser, error) {
	return marketAuth.PublicUser{}, f.err
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err        error
		want       int
		retryAfter string
	}{
		{marketAuth.ErrThrottleUnavailable, http.StatusInternalServerError, ""},
		{errors.New("disk on fire"), http.StatusInternalServerError, ""},
		{&marketAuth.LockedError{RetryAfterSeconds: 42}, http.StatusTooManyRequests, "42"},
		{&marketAuth.SignupLimitedError{RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests, "2"},
		{marketAuth.ErrSignupDisabled, http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		h := NewRouter(RouterConfig{Auth: failingAuth{err: tc.err}})
		rec := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"a@b.co","password":"x"}`, nil)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != tc.retryAfter {
			t.Fatalf("%v: expected Retry-After %q, got %q", tc.err, tc.retryAfter, got)
		}
		if tc.want == http.StatusInternalServerError && message(t, rec) != "Internal server error" {
			t.Fatalf("internal errors must stay generic, got %q", message(t, rec))
		}
	}
}
