package internaldefs

import (
	marketAuth "github.com/MrEthical07/marketAuth"
)

// Metric pairs an engine metric id with its exported name.
type Metric struct {
	ID   marketAuth.MetricID
	Name string
	Help string
}

// Counters lists every engine counter in export order.
var Counters = []Metric{
	{marketAuth.MetricLoginSuccess, "marketauth_login_success_total", "Logins that issued an access token."},
	{marketAuth.MetricLoginFailure, "marketauth_login_failure_total", "Logins rejected for an unknown email or wrong password."},
	{marketAuth.MetricLoginLocked, "marketauth_login_locked_total", "Logins refused because the identity was locked."},
	{marketAuth.MetricLockoutTriggered, "marketauth_lockout_triggered_total", "Failed logins that started a lockout."},
	{marketAuth.MetricLoginMissingCredentials, "marketauth_login_missing_credentials_total", "Logins with an empty email or password."},
	{marketAuth.MetricThrottleStoreError, "marketauth_throttle_store_error_total", "Attempt store failures."},
	{marketAuth.MetricThrottleFailOpen, "marketauth_throttle_fail_open_total", "Attempt store failures that were allowed through."},
	{marketAuth.MetricSignupSuccess, "marketauth_signup_success_total", "Accounts created."},
	{marketAuth.MetricSignupDuplicate, "marketauth_signup_duplicate_total", "Signups rejected for an existing email."},
	{marketAuth.MetricSignupRateLimited, "marketauth_signup_rate_limited_total", "Signups denied by the signup limiter."},
	{marketAuth.MetricSignupRejected, "marketauth_signup_rejected_total", "Signups with invalid fields or weak passwords."},
	{marketAuth.MetricPasswordUpgraded, "marketauth_password_upgraded_total", "Password hashes rewritten on login."},
	{marketAuth.MetricTokenInvalid, "marketauth_token_invalid_total", "Rejected bearer tokens."},
	{marketAuth.MetricIdentityUnlocked, "marketauth_identity_unlocked_total", "Administrative unlocks."},
}

// LoginLatency is the only exported histogram.
var LoginLatency = Metric{
	ID:   marketAuth.MetricLoginLatency,
	Name: "marketauth_login_latency_seconds",
	Help: "Login latency including password hashing.",
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "marketauth_audit_dropped_total"

// Bounds are the upper bounds of the latency buckets, in seconds. OTel
// instrument names use Suffixes since they cannot contain dots.
var (
	Bounds   = [8]string{"0.025", "0.05", "0.1", "0.25", "0.5", "1", "2.5", "+Inf"}
	Suffixes = [8]string{"0_025", "0_05", "0_1", "0_25", "0_5", "1", "2_5", "inf"}
)

// Cumulative converts raw per-bucket counts into cumulative counts.
// Missing buckets are treated as zero.
func Cumulative(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
