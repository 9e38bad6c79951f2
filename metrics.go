package marketAuth

import (
	internalmetrics "github.com/MrEthical07/marketAuth/internal/metrics"
)

// MetricID identifies one engine counter.
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of engine counters.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	// MetricLoginSuccess counts logins that issued a token.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure counts unknown-email and wrong-password outcomes.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricLoginLocked counts logins refused by an active lockout.
	MetricLoginLocked = internalmetrics.MetricLoginLocked
	// MetricLockoutTriggered counts failures that started a lockout.
	MetricLockoutTriggered = internalmetrics.MetricLockoutTriggered
	// MetricLoginMissingCredentials counts logins with an empty email or password.
	MetricLoginMissingCredentials = internalmetrics.MetricLoginMissingCredentials
	// MetricThrottleStoreError counts attempt store failures.
	MetricThrottleStoreError = internalmetrics.MetricThrottleStoreError
	// MetricThrottleFailOpen counts store failures that were allowed through.
	MetricThrottleFailOpen = internalmetrics.MetricThrottleFailOpen
	// MetricSignupSuccess counts created accounts.
	MetricSignupSuccess = internalmetrics.MetricSignupSuccess
	// MetricSignupDuplicate counts signups rejected for an existing email.
	MetricSignupDuplicate = internalmetrics.MetricSignupDuplicate
	// MetricSignupRateLimited counts signups denied by the signup limiter.
	MetricSignupRateLimited = internalmetrics.MetricSignupRateLimited
	// MetricSignupRejected counts signups with invalid fields or weak passwords.
	MetricSignupRejected = internalmetrics.MetricSignupRejected
	// MetricPasswordUpgraded counts hashes rewritten on login.
	MetricPasswordUpgraded = internalmetrics.MetricPasswordUpgraded
	// MetricTokenInvalid counts rejected bearer tokens.
	MetricTokenInvalid = internalmetrics.MetricTokenInvalid
	// MetricIdentityUnlocked counts administrative unlocks.
	MetricIdentityUnlocked = internalmetrics.MetricIdentityUnlocked
	// MetricLoginLatency is the login latency histogram.
	MetricLoginLatency = internalmetrics.MetricLoginLatency
)
