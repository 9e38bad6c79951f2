// Package marketAuth is the authentication engine of the student marketplace:
// signup, email/password login with brute-force lockout, and stateless JWT
// access tokens.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Login throttling
//
// Every login passes through the throttle package. An identity that fails
// Config.Throttle.Threshold times in a row is refused for
// Config.Throttle.LockoutDuration, and Login reports the remaining wait as a
// [*LockedError]. Unknown emails and wrong passwords are indistinguishable to
// the caller and both count as failures. A successful login clears the
// identity's record before the token is returned.
//
// Attempt records live in Redis ([Builder.WithRedis]), in SQL through the
// sqlstore package ([Builder.WithAttemptStore]), or in process memory when
// Config.Throttle.AllowInMemory is set.
//
// # Architecture boundaries
//
// This package is the public surface: [Engine], [Builder], [Config], and
// value types. Flow orchestration, the signup limiter, audit dispatch and
// counters live under internal/.
package marketAuth
