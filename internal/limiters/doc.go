// Package limiters holds the Redis fixed-window signup limiter.
//
// [SignupLimiter] counts signup requests per email and per client IP with
// INCR plus EXPIRE on the first hit. A nil limiter allows everything.
// The limiter only counts; the signup flow decides what a denial means.
//
// Login lockout is not here. It lives in the throttle package, whose state
// is keyed by identity and cleared on success.
package limiters
