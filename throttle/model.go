package throttle

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// maxIdentityLength bounds identities to the longest legal email address.
const maxIdentityLength = 320

// AttemptRecord is the persisted failure state of one identity.
type AttemptRecord struct {
	Identity     string
	FailureCount int
	// LockedUntil is the zero time when no lock was ever set.
	LockedUntil time.Time
}

// Locked reports whether the record blocks logins at now.
func (r AttemptRecord) Locked(now time.Time) bool {
	return !r.LockedUntil.IsZero() && now.Before(r.LockedUntil)
}

// Policy is the numeric lockout policy.
type Policy struct {
	Threshold       int
	LockoutDuration time.Duration
}

var (
	// PolicyStandard locks an identity for five minutes after five failures.
	PolicyStandard = Policy{Threshold: 5, LockoutDuration: 5 * time.Minute}
	// PolicyQuick locks an identity for one minute after three failures.
	PolicyQuick = Policy{Threshold: 3, LockoutDuration: time.Minute}
)

// PolicyByName resolves a preset by name ("standard" or "quick").
func PolicyByName(name string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "standard", "":
		return PolicyStandard, true
	case "quick":
		return PolicyQuick, true
	default:
		return Policy{}, false
	}
}

// Validate reports whether the policy can drive a lockout.
func (p Policy) Validate() error {
	if p.Threshold < 1 {
		return fmt.Errorf("%w: threshold must be >= 1", ErrInvalidPolicy)
	}
	if p.LockoutDuration < time.Second {
		return fmt.Errorf("%w: lockout duration must be >= 1s", ErrInvalidPolicy)
	}
	return nil
}

// Decision is the outcome of a CheckAllowed call.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
}

// RetryAfter returns RetryAfterSeconds as a duration.
func (d Decision) RetryAfter() time.Duration {
	return time.Duration(d.RetryAfterSeconds) * time.Second
}

// FailureResult describes the effect of one RecordFailure call.
type FailureResult struct {
	Record AttemptRecord
	// Counted is false when the identity was already locked and nothing changed.
	Counted bool
	// LockedNow is true only for the failure that triggered the lock.
	LockedNow bool
}

// Decide evaluates rec at now. A nil record is allowed.
func Decide(rec *AttemptRecord, now time.Time) Decision {
	if rec == nil || !rec.Locked(now) {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, RetryAfterSeconds: retryAfterSeconds(rec.LockedUntil, now)}
}

func retryAfterSeconds(lockedUntil, now time.Time) int {
	remaining := lockedUntil.Sub(now)
	secs := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// NextFailure applies one failure to prev (nil when untracked) and returns the
// resulting record. counted is false when prev is still locked at now, in
// which case the returned record equals *prev.
func NextFailure(prev *AttemptRecord, identity string, now time.Time, policy Policy) (next AttemptRecord, counted bool) {
	if prev != nil && prev.Locked(now) {
		return *prev, false
	}

	count := 1
	if prev != nil && prev.LockedUntil.IsZero() {
		count = prev.FailureCount + 1
	}

	next = AttemptRecord{Identity: identity, FailureCount: count}
	if count >= policy.Threshold {
		next.FailureCount = policy.Threshold
		next.LockedUntil = now.Add(policy.LockoutDuration)
	}
	return next, true
}

// NormalizeIdentity returns the canonical identity form: trimmed and lower-cased.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// ValidateIdentity rejects empty, oversized, and non-canonical identities.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	if len(identity) > maxIdentityLength {
		return fmt.Errorf("%w: too long", ErrInvalidIdentity)
	}
	for _, r := range identity {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidIdentity)
		}
	}
	if identity != NormalizeIdentity(identity) {
		return fmt.Errorf("%w: not normalized", ErrInvalidIdentity)
	}
	return nil
}
