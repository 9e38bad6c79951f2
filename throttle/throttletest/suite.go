// Package throttletest holds a conformance suite every throttle.Store
// implementation must pass, plus a controllable clock.
package throttletest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/marketAuth/throttle"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StoreFactory returns a fresh, empty store for one subtest.
type StoreFactory func(t *testing.T) throttle.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore StoreFactory) {
	t.Helper()

	t.Run("ThresholdTriggersLockout", func(t *testing.T) {
		th, _ := newThrottle(t, newStore, throttle.PolicyStandard)
		fail(t, th, "a@x.com", 5)
		mustBlocked(t, th, "a@x.com")
	})

	t.Run("BelowThresholdStaysOpen", func(t *testing.T) {
		th, _ := newThrottle(t, newStore, throttle.PolicyStandard)
		fail(t, th, "a@x.com", 4)
		mustAllowed(t, th, "a@x.com")
		mustCount(t, th, "a@x.com", 4)
	})

	t.Run("SuccessClearsState", func(t *testing.T) {
		th, _ := newThrottle(t, newStore, throttle.PolicyStandard)
		fail(t, th, "a@x.com", 4)
		if err := th.ResetOnSuccess(context.Background(), "a@x.com"); err != nil {
			t.Fatalf("ResetOnSuccess failed: %v", err)
		}
		mustAllowed(t, th, "a@x.com")
		mustUntracked(t, th, "a@x.com")

		fail(t, th, "a@x.com", 1)
		mustCount(t, th, "a@x.com", 1)
	})

	t.Run("LockoutExpires", func(t *testing.T) {
		th, clock := newThrottle(t, newStore, throttle.Policy{Threshold: 3, LockoutDuration: 60 * time.Second})
		fail(t, th, "a@x.com", 3)
		mustBlocked(t, th, "a@x.com")
		clock.Advance(61 * time.Second)
		mustAllowed(t, th, "a@x.com")
	})

	t.Run("RetryAfterDecreases", func(t *testing.T) {
		th, clock := newThrottle(t, newStore, throttle.PolicyStandard)
		fail(t, th, "a@x.com", 5)

		prev := 301
		for i := 0; i < 6; i++ {
			d := check(t, th, "a@x.com")
			if d.Allowed {
				t.Fatalf("step %d: expected lockout to hold", i)
			}
			if d.RetryAfterSeconds <= 0 || d.RetryAfterSeconds > 300 {
				t.Fatalf("step %d: retry-after %d outside (0, 300]", i, d.RetryAfterSeconds)
			}
			if d.RetryAfterSeconds >= prev {
				t.Fatalf("step %d: retry-after %d did not decrease from %d", i, d.RetryAfterSeconds, prev)
			}
			prev = d.RetryAfterSeconds
			clock.Advance(45 * time.Second)
		}
	})

	t.Run("RetryAfterRoundsUp", func(t *testing.T) {
		th, clock := newThrottle(t, newStore, throttle.PolicyQuick)
		fail(t, th, "a@x.com", 3)
		clock.Advance(59500 * time.Millisecond)
		if d := check(t, th, "a@x.com"); d.Allowed || d.RetryAfterSeconds != 1 {
			t.Fatalf("expected 1s retry-after half a second before expiry, got %+v", d)
		}
	})

	t.Run("ResetUntrackedIsNoop", func(t *testing.T) {
		th, _ := newThrottle(t, newStore, throttle.PolicyStandard)
		if err := th.ResetOnSuccess(context.Background(), "nobody@x.com"); err != nil {
			t.Fatalf("ResetOnSuccess on untracked identity failed: %v", err)
		}
		if err := th.ResetOnSuccess(context.Background(), "nobody@x.com"); err != nil {
			t.Fatalf("second ResetOnSuccess failed: %v", err)
		}
		mustAllowed(t, th, "nobody@x.com")
	})

	t.Run("LockedFailuresChangeNothing", func(t *testing.T) {
		th, clock := newThrottle(t, newStore, throttle.PolicyStandard)
		fail(t, th, "a@x.com", 5)
		before := status(t, th, "a@x.com")

		for i := 0; i < 10; i++ {
			clock.Advance(10 * time.Second)
			res, err := th.RecordFailure(context.Background(), "a@x.com")
			if err != nil {
				t.Fatalf("RecordFailure while locked failed: %v", err)
			}
			if res.Counted || res.LockedNow {
				t.Fatalf("failure while locked must not count: %+v", res)
			}
		}

		after := status(t, th, "a@x.com")
		if after.FailureCount != 5 {
			t.Fatalf("failure count moved past threshold: %d", after.FailureCount)
		}
		if !after.LockedUntil.Equal(before.LockedUntil) {
			t.Fatalf("lock re-armed: before %v after %v", before.LockedUntil, after.LockedUntil)
		}
	})

	t.Run("IdentitiesAreIsolated", func(t *testing.T) {
		th, _ := newThrottle(t, newStore, throttle.PolicyQuick)
		fail(t, th, "a@x.com", 3)
		mustBlocked(t, th, "a@x.com")
		mustAllowed(t, th, "b@x.com")
		mustUntracked(t, th, "b@x.com")
	})

	t.Run("QuickPolicyScenario", func(t *testing.T) {
		th, clock := newThrottle(t, newStore, throttle.Policy{Threshold: 3, LockoutDuration: 60 * time.Second})
		fail(t, th, "a@x.com", 3)
		d := check(t, th, "a@x.com")
		if d.Allowed || d.RetryAfterSeconds != 60 {
			t.Fatalf("expected {false, 60}, got %+v", d)
		}

		clock.Advance(61 * time.Second)
		mustAllowed(t, th, "a@x.com")

		fail(t, th, "a@x.com", 1)
		mustAllowed(t, th, "a@x.com")
		mustCount(t, th, "a@x.com", 1)
	})

	t.Run("ExpiredLockRestartsAtOne", func(t *testing.T) {
		th, clock := newThrottle(t, newStore, throttle.PolicyQuick)
		fail(t, th, "a@x.com", 3)
		clock.Advance(2 * time.Minute)

		res, err := th.RecordFailure(context.Background(), "a@x.com")
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		if !res.Counted || res.LockedNow || res.Record.FailureCount != 1 || !res.Record.LockedUntil.IsZero() {
			t.Fatalf("expected fresh count of 1 after expiry, got %+v", res)
		}
	})

	t.Run("LockedNowReportedOnce", func(t *testing.T) {
		th, _ := newThrottle(t, newStore, throttle.PolicyQuick)
		var locks int
		for i := 0; i < 6; i++ {
			res, err := th.RecordFailure(context.Background(), "a@x.com")
			if err != nil {
				t.Fatalf("RecordFailure failed: %v", err)
			}
			if res.LockedNow {
				locks++
				if i != 2 {
					t.Fatalf("lock reported on failure %d, want 3rd", i+1)
				}
			}
		}
		if locks != 1 {
			t.Fatalf("expected exactly one lock transition, got %d", locks)
		}
	})

	t.Run("ConcurrentFailuresAreNotLost", func(t *testing.T) {
		const workers = 40
		th, _ := newThrottle(t, newStore, throttle.Policy{Threshold: 1000, LockoutDuration: time.Minute})

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := th.RecordFailure(context.Background(), "burst@x.com"); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent RecordFailure failed: %v", err)
		}

		mustCount(t, th, "burst@x.com", workers)
	})

	t.Run("InvalidIdentityRejected", func(t *testing.T) {
		th, _ := newThrottle(t, newStore, throttle.PolicyStandard)
		for _, id := range []string{"", " a@x.com", "A@X.com", "a@x.com\n"} {
			if _, err := th.CheckAllowed(context.Background(), id); err == nil {
				t.Fatalf("CheckAllowed(%q): expected ErrInvalidIdentity", id)
			}
			if _, err := th.RecordFailure(context.Background(), id); err == nil {
				t.Fatalf("RecordFailure(%q): expected ErrInvalidIdentity", id)
			}
			if err := th.ResetOnSuccess(context.Background(), id); err == nil {
				t.Fatalf("ResetOnSuccess(%q): expected ErrInvalidIdentity", id)
			}
		}
	})
}

func newThrottle(t *testing.T, newStore StoreFactory, policy throttle.Policy) (*throttle.Throttle, *Clock) {
	t.Helper()

	clock := NewClock()
	th, err := throttle.New(newStore(t), policy, throttle.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("throttle.New failed: %v", err)
	}
	return th, clock
}

func fail(t *testing.T, th *throttle.Throttle, identity string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := th.RecordFailure(context.Background(), identity); err != nil {
			t.Fatalf("RecordFailure #%d failed: %v", i+1, err)
		}
	}
}

func check(t *testing.T, th *throttle.Throttle, identity string) throttle.Decision {
	t.Helper()
	d, err := th.CheckAllowed(context.Background(), identity)
	if err != nil {
		t.Fatalf("CheckAllowed failed: %v", err)
	}
	return d
}

func status(t *testing.T, th *throttle.Throttle, identity string) throttle.AttemptRecord {
	t.Helper()
	rec, err := th.Status(context.Background(), identity)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected a record for %s", identity)
	}
	return *rec
}

func mustAllowed(t *testing.T, th *throttle.Throttle, identity string) {
	t.Helper()
	if d := check(t, th, identity); !d.Allowed || d.RetryAfterSeconds != 0 {
		t.Fatalf("expected %s allowed, got %+v", identity, d)
	}
}

func mustBlocked(t *testing.T, th *throttle.Throttle, identity string) {
	t.Helper()
	if d := check(t, th, identity); d.Allowed {
		t.Fatalf("expected %s blocked, got %+v", identity, d)
	}
}

func mustCount(t *testing.T, th *throttle.Throttle, identity string, want int) {
	t.Helper()
	if got := status(t, th, identity).FailureCount; got != want {
		t.Fatalf("failure count for %s = %d, want %d", identity, got, want)
	}
}

func mustUntracked(t *testing.T, th *throttle.Throttle, identity string) {
	t.Helper()
	rec, err := th.Status(context.Background(), identity)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected no record for %s, got %s", identity, describe(rec))
	}
}

func describe(rec *throttle.AttemptRecord) string {
	return fmt.Sprintf("{count=%d locked_until=%v}", rec.FailureCount, rec.LockedUntil)
}
