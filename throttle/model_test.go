package throttle

import (
	"errors"
	"testing"
	"time"
)

func TestNextFailureTransitions(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	policy := Policy{Threshold: 3, LockoutDuration: time.Minute}

	tests := []struct {
		name        string
		prev        *AttemptRecord
		wantCount   int
		wantLocked  time.Time
		wantCounted bool
	}{
		{
			name:        "untracked",
			prev:        nil,
			wantCount:   1,
			wantCounted: true,
		},
		{
			name:        "failing increments",
			prev:        &AttemptRecord{FailureCount: 1},
			wantCount:   2,
			wantCounted: true,
		},
		{
			name:        "reaching threshold locks",
			prev:        &AttemptRecord{FailureCount: 2},
			wantCount:   3,
			wantLocked:  now.Add(time.Minute),
			wantCounted: true,
		},
		{
			name:        "locked is unchanged",
			prev:        &AttemptRecord{FailureCount: 3, LockedUntil: now.Add(10 * time.Second)},
			wantCount:   3,
			wantLocked:  now.Add(10 * time.Second),
			wantCounted: false,
		},
		{
			name:        "expired lock restarts",
			prev:        &AttemptRecord{FailureCount: 3, LockedUntil: now.Add(-time.Second)},
			wantCount:   1,
			wantCounted: true,
		},
		{
			name:        "lock ending exactly now is expired",
			prev:        &AttemptRecord{FailureCount: 3, LockedUntil: now},
			wantCount:   1,
			wantCounted: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, counted := NextFailure(tc.prev, "a@x.com", now, policy)
			if counted != tc.wantCounted {
				t.Fatalf("counted = %v, want %v", counted, tc.wantCounted)
			}
			if next.FailureCount != tc.wantCount {
				t.Fatalf("count = %d, want %d", next.FailureCount, tc.wantCount)
			}
			if !next.LockedUntil.Equal(tc.wantLocked) {
				t.Fatalf("lockedUntil = %v, want %v", next.LockedUntil, tc.wantLocked)
			}
		})
	}
}

func TestNextFailureThresholdOne(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	next, _ := NextFailure(nil, "a@x.com", now, Policy{Threshold: 1, LockoutDuration: time.Minute})
	if next.FailureCount != 1 || !next.Locked(now) {
		t.Fatalf("threshold 1 must lock on the first failure, got %+v", next)
	}
}

func TestDecideRetryAfterCeil(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := []struct {
		remaining time.Duration
		want      int
	}{
		{remaining: 300 * time.Second, want: 300},
		{remaining: 299*time.Second + time.Millisecond, want: 300},
		{remaining: time.Millisecond, want: 1},
	}
	for _, tc := range cases {
		d := Decide(&AttemptRecord{FailureCount: 5, LockedUntil: now.Add(tc.remaining)}, now)
		if d.Allowed || d.RetryAfterSeconds != tc.want {
			t.Fatalf("remaining %v: got %+v, want retry %d", tc.remaining, d, tc.want)
		}
		if d.RetryAfter() != time.Duration(tc.want)*time.Second {
			t.Fatalf("RetryAfter() = %v", d.RetryAfter())
		}
	}

	if d := Decide(nil, now); !d.Allowed {
		t.Fatal("nil record must be allowed")
	}
	if d := Decide(&AttemptRecord{FailureCount: 2}, now); !d.Allowed {
		t.Fatal("unlocked record must be allowed")
	}
}

func TestValidateIdentity(t *testing.T) {
	valid := []string{"a@x.com", "student.name+tag@uni.example.edu"}
	for _, id := range valid {
		if err := ValidateIdentity(id); err != nil {
			t.Fatalf("ValidateIdentity(%q) = %v", id, err)
		}
	}

	long := make([]byte, maxIdentityLength+1)
	for i := range long {
		long[i] = 'a'
	}
	invalid := []string{"", "A@x.com", " a@x.com", "a b@x.com", "a@x.com\t", string(long)}
	for _, id := range invalid {
		if err := ValidateIdentity(id); !errors.Is(err, ErrInvalidIdentity) {
			t.Fatalf("ValidateIdentity(%q): expected ErrInvalidIdentity, got %v", id, err)
		}
	}
}

func TestNormalizeIdentity(t *testing.T) {
	if got := NormalizeIdentity("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("NormalizeIdentity = %q", got)
	}
}

func TestPolicyPresets(t *testing.T) {
	if PolicyStandard.Threshold != 5 || PolicyStandard.LockoutDuration != 5*time.Minute {
		t.Fatalf("unexpected standard preset: %+v", PolicyStandard)
	}
	if PolicyQuick.Threshold != 3 || PolicyQuick.LockoutDuration != time.Minute {
		t.Fatalf("unexpected quick preset: %+v", PolicyQuick)
	}
	if p, ok := PolicyByName("Quick"); !ok || p != PolicyQuick {
		t.Fatalf("PolicyByName(Quick) = %+v, %v", p, ok)
	}
	if _, ok := PolicyByName("strict"); ok {
		t.Fatal("unknown preset must not resolve")
	}
	if err := (Policy{Threshold: 3, LockoutDuration: 500 * time.Millisecond}).Validate(); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy for sub-second duration, got %v", err)
	}
}
