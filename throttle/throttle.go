package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store persists AttemptRecords. Implementations must be safe for concurrent
// use and must apply RecordFailure as a single atomic transition equivalent
// to NextFailure.
type Store interface {
	// Get returns nil, nil when identity has no record.
	Get(ctx context.Context, identity string) (*AttemptRecord, error)
	RecordFailure(ctx context.Context, identity string, now time.Time, policy Policy) (AttemptRecord, bool, error)
	Delete(ctx context.Context, identity string) error
}

// Option customizes a Throttle.
type Option func(*Throttle)

// WithClock replaces time.Now. Used by tests and the load-test tool.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) {
		if now != nil {
			t.now = now
		}
	}
}

// Throttle is the login attempt limiter. It holds no state of its own; all
// state lives in the Store handle supplied to New.
type Throttle struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// New builds a Throttle over store with the given policy.
func New(store Store, policy Policy, opts ...Option) (*Throttle, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	t := &Throttle{
		store:  store,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Policy returns the active policy.
func (t *Throttle) Policy() Policy {
	return t.policy
}

// CheckAllowed reports whether identity may attempt a login now. It has no
// side effects.
func (t *Throttle) CheckAllowed(ctx context.Context, identity string) (Decision, error) {
	if err := ValidateIdentity(identity); err != nil {
		return Decision{}, err
	}

	rec, err := t.store.Get(ctx, identity)
	if err != nil {
		return Decision{}, storageErr(err)
	}
	return Decide(rec, t.clock()), nil
}

// RecordFailure counts one failed login for identity. While the identity is
// locked the call succeeds without changing anything.
func (t *Throttle) RecordFailure(ctx context.Context, identity string) (FailureResult, error) {
	if err := ValidateIdentity(identity); err != nil {
		return FailureResult{}, err
	}

	now := t.clock()
	rec, counted, err := t.store.RecordFailure(ctx, identity, now, t.policy)
	if err != nil {
		return FailureResult{}, storageErr(err)
	}

	return FailureResult{
		Record:    rec,
		Counted:   counted,
		LockedNow: counted && rec.Locked(now),
	}, nil
}

// ResetOnSuccess deletes the record for identity. Absent records are a no-op.
func (t *Throttle) ResetOnSuccess(ctx context.Context, identity string) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}
	if err := t.store.Delete(ctx, identity); err != nil {
		return storageErr(err)
	}
	return nil
}

// Status returns the stored record for identity, or nil when untracked.
func (t *Throttle) Status(ctx context.Context, identity string) (*AttemptRecord, error) {
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}
	rec, err := t.store.Get(ctx, identity)
	if err != nil {
		return nil, storageErr(err)
	}
	return rec, nil
}

// clock truncates to milliseconds, the resolution every Store persists.
func (t *Throttle) clock() time.Time {
	return t.now().Truncate(time.Millisecond)
}

func storageErr(err error) error {
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
