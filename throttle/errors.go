package throttle

import "errors"

var (
	// ErrInvalidIdentity is returned for empty or non-canonical identities.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrStorage wraps every failure reported by a Store.
	ErrStorage = errors.New("login attempt storage unavailable")
	// ErrInvalidPolicy is returned by New for a non-positive threshold or duration.
	ErrInvalidPolicy = errors.New("invalid throttle policy")
	// ErrNilStore is returned by New when no Store is supplied.
	ErrNilStore = errors.New("nil attempt store")
)
