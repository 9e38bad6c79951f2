// Package flows contains the orchestration behind Engine.Login and
// Engine.Signup.
//
// Each flow takes a dependency struct of function fields and owns no state.
// Ownership of the throttle, user provider, hasher, and token manager stays
// with the Engine, which keeps the flows testable with plain closures.
//
// This package must not import the root marketAuth package.
package flows
