// Package jwt issues and verifies the marketplace's stateless access tokens.
// HS256 with a shared secret is the default; Ed25519 is available for
// deployments that verify tokens in other services.
package jwt
