// Package internal groups the helpers that back the public marketAuth API.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher plus Sink implementations)
//   - config: environment loading for cmd/marketauth
//   - flows: login and signup orchestration over injected dependencies
//   - httpapi: chi router and JSON handlers for cmd/marketauth
//   - limiters: Redis fixed-window signup limiter
//   - logger: zap construction and PII masking
//   - metrics: lock-free counters and the login latency histogram
//
// Nothing here is importable from outside the module.
package internal
