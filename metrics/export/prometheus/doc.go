// Package prometheus renders marketAuth engine metrics in the Prometheus
// text exposition format.
//
// Counters are named marketauth_*_total and the login latency histogram is
// marketauth_login_latency_seconds. Nothing is registered globally; callers
// mount [Exporter.Handler] where they want it (cmd/marketauth uses
// GET /metrics).
package prometheus
