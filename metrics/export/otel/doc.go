// Package otel publishes marketAuth engine metrics as OpenTelemetry
// observable instruments.
//
// Each counter becomes an Int64ObservableCounter. The login latency
// histogram is flattened into one Int64ObservableGauge per cumulative
// bucket plus a count gauge. Callers own the MeterProvider.
package otel
