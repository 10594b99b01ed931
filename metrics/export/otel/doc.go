// Package otel binds authsvc engine metrics to an OpenTelemetry meter.
//
// Counters become Int64ObservableCounters. Each latency histogram becomes a
// "_bucket" gauge with one cumulative point per "le" attribute plus a
// "_count" gauge. The caller owns the MeterProvider.
package otel
