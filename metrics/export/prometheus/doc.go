// Package prometheus exposes authsvc engine metrics as a
// prometheus.Collector. Counters are named authsvc_*_total and the latency
// histograms authsvc_*_latency_seconds.
//
// The collector is never registered globally; use [Handler] or register it
// on your own registry.
package prometheus
