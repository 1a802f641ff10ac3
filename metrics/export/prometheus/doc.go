// Package prometheus renders saraAuth engine metrics as Prometheus text.
//
// Counters are named sara_*_total and the latency histogram is
// sara_validate_latency_seconds. The exporter never touches a global
// registry; callers mount [Exporter.Handler] where they want it.
package prometheus
