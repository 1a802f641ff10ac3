// Package otel exposes saraAuth engine metrics as OpenTelemetry observable
// instruments. The caller owns the MeterProvider and passes a Meter to
// [NewExporter]; the engine snapshot is read once per collection.
package otel
