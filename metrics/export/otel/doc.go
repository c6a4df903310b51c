// Package otel publishes authclient metrics through OpenTelemetry observable instruments.
//
// The caller owns the MeterProvider and passes a Meter to [New]. One callback reads the
// client's metrics snapshot on each collection.
package otel
