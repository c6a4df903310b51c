// Package prometheus exposes authclient metrics in the Prometheus text format.
//
// [New] wraps a Client and [Exporter.Handler] serves every counter as
// authclient_*_total plus the refresh and request latency histograms. Nothing is
// registered globally; callers mount the handler where they want it.
package prometheus
