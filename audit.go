package authclient

import (
	"io"

	"github.com/proxyhub/authclient/internal/audit"
)

// Audit event types emitted by the Client.
const (
	AuditLoginSucceeded   = "login.succeeded"
	AuditLoginFailed      = "login.failed"
	AuditRefreshStarted   = "refresh.started"
	AuditRefreshSucceeded = "refresh.succeeded"
	AuditRefreshFailed    = "refresh.failed"
	AuditReplayRejected   = "replay.rejected"
	AuditLogoutForced     = "logout.forced"
	AuditLogoutExplicit   = "logout.explicit"
)

// AuditEvent is one audit record. It never carries token material.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
