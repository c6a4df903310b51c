package internaldefs

import (
	"github.com/proxyhub/authclient"
)

// CounterDef names one client counter for exporters.
type CounterDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram for exporters.
type HistogramDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: authclient.MetricRequestSent, Name: "authclient_requests_sent_total", Help: "Request transmissions, replays included."},
	{ID: authclient.MetricRequestTransportError, Name: "authclient_request_transport_errors_total", Help: "Transmissions that received no response."},
	{ID: authclient.MetricUnauthorizedObserved, Name: "authclient_unauthorized_total", Help: "401 responses observed."},
	{ID: authclient.MetricRefreshCycleStarted, Name: "authclient_refresh_cycles_total", Help: "Refresh cycles started."},
	{ID: authclient.MetricRefreshSuccess, Name: "authclient_refresh_success_total", Help: "Refresh cycles that produced a new access token."},
	{ID: authclient.MetricRefreshFailure, Name: "authclient_refresh_failure_total", Help: "Refresh cycles that ended the session."},
	{ID: authclient.MetricRefreshTimeout, Name: "authclient_refresh_timeout_total", Help: "Refresh calls that exceeded the refresh timeout."},
	{ID: authclient.MetricRefreshRateLimited, Name: "authclient_refresh_rate_limited_total", Help: "Refresh cycles rejected by the refresh throttle."},
	{ID: authclient.MetricRefreshWaiterQueued, Name: "authclient_refresh_waiters_total", Help: "Callers that joined a running refresh cycle."},
	{ID: authclient.MetricReplay, Name: "authclient_replays_total", Help: "Requests replayed after a refresh."},
	{ID: authclient.MetricReplayRejected, Name: "authclient_replay_rejected_total", Help: "Replays rejected with 401."},
	{ID: authclient.MetricStaleTokenReplay, Name: "authclient_stale_token_replays_total", Help: "Replays that reused a token from an earlier cycle."},
	{ID: authclient.MetricProactiveRefresh, Name: "authclient_proactive_refresh_total", Help: "Refreshes started before an expiring token was sent."},
	{ID: authclient.MetricLoginSuccess, Name: "authclient_login_success_total", Help: "Successful logins."},
	{ID: authclient.MetricLoginFailure, Name: "authclient_login_failure_total", Help: "Failed logins."},
	{ID: authclient.MetricLoginRateLimited, Name: "authclient_login_rate_limited_total", Help: "Logins rejected by the login throttle."},
	{ID: authclient.MetricLogoutForced, Name: "authclient_logout_forced_total", Help: "Sessions ended by a terminal authorization failure."},
	{ID: authclient.MetricLogoutExplicit, Name: "authclient_logout_explicit_total", Help: "Caller-requested logouts."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: authclient.MetricRefreshLatency, Name: "authclient_refresh_latency_seconds", Help: "Refresh cycle latency."},
	{ID: authclient.MetricRequestLatency, Name: "authclient_request_latency_seconds", Help: "Request latency, refresh and replay included."},
}

// HistogramBounds are the upper bounds in seconds, in Prometheus le notation.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
