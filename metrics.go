package authclient

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client counter or histogram.
type MetricID uint16

const (
	// MetricRequestSent counts transmissions, replays included.
	MetricRequestSent MetricID = iota
	// MetricRequestTransportError counts transmissions that received no response.
	MetricRequestTransportError
	// MetricUnauthorizedObserved counts 401 responses on first attempts.
	MetricUnauthorizedObserved
	// MetricRefreshCycleStarted counts refresh cycles, one per refresh call at most.
	MetricRefreshCycleStarted
	// MetricRefreshSuccess counts cycles that produced a new access token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts terminal cycles.
	MetricRefreshFailure
	// MetricRefreshTimeout counts cycles whose refresh call timed out.
	MetricRefreshTimeout
	// MetricRefreshRateLimited counts cycles rejected by the refresh throttle.
	MetricRefreshRateLimited
	// MetricRefreshWaiterQueued counts callers that joined a running cycle.
	MetricRefreshWaiterQueued
	// MetricReplay counts requests replayed after a refresh.
	MetricReplay
	// MetricReplayRejected counts replays that failed with 401 again.
	MetricReplayRejected
	// MetricStaleTokenReplay counts replays that reused a token from an earlier cycle.
	MetricStaleTokenReplay
	// MetricProactiveRefresh counts refreshes started before an expiring token was sent.
	MetricProactiveRefresh
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess
	// MetricLoginFailure counts failed logins.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins rejected by the login throttle.
	MetricLoginRateLimited
	// MetricLogoutForced counts logouts caused by terminal refresh failures.
	MetricLogoutForced
	// MetricLogoutExplicit counts caller-requested logouts that cleared credentials.
	MetricLogoutExplicit
	// MetricAuditDropped counts audit events the dispatcher could not buffer.
	MetricAuditDropped
	// MetricRefreshLatency is the refresh cycle latency histogram.
	MetricRefreshLatency
	// MetricRequestLatency is the per-call latency histogram, refresh and replay included.
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of client counters and latency histograms.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in histogram id. Non-histogram IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters and, when enabled, histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricRefreshLatency, MetricRequestLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func isHistogram(id MetricID) bool {
	return id == MetricRefreshLatency || id == MetricRequestLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
