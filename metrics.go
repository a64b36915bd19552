package goGuard

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one guard counter or histogram.
type MetricID uint16

const (
	// MetricAttemptAllowed counts attempts let through to verification.
	MetricAttemptAllowed MetricID = iota
	// MetricChallengeRequired counts attempts rejected for a missing or invalid challenge.
	MetricChallengeRequired
	// MetricChallengeAccepted counts attempts in the challenge tier that presented a valid token.
	MetricChallengeAccepted
	// MetricChallengeRejected counts tokens refused by the ChallengeValidator.
	MetricChallengeRejected
	// MetricAttemptDenied counts attempts over the lock threshold.
	MetricAttemptDenied
	// MetricVerificationFailure counts Fail calls.
	MetricVerificationFailure
	// MetricVerificationSuccess counts Succeed calls.
	MetricVerificationSuccess
	// MetricDelayApplied counts delays served in full.
	MetricDelayApplied
	// MetricDelayCancelled counts delays cut short by context cancellation.
	MetricDelayCancelled
	// MetricStoreUnavailable counts store errors of any kind.
	MetricStoreUnavailable
	// MetricFailOpen counts attempts allowed because the store failed under FailOpen.
	MetricFailOpen
	// MetricFailClosed counts attempts denied because the store failed under FailClosed.
	MetricFailClosed
	// MetricIdentityEvicted counts records removed by idle sweeps.
	MetricIdentityEvicted
	// MetricIdentityReset counts records cleared by success or operator reset.
	MetricIdentityReset
	// MetricAuditBackpressure counts critical audit events that waited for
	// queue room instead of being dropped.
	MetricAuditBackpressure
	// MetricDelayLatency is the histogram of served failure delays.
	MetricDelayLatency
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

// Metrics is a fixed set of lock-free counters. A nil or disabled *Metrics
// accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram buckets
// are per-bucket (not cumulative).
type MetricsSnapshot struct {
	Counters          map[MetricID]uint64
	Histograms        map[MetricID][]uint64
	TrackedIdentities int64
}

// NewMetrics creates metrics per cfg.
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

// LatencyEnabled reports whether the delay histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram for id. Only MetricDelayLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricDelayLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricDelayLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricDelayLatency].buckets[i])
		}
		s.Histograms[MetricDelayLatency] = buckets
	}

	return s
}

// Upper bounds: 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 100:
		return 0
	case ms <= 250:
		return 1
	case ms <= 500:
		return 2
	case ms <= 1000:
		return 3
	case ms <= 2500:
		return 4
	case ms <= 5000:
		return 5
	case ms <= 10000:
		return 6
	default:
		return 7
	}
}
