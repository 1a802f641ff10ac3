package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter slot.
type MetricID uint16

const (
	MetricTokenIssued MetricID = iota
	MetricTokenUpdated
	MetricTokenValid
	MetricTokenMalformed
	MetricTokenSignatureInvalid
	MetricTokenExpired
	MetricTokenNotYetValid
	MetricTokenGuardMismatch
	MetricTokenRevoked
	MetricCodeSessionCreated
	MetricCodeSessionConsumed
	MetricCodeSessionMiss
	MetricPasskeySessionCreated
	MetricPasskeySessionConsumed
	MetricPasskeyChallengeMismatch
	MetricRateLimitHit
	MetricSubjectRegistered
	MetricProfileUpdated
	MetricEmailChanged
	MetricRevokeAll
	MetricValidateLatency
	MetricIDCount
)

const (
	HistogramBucketCount = 8
	cacheLineSize        = 64
)

type Config struct {
	Enabled       bool
	EnableLatency bool
}

type histogram struct {
	buckets [HistogramBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is safe for concurrent use. A nil *Metrics is a valid no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	latency       histogram
}

type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the validate latency histogram. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricValidateLatency {
		return
	}
	atomic.AddUint64(&m.latency.buckets[BucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		if id == MetricValidateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, HistogramBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.latency.buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}
	return s
}

// BucketIndex maps a duration onto the fixed buckets
// ≤5ms, ≤10ms, ≤25ms, ≤50ms, ≤100ms, ≤250ms, ≤500ms, +Inf.
func BucketIndex(d time.Duration) int {
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
