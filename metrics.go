package identity

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint16

const (
	// MetricRegisterSuccess counts completed registrations, including
	// idempotent conflict recoveries.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterFailure counts registrations that returned an error.
	MetricRegisterFailure
	// MetricRegisterRateLimited counts registrations denied by the limiter.
	MetricRegisterRateLimited
	// MetricRegisterRecovered counts conflicts resolved by the re-check.
	MetricRegisterRecovered
	// MetricBackendInconsistency counts conflicts whose re-check found
	// no record.
	MetricBackendInconsistency
	// MetricLoginSuccess counts successful password logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected password logins.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins denied by the limiter.
	MetricLoginRateLimited
	// MetricHashUpgraded counts transparent legacy-hash migrations.
	MetricHashUpgraded
	// MetricOAuthSuccess counts successful federated logins.
	MetricOAuthSuccess
	// MetricOAuthFailure counts rejected federated logins.
	MetricOAuthFailure
	// MetricOAuthRateLimited counts federated logins denied by the limiter.
	MetricOAuthRateLimited
	// MetricRefreshSuccess counts successful token rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected token rotations.
	MetricRefreshFailure
	// MetricRefreshRateLimited counts rotations denied by the limiter.
	MetricRefreshRateLimited
	// MetricRefreshReuseDetected counts refresh tokens presented a
	// second time after being consumed.
	MetricRefreshReuseDetected
	// MetricStatusChanged counts account status transitions.
	MetricStatusChanged
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a set of atomic engine counters.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics returns a counter set; disabled metrics make every method
// a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
