package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	LoginsSucceeded      uint64
	LoginsFailed         uint64
	Registrations        uint64
	Logouts              uint64
	LoginDurationCount   uint64
	LoginDurationTotalNs int64
	UserCacheHits        uint64
	UserCacheMisses      uint64
	AuditPublished       uint64
	AuditDropped         uint64
	AuditProcessed       uint64
	AuditFailed          uint64
	AuditQueueDepth      int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	loginsSucceeded      uint64
	loginsFailed         uint64
	registrations        uint64
	logouts              uint64
	loginDurationCount   uint64
	loginDurationTotalNs int64
	userCacheHits        uint64
	userCacheMisses      uint64
	auditPublished       uint64
	auditDropped         uint64
	auditProcessed       uint64
	auditFailed          uint64
	auditQueueDepth      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		LoginsSucceeded:      atomic.LoadUint64(&m.loginsSucceeded),
		LoginsFailed:         atomic.LoadUint64(&m.loginsFailed),
		Registrations:        atomic.LoadUint64(&m.registrations),
		Logouts:              atomic.LoadUint64(&m.logouts),
		LoginDurationCount:   atomic.LoadUint64(&m.loginDurationCount),
		LoginDurationTotalNs: atomic.LoadInt64(&m.loginDurationTotalNs),
		UserCacheHits:        atomic.LoadUint64(&m.userCacheHits),
		UserCacheMisses:      atomic.LoadUint64(&m.userCacheMisses),
		AuditPublished:       atomic.LoadUint64(&m.auditPublished),
		AuditDropped:         atomic.LoadUint64(&m.auditDropped),
		AuditProcessed:       atomic.LoadUint64(&m.auditProcessed),
		AuditFailed:          atomic.LoadUint64(&m.auditFailed),
		AuditQueueDepth:      atomic.LoadInt64(&m.auditQueueDepth),
	}
}

// IncLoginSucceeded increments the successful login counter.
func (m *InMemoryRecorder) IncLoginSucceeded() {
	atomic.AddUint64(&m.loginsSucceeded, 1)
}

// IncLoginFailed increments the failed login counter.
func (m *InMemoryRecorder) IncLoginFailed() {
	atomic.AddUint64(&m.loginsFailed, 1)
}

// IncRegistration increments the registration counter.
func (m *InMemoryRecorder) IncRegistration() {
	atomic.AddUint64(&m.registrations, 1)
}

// IncLogout increments the logout counter.
func (m *InMemoryRecorder) IncLogout() {
	atomic.AddUint64(&m.logouts, 1)
}

// ObserveLoginDuration records login handling duration.
func (m *InMemoryRecorder) ObserveLoginDuration(duration time.Duration) {
	atomic.AddUint64(&m.loginDurationCount, 1)
	atomic.AddInt64(&m.loginDurationTotalNs, duration.Nanoseconds())
}

// IncUserCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncUserCacheHit() {
	atomic.AddUint64(&m.userCacheHits, 1)
}

// IncUserCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncUserCacheMiss() {
	atomic.AddUint64(&m.userCacheMisses, 1)
}

// IncAuditEventPublished increments publish counters by status.
func (m *InMemoryRecorder) IncAuditEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.auditPublished, 1)
		return
	}
	atomic.AddUint64(&m.auditDropped, 1)
}

// IncAuditEventProcessed increments processing counters by status.
func (m *InMemoryRecorder) IncAuditEventProcessed(status string) {
	if status == "success" {
		atomic.AddUint64(&m.auditProcessed, 1)
		return
	}
	atomic.AddUint64(&m.auditFailed, 1)
}

// ObserveAuditBatchSize is tracked only through queue depth in memory.
func (m *InMemoryRecorder) ObserveAuditBatchSize(size int) {}

// SetAuditQueueDepth records the audit stream backlog.
func (m *InMemoryRecorder) SetAuditQueueDepth(depth int64) {
	atomic.StoreInt64(&m.auditQueueDepth, depth)
}
