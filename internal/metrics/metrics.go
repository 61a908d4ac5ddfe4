// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Authentication metrics
	IncLoginSucceeded()
	IncLoginFailed()
	IncRegistration()
	IncLogout()
	ObserveLoginDuration(duration time.Duration)

	// User cache metrics
	IncUserCacheHit()
	IncUserCacheMiss()

	// Audit pipeline metrics
	IncAuditEventPublished(status string) // status: "success" or "dropped"
	IncAuditEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveAuditBatchSize(size int)
	SetAuditQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
