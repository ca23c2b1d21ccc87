// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// User operations
	IncUserCreated()
	IncUserLookup(result string) // result: "found" or "absent"
	IncUserListed()
	ObserveStorageDuration(op string, duration time.Duration)
	IncStorageError(op string)

	// Read-through cache
	IncUserCacheHit()
	IncUserCacheMiss()

	// Domain events
	IncEventPublished(status string) // status: "success" or "dropped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
