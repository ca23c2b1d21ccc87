package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncUserCreated is a no-op.
func (n *NoopRecorder) IncUserCreated() {}

// IncUserLookup is a no-op.
func (n *NoopRecorder) IncUserLookup(result string) {}

// IncUserListed is a no-op.
func (n *NoopRecorder) IncUserListed() {}

// ObserveStorageDuration is a no-op.
func (n *NoopRecorder) ObserveStorageDuration(op string, duration time.Duration) {}

// IncStorageError is a no-op.
func (n *NoopRecorder) IncStorageError(op string) {}

// IncUserCacheHit is a no-op.
func (n *NoopRecorder) IncUserCacheHit() {}

// IncUserCacheMiss is a no-op.
func (n *NoopRecorder) IncUserCacheMiss() {}

// IncEventPublished is a no-op.
func (n *NoopRecorder) IncEventPublished(status string) {}
