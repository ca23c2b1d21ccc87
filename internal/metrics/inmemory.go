package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersCreated           uint64
	UserLookupsFound       uint64
	UserLookupsAbsent      uint64
	UserLists              uint64
	StorageErrors          uint64
	StorageDurationCount   uint64
	StorageDurationTotalNs int64
	UserCacheHits          uint64
	UserCacheMisses        uint64
	EventsPublished        uint64
	EventsDropped          uint64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	usersCreated           uint64
	userLookupsFound       uint64
	userLookupsAbsent      uint64
	userLists              uint64
	storageErrors          uint64
	storageDurationCount   uint64
	storageDurationTotalNs int64
	userCacheHits          uint64
	userCacheMisses        uint64
	eventsPublished        uint64
	eventsDropped          uint64
}

var (
	_ Recorder    = (*InMemoryRecorder)(nil)
	_ Snapshotter = (*InMemoryRecorder)(nil)
)

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersCreated:           atomic.LoadUint64(&m.usersCreated),
		UserLookupsFound:       atomic.LoadUint64(&m.userLookupsFound),
		UserLookupsAbsent:      atomic.LoadUint64(&m.userLookupsAbsent),
		UserLists:              atomic.LoadUint64(&m.userLists),
		StorageErrors:          atomic.LoadUint64(&m.storageErrors),
		StorageDurationCount:   atomic.LoadUint64(&m.storageDurationCount),
		StorageDurationTotalNs: atomic.LoadInt64(&m.storageDurationTotalNs),
		UserCacheHits:          atomic.LoadUint64(&m.userCacheHits),
		UserCacheMisses:        atomic.LoadUint64(&m.userCacheMisses),
		EventsPublished:        atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:          atomic.LoadUint64(&m.eventsDropped),
	}
}

// IncUserCreated increments the created counter.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncUserLookup counts a find by its outcome.
func (m *InMemoryRecorder) IncUserLookup(result string) {
	if result == "found" {
		atomic.AddUint64(&m.userLookupsFound, 1)
		return
	}
	atomic.AddUint64(&m.userLookupsAbsent, 1)
}

// IncUserListed increments the list counter.
func (m *InMemoryRecorder) IncUserListed() {
	atomic.AddUint64(&m.userLists, 1)
}

// ObserveStorageDuration records time spent in the storage backend.
func (m *InMemoryRecorder) ObserveStorageDuration(op string, duration time.Duration) {
	atomic.AddUint64(&m.storageDurationCount, 1)
	atomic.AddInt64(&m.storageDurationTotalNs, duration.Nanoseconds())
}

// IncStorageError increments the storage error counter.
func (m *InMemoryRecorder) IncStorageError(op string) {
	atomic.AddUint64(&m.storageErrors, 1)
}

// IncUserCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncUserCacheHit() {
	atomic.AddUint64(&m.userCacheHits, 1)
}

// IncUserCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncUserCacheMiss() {
	atomic.AddUint64(&m.userCacheMisses, 1)
}

// IncEventPublished counts a publish attempt by status.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.eventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.eventsDropped, 1)
}
