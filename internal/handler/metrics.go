package handler

import (
	"fmt"
	"net/http"

	"github.com/userd/userd/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
//
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "userd_users_created_total %d\n", snap.UsersCreated)
	writeMetric(w, "userd_user_lookups_total{result=\"found\"} %d\n", snap.UserLookupsFound)
	writeMetric(w, "userd_user_lookups_total{result=\"absent\"} %d\n", snap.UserLookupsAbsent)
	writeMetric(w, "userd_user_lists_total %d\n", snap.UserLists)

	writeMetric(w, "userd_storage_errors_total %d\n", snap.StorageErrors)
	writeMetric(w, "userd_storage_duration_seconds_count %d\n", snap.StorageDurationCount)
	writeMetric(w, "userd_storage_duration_seconds_sum %.6f\n", float64(snap.StorageDurationTotalNs)/1e9)

	writeMetric(w, "userd_user_cache_hits_total %d\n", snap.UserCacheHits)
	writeMetric(w, "userd_user_cache_misses_total %d\n", snap.UserCacheMisses)

	writeMetric(w, "userd_events_published_total{status=\"success\"} %d\n", snap.EventsPublished)
	writeMetric(w, "userd_events_published_total{status=\"dropped\"} %d\n", snap.EventsDropped)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
